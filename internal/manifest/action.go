// Package manifest models package manifests: ordered lists of typed
// actions with attribute maps and variant tags.
package manifest

import (
	"sort"
	"strings"

	"pkgdepend/internal/variant"
)

type ActionType string

const (
	ActionFile      ActionType = "file"
	ActionDir       ActionType = "dir"
	ActionLink      ActionType = "link"
	ActionHardlink  ActionType = "hardlink"
	ActionDepend    ActionType = "depend"
	ActionSet       ActionType = "set"
	ActionLicense   ActionType = "license"
	ActionUser      ActionType = "user"
	ActionGroup     ActionType = "group"
	ActionDriver    ActionType = "driver"
	ActionLegacy    ActionType = "legacy"
	ActionSignature ActionType = "signature"
	ActionUnknown   ActionType = "unknown"
)

var actionTypes = map[ActionType]struct{}{
	ActionFile: {}, ActionDir: {}, ActionLink: {}, ActionHardlink: {},
	ActionDepend: {}, ActionSet: {}, ActionLicense: {}, ActionUser: {},
	ActionGroup: {}, ActionDriver: {}, ActionLegacy: {}, ActionSignature: {},
	ActionUnknown: {},
}

// KnownActionType reports whether name is a recognised action keyword.
func KnownActionType(name string) bool {
	_, ok := actionTypes[ActionType(name)]
	return ok
}

// KeyAttr is the attribute identifying an action of the given type.
func (t ActionType) KeyAttr() string {
	switch t {
	case ActionFile, ActionDir, ActionLink, ActionHardlink, ActionUnknown:
		return "path"
	case ActionDepend:
		return "fmri"
	case ActionSet, ActionDriver:
		return "name"
	case ActionLicense:
		return "license"
	case ActionUser:
		return "username"
	case ActionGroup:
		return "groupname"
	case ActionLegacy:
		return "pkg"
	case ActionSignature:
		return "value"
	default:
		return ""
	}
}

// hasPayload reports whether the type may carry a leading payload hash.
func (t ActionType) hasPayload() bool {
	switch t {
	case ActionFile, ActionLicense, ActionSignature:
		return true
	default:
		return false
	}
}

// Attrs maps attribute names to one or more values; a repeated key
// collapses into an ordered list.
type Attrs map[string][]string

// Get returns the first value of an attribute.
func (a Attrs) Get(name string) string {
	values := a[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (a Attrs) List(name string) []string {
	return append([]string(nil), a[name]...)
}

func (a Attrs) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Attrs) Set(name string, values ...string) {
	a[name] = append([]string(nil), values...)
}

func (a Attrs) Add(name string, values ...string) {
	a[name] = append(a[name], values...)
}

func (a Attrs) Delete(name string) {
	delete(a, name)
}

// Keys returns attribute names in sorted order.
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Action is one manifest entry.
type Action struct {
	Type  ActionType
	Hash  string
	Attrs Attrs
}

func NewAction(t ActionType) Action {
	return Action{Type: t, Attrs: Attrs{}}
}

// Key returns the value of the type's key attribute.
func (a Action) Key() string {
	return a.Attrs.Get(a.Type.KeyAttr())
}

// Path is the installed path of a path-keyed action without a leading slash.
func (a Action) Path() string {
	return strings.TrimLeft(a.Attrs.Get("path"), "/")
}

// Variants is the action's variant tag.
func (a Action) Variants() variant.Template {
	tag := variant.Template{}
	for name, values := range a.Attrs {
		if variant.IsVariant(name) {
			tag[name] = append([]string(nil), values...)
		}
	}
	return tag
}

func (a Action) Clone() Action {
	out := Action{Type: a.Type, Hash: a.Hash, Attrs: make(Attrs, len(a.Attrs))}
	for name, values := range a.Attrs {
		out.Attrs[name] = append([]string(nil), values...)
	}
	return out
}

func (a Action) String() string {
	return Format(a)
}
