package analyzers

import (
	"path"
	"sort"
	"strings"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// Placeholder FMRI carried by generated, unresolved dependencies.
const TBD = "__TBD"

// Debug attributes recorded on generated and resolved depend actions.
const (
	DebugPrefix   = "pkg.debug.depend."
	AttrFile      = DebugPrefix + "file"
	AttrPath      = DebugPrefix + "path"
	AttrFullPath  = DebugPrefix + "fullpath"
	AttrReason    = DebugPrefix + "reason"
	AttrType      = DebugPrefix + "type"
	AttrSeverity  = DebugPrefix + "severity"
	AttrViaLinks  = DebugPrefix + "via-links"
	AttrTarget    = DebugPrefix + "target"
	AttrBypassed  = DebugPrefix + "bypassed"
	AttrPathID    = DebugPrefix + "path-id"
	AttrRunpath   = "pkg.depend.runpath"
	AttrBypassGen = "pkg.depend.bypass-generate"
)

// FileDependency is an unresolved dependency produced by an analyzer:
// one of Files must exist in one of RunPaths, or at one of FullPaths
// when those are set.
type FileDependency struct {
	Kind      types.DependencyKind
	Files     []string
	RunPaths  []string
	FullPaths []string
	Reason    string
	Severity  types.Severity
	Variants  variant.Template
}

func newFileDependency(kind types.DependencyKind, action manifest.Action, files []string, runPaths []string) FileDependency {
	return FileDependency{
		Kind:     kind,
		Files:    sortedUnique(files),
		RunPaths: sortedUnique(runPaths),
		Reason:   action.Path(),
		Variants: action.Variants(),
	}
}

// Candidates lists every path that could satisfy the dependency.
func (d FileDependency) Candidates() []string {
	if len(d.FullPaths) > 0 {
		return append([]string(nil), d.FullPaths...)
	}
	out := make([]string, 0, len(d.Files)*len(d.RunPaths))
	for _, dir := range d.RunPaths {
		for _, file := range d.Files {
			out = append(out, strings.TrimLeft(path.Join(dir, file), "/"))
		}
	}
	return out
}

// Key identifies dependencies that differ at most in variant tag and
// reason.
func (d FileDependency) Key() string {
	return strings.Join([]string{
		string(d.Kind),
		strings.Join(d.Files, ":"),
		strings.Join(d.RunPaths, ":"),
		strings.Join(d.FullPaths, ":"),
	}, "|")
}

func (d FileDependency) IsWarning() bool {
	return d.Severity == types.SeverityWarning
}

// Action renders the dependency as an unresolved depend action.
func (d FileDependency) Action() manifest.Action {
	a := manifest.NewAction(manifest.ActionDepend)
	a.Attrs.Set("fmri", TBD)
	a.Attrs.Set("type", string(types.DependTypeRequire))
	a.Attrs.Set(AttrReason, d.Reason)
	a.Attrs.Set(AttrType, string(d.Kind))
	if len(d.FullPaths) > 0 {
		a.Attrs.Set(AttrFullPath, d.FullPaths...)
	} else {
		a.Attrs.Set(AttrFile, d.Files...)
		if len(d.RunPaths) > 0 {
			a.Attrs.Set(AttrPath, d.RunPaths...)
		}
	}
	if d.Severity != "" && d.Severity != types.SeverityError {
		a.Attrs.Set(AttrSeverity, string(d.Severity))
	}
	for axis, values := range d.Variants {
		a.Attrs.Set(axis, values...)
	}
	return a
}

// IsFileDependency reports whether a depend action is an unresolved,
// generated file dependency.
func IsFileDependency(a manifest.Action) bool {
	if a.Type != manifest.ActionDepend || a.Attrs.Get("fmri") != TBD {
		return false
	}
	return a.Attrs.Has(AttrFile) || a.Attrs.Has(AttrFullPath)
}

// FromAction reads a generated dependency back from its depend action.
func FromAction(a manifest.Action) (FileDependency, bool) {
	if !IsFileDependency(a) {
		return FileDependency{}, false
	}
	d := FileDependency{
		Kind:      types.DependencyKind(a.Attrs.Get(AttrType)),
		Files:     sortedUnique(a.Attrs.List(AttrFile)),
		RunPaths:  sortedUnique(trimSlashes(a.Attrs.List(AttrPath))),
		FullPaths: sortedUnique(trimSlashes(a.Attrs.List(AttrFullPath))),
		Reason:    a.Attrs.Get(AttrReason),
		Severity:  types.Severity(a.Attrs.Get(AttrSeverity)),
		Variants:  a.Variants(),
	}
	if d.Kind == "" {
		d.Kind = types.DependencyKindELF
	}
	return d, true
}

func trimSlashes(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimLeft(v, "/"))
	}
	return out
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
