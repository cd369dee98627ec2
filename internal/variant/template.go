// Package variant implements the variant combination algebra: axis
// templates, an enumerated combination space and bitset subsets of it.
package variant

import (
	"fmt"
	"sort"
	"strings"
)

// Prefix is the attribute prefix shared by every variant axis.
const Prefix = "variant."

// Template maps a variant axis (e.g. "variant.arch") to a set of values.
// It is used both for a package's declared axis domains and for the tag
// carried by an individual action.
type Template map[string][]string

// IsVariant reports whether an attribute name names a variant axis.
func IsVariant(name string) bool {
	return strings.HasPrefix(name, Prefix) && len(name) > len(Prefix)
}

// Clone returns a deep copy with normalized (sorted, unique) values.
func (t Template) Clone() Template {
	out := make(Template, len(t))
	for axis, values := range t {
		out[axis] = uniqueSorted(values)
	}
	return out
}

// Axes returns the axis names in sorted order.
func (t Template) Axes() []string {
	axes := make([]string, 0, len(t))
	for axis := range t {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	return axes
}

// Merge adds every value of other into t.
func (t Template) Merge(other Template) {
	for axis, values := range other {
		t[axis] = uniqueSorted(append(t[axis], values...))
	}
}

// MergeUnknown adds the axes of other that t does not mention at all.
func (t Template) MergeUnknown(other Template) {
	for axis, values := range other {
		if _, ok := t[axis]; ok {
			continue
		}
		t[axis] = uniqueSorted(values)
	}
}

// Difference lists the axes and axis values present in t but missing
// from other.
func (t Template) Difference(other Template) Difference {
	diff := Difference{}
	for _, axis := range t.Axes() {
		declared, ok := other[axis]
		if !ok {
			diff.Axes = append(diff.Axes, axis)
			continue
		}
		known := map[string]struct{}{}
		for _, value := range declared {
			known[value] = struct{}{}
		}
		for _, value := range uniqueSorted(t[axis]) {
			if _, ok := known[value]; !ok {
				diff.Values = append(diff.Values, AxisValue{Axis: axis, Value: value})
			}
		}
	}
	return diff
}

// IsSubset reports whether every axis and value of t is declared in other.
func (t Template) IsSubset(other Template) bool {
	return t.Difference(other).IsEmpty()
}

func (t Template) String() string {
	parts := make([]string, 0, len(t))
	for _, axis := range t.Axes() {
		parts = append(parts, fmt.Sprintf("%s=%s", axis, strings.Join(uniqueSorted(t[axis]), ",")))
	}
	return strings.Join(parts, " ")
}

// AxisValue is one (axis, value) pair.
type AxisValue struct {
	Axis  string
	Value string
}

func (p AxisValue) String() string {
	return p.Axis + ":" + p.Value
}

// Difference describes variants used by an action but not declared by
// its package.
type Difference struct {
	Axes   []string
	Values []AxisValue
}

func (d Difference) IsEmpty() bool {
	return len(d.Axes) == 0 && len(d.Values) == 0
}

func (d Difference) String() string {
	var parts []string
	for _, axis := range d.Axes {
		parts = append(parts, fmt.Sprintf("variant %q is not declared", axis))
	}
	for _, value := range d.Values {
		parts = append(parts, fmt.Sprintf("variant %q is not declared to have value %q", value.Axis, value.Value))
	}
	return strings.Join(parts, "; ")
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
