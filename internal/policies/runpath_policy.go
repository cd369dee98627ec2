package policies

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/shared"
)

// ParseRunPath reads a pkg.depend.runpath attribute. The attribute takes
// exactly one colon-separated value; an unset attribute yields nil.
func ParseRunPath(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) > 1 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pkg.depend.runpath must have a single value, got " + strings.Join(values, ", "))
	}
	paths := shared.SplitNonEmpty(values[0], ":")
	if len(paths) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pkg.depend.runpath has an empty value")
	}
	return paths, nil
}

// RunPathFor picks the run path governing one file action: its own
// pkg.depend.runpath, else the manifest's, else nil.
func RunPathFor(m *manifest.Manifest, a manifest.Action) ([]string, error) {
	if a.Attrs.Has(analyzers.AttrRunpath) {
		return ParseRunPath(a.Attrs.List(analyzers.AttrRunpath))
	}
	return ParseRunPath(m.Attr(analyzers.AttrRunpath))
}

// BypassFor compiles the bypass values of one file action together with
// those the manifest declares.
func BypassFor(m *manifest.Manifest, a manifest.Action) (BypassPolicy, error) {
	values := append([]string(nil), m.Attr(analyzers.AttrBypassGen)...)
	values = append(values, a.Attrs.List(analyzers.AttrBypassGen)...)
	return NewBypassPolicy(values)
}
