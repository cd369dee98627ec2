package core

import (
	"path"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/fmri"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// pruneInternal drops the generated dependencies a package satisfies
// with its own files and re-tags the rest to the combinations left
// over. An ELF dependency on a file name the package delivers somewhere
// off its run path is downgraded to a warning.
func pruneInternal(m *manifest.Manifest, deps []analyzers.FileDependency) ([]analyzers.FileDependency, error) {
	if len(deps) == 0 {
		return nil, nil
	}
	space, universe, err := Universe(m)
	if err != nil {
		return nil, err
	}
	p := NewProvider(m, fmri.FMRI{}, false, space, universe)
	graph := NewLinkGraph([]*Provider{p}, 0)
	scope := Scope{Tier: types.TierSelf, Owner: 0}

	delivered := map[string][]string{}
	for _, a := range m.ActionsByType(manifest.ActionFile) {
		base := path.Base(a.Path())
		delivered[base] = append(delivered[base], a.Path())
	}

	var out []analyzers.FileDependency
	for _, dep := range deps {
		want := p.TagSet(dep.Variants)
		cov := variant.NewCoverage(want)
		for _, candidate := range dep.Candidates() {
			if cov.IsSatisfied() {
				break
			}
			hits, _ := graph.Resolve(candidate, cov.NotSat(), scope)
			for _, h := range hits {
				cov.MarkSatisfied(h.Set)
			}
		}
		if cov.IsSatisfied() {
			continue
		}
		if dep.Kind == types.DependencyKindELF && deliveredElsewhere(dep, delivered) {
			dep.Severity = types.SeverityWarning
		}
		if cov.NotSat().Equal(want) {
			out = append(out, dep)
			continue
		}
		for _, tag := range p.Tags(cov.NotSat()) {
			d := dep
			d.Variants = tag
			out = append(out, d)
		}
	}
	return out, nil
}

// deliveredElsewhere reports whether the package delivers one of the
// dependency's file names at a path the dependency does not search.
func deliveredElsewhere(dep analyzers.FileDependency, delivered map[string][]string) bool {
	searched := map[string]struct{}{}
	for _, candidate := range dep.Candidates() {
		searched[candidate] = struct{}{}
	}
	for _, file := range dep.Files {
		for _, p := range delivered[path.Base(file)] {
			if _, ok := searched[p]; !ok {
				return true
			}
		}
	}
	return false
}
