package core

import (
	"sort"
	"strconv"
	"strings"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/policies"
	"pkgdepend/internal/shared"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// autoDep is a dependency found by the resolver before it is combined
// with the others of its manifest and rendered.
type autoDep struct {
	typ      types.DependType
	owners   []int
	set      variant.Set
	kinds    []string
	files    []string
	pathIDs  []string
	reasons  []string
	viaLinks []string
	targets  []string
}

func (d *autoDep) merge(o *autoDep) {
	d.set = d.set.Union(o.set)
	d.kinds = append(d.kinds, o.kinds...)
	d.files = append(d.files, o.files...)
	d.pathIDs = append(d.pathIDs, o.pathIDs...)
	d.reasons = append(d.reasons, o.reasons...)
	d.viaLinks = append(d.viaLinks, o.viaLinks...)
	d.targets = append(d.targets, o.targets...)
}

func (d *autoDep) key() string {
	return string(d.typ) + "|" + intsKey(d.owners)
}

func linkDependency(use LinkUse, reasons []string) autoDep {
	typ := types.DependTypeRequire
	if len(use.Owners) > 1 {
		typ = types.DependTypeRequireAny
	}
	return autoDep{
		typ:     typ,
		owners:  use.Owners,
		set:     use.Set,
		kinds:   []string{string(types.DependencyKindLink)},
		files:   []string{use.Link},
		reasons: append([]string(nil), reasons...),
		targets: []string{use.Target},
	}
}

// combine merges the dependencies found for one manifest into depend
// actions, one per provider group and simplified variant tag. Owners
// from the installed image are added to external.
func combine(g *LinkGraph, owner int, autos []autoDep, manual []policies.ManualDepend, verbose bool, external map[int]struct{}) []manifest.Action {
	self := g.providers[owner]
	groups := map[string]*autoDep{}
	var order []string
	for i := range autos {
		d := autos[i]
		if d.set.IsEmpty() || g.isSelf(owner, d.owners) {
			continue
		}
		key := d.key()
		if existing, ok := groups[key]; ok {
			existing.merge(&d)
			continue
		}
		d.kinds = append([]string(nil), d.kinds...)
		d.files = append([]string(nil), d.files...)
		d.pathIDs = append([]string(nil), d.pathIDs...)
		d.reasons = append([]string(nil), d.reasons...)
		d.viaLinks = append([]string(nil), d.viaLinks...)
		d.targets = append([]string(nil), d.targets...)
		groups[key] = &d
		order = append(order, key)
	}

	// A require-any is moot where one of its choices is required anyway.
	for _, key := range order {
		choice := groups[key]
		if choice.typ != types.DependTypeRequireAny {
			continue
		}
		for _, other := range order {
			req := groups[other]
			if req.typ == types.DependTypeRequire && containsInt(choice.owners, req.owners[0]) {
				choice.set = choice.set.Minus(req.set)
			}
		}
	}

	var out []*autoDep
	for _, key := range order {
		d := groups[key]
		for _, o := range d.owners {
			if g.providers[o].Image {
				external[o] = struct{}{}
			}
		}
		keep := true
		for _, o := range d.owners {
			if d.set, keep = policies.ApplyManual(g.providers[o].FMRI.Stem(), d.set, manual); !keep {
				break
			}
		}
		if keep && !d.set.IsEmpty() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := strings.Join(g.names(out[i].owners), " "), strings.Join(g.names(out[j].owners), " ")
		if ni != nj {
			return ni < nj
		}
		return out[i].typ < out[j].typ
	})

	var actions []manifest.Action
	for _, d := range out {
		for _, tag := range self.Tags(d.set) {
			actions = append(actions, g.render(d, tag, verbose))
		}
	}
	return actions
}

func (g *LinkGraph) render(d *autoDep, tag variant.Template, verbose bool) manifest.Action {
	a := manifest.NewAction(manifest.ActionDepend)
	fmris := make([]string, 0, len(d.owners))
	for _, o := range d.owners {
		fmris = append(fmris, g.providers[o].FMRI.Short())
	}
	a.Attrs.Set("fmri", fmris...)
	a.Attrs.Set("type", string(d.typ))
	if verbose {
		setList(a, analyzers.AttrFile, d.files)
		setList(a, analyzers.AttrPathID, d.pathIDs)
		setList(a, analyzers.AttrReason, d.reasons)
		setList(a, analyzers.AttrType, d.kinds)
		setList(a, analyzers.AttrViaLinks, d.viaLinks)
		setList(a, analyzers.AttrTarget, d.targets)
	}
	for axis, values := range tag {
		a.Attrs.Set(axis, values...)
	}
	return a
}

func setList(a manifest.Action, name string, values []string) {
	if values = shared.UniqueSorted(values); len(values) > 0 {
		a.Attrs.Set(name, values...)
	}
}

// isSelf reports whether a dependency names the package itself or one
// of its predecessors.
func (g *LinkGraph) isSelf(owner int, owners []int) bool {
	self := g.providers[owner].FMRI
	for _, o := range owners {
		if o == owner {
			return true
		}
		if self.Name != "" && self.IsSuccessor(g.providers[o].FMRI) {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func intsKey(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}
