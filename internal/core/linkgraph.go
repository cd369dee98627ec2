package core

import (
	"path"
	"sort"
	"strings"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/shared"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// DefaultHopBudget bounds the link substitutions of one path lookup.
const DefaultHopBudget = 64

type delivery struct {
	owner int
	set   variant.Set
}

type linkEntry struct {
	owner  int
	set    variant.Set
	target string
}

// Hit is a delivered file reached from a logical path. Set is the
// subset of the requested combinations under which it is reached and
// ViaLinks lists the link paths walked, outermost first.
type Hit struct {
	Path     string
	Owner    int
	Set      variant.Set
	ViaLinks []string
}

// LinkUse records that a logical path was rewritten through the link at
// Link. Owners lists every package that delivers the link under Set.
type LinkUse struct {
	Path   string
	Link   string
	Target string
	Owners []int
	Set    variant.Set
}

// Scope limits a lookup to the deliveries of one tier.
type Scope struct {
	Tier  types.Tier
	Owner int
	// Exclude drops owners that do not take part in this lookup.
	Exclude func(owner int) bool
}

// LinkGraph indexes the files and links delivered by a set of providers.
type LinkGraph struct {
	providers []*Provider
	files     map[string][]delivery
	links     map[string][]linkEntry
	budget    int
}

// NewLinkGraph indexes the file, link and hardlink actions of providers.
func NewLinkGraph(providers []*Provider, budget int) *LinkGraph {
	if budget <= 0 {
		budget = DefaultHopBudget
	}
	g := &LinkGraph{
		providers: providers,
		files:     map[string][]delivery{},
		links:     map[string][]linkEntry{},
		budget:    budget,
	}
	for owner, p := range providers {
		for _, a := range p.Manifest.Actions {
			set := p.ActionSet(a)
			if set.IsEmpty() {
				continue
			}
			switch a.Type {
			case manifest.ActionFile:
				g.files[a.Path()] = append(g.files[a.Path()], delivery{owner: owner, set: set})
			case manifest.ActionLink, manifest.ActionHardlink:
				if target := a.Attrs.Get("target"); target != "" {
					g.links[a.Path()] = append(g.links[a.Path()], linkEntry{owner: owner, set: set, target: target})
				}
			}
		}
	}
	return g
}

func (s Scope) admits(g *LinkGraph, owner int) bool {
	if s.Exclude != nil && s.Exclude(owner) {
		return false
	}
	switch s.Tier {
	case types.TierSelf:
		return owner == s.Owner
	case types.TierBatch:
		return !g.providers[owner].Image
	default:
		return true
	}
}

// Conflicts lists link paths whose links disagree on the target under
// overlapping variants.
func (g *LinkGraph) Conflicts() []*LinkConflictError {
	paths := make([]string, 0, len(g.links))
	for p := range g.links {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var out []*LinkConflictError
	for _, p := range paths {
		entries := g.links[p]
		var clashing []string
		for i := range entries {
			for j := i + 1; j < len(entries); j++ {
				a, b := entries[i], entries[j]
				if a.target == b.target || !a.set.Intersects(b.set) {
					continue
				}
				clashing = append(clashing,
					g.describeLink(a), g.describeLink(b))
			}
		}
		if len(clashing) > 0 {
			out = append(out, &LinkConflictError{LinkPath: p, Links: shared.UniqueSorted(clashing)})
		}
	}
	return out
}

func (g *LinkGraph) describeLink(l linkEntry) string {
	return g.providers[l.owner].Name + " -> " + l.target
}

// Resolve finds the files a logical path reaches under want.
// Combinations that reach nothing, including those that exhaust the hop
// budget, are absent from every returned hit.
func (g *LinkGraph) Resolve(logical string, want variant.Set, scope Scope) ([]Hit, []LinkUse) {
	return g.resolve(shared.NormalizePath(logical), want, scope, g.budget)
}

func (g *LinkGraph) resolve(p string, want variant.Set, scope Scope, budget int) ([]Hit, []LinkUse) {
	var hits []Hit
	var uses []LinkUse
	remaining := want
	for _, d := range g.files[p] {
		if !scope.admits(g, d.owner) {
			continue
		}
		got := want.Intersect(d.set)
		if got.IsEmpty() {
			continue
		}
		hits = append(hits, Hit{Path: p, Owner: d.owner, Set: got})
		remaining = remaining.Minus(d.set)
	}
	if remaining.IsEmpty() {
		return hits, uses
	}

	parts := strings.Split(p, "/")
	for i := 1; i <= len(parts) && !remaining.IsEmpty(); i++ {
		prefix := strings.Join(parts[:i], "/")
		entries := g.links[prefix]
		if len(entries) == 0 {
			continue
		}
		covered := remaining.Space().Empty()
		reached := map[string][]reachedLink{}
		var order []string
		for _, l := range entries {
			if !scope.admits(g, l.owner) {
				continue
			}
			sub := remaining.Intersect(l.set)
			if sub.IsEmpty() {
				continue
			}
			covered = covered.Union(sub)
			if budget <= 0 {
				continue
			}
			next := substitute(prefix, l.target, parts[i:])
			subHits, subUses := g.resolve(next, sub, scope, budget-1)
			if len(subHits) == 0 {
				continue
			}
			got := remaining.Space().Empty()
			for _, h := range subHits {
				h.ViaLinks = append([]string{p}, h.ViaLinks...)
				hits = append(hits, h)
				got = got.Union(h.Set)
			}
			uses = append(uses, subUses...)
			if _, ok := reached[next]; !ok {
				order = append(order, next)
			}
			reached[next] = append(reached[next], reachedLink{owner: l.owner, set: got})
		}
		for _, next := range order {
			uses = append(uses, binLinkOwners(p, prefix, next, reached[next])...)
		}
		remaining = remaining.Minus(covered)
	}
	return hits, uses
}

type reachedLink struct {
	owner int
	set   variant.Set
}

// binLinkOwners groups the combinations reached through one link target
// by the packages that deliver the link under them.
func binLinkOwners(p string, link string, target string, reached []reachedLink) []LinkUse {
	if len(reached) == 0 {
		return nil
	}
	space := reached[0].set.Space()
	all := space.Empty()
	for _, r := range reached {
		all = all.Union(r.set)
	}
	bins := map[string]*LinkUse{}
	var keys []string
	for _, i := range all.Indices() {
		var owners []int
		for _, r := range reached {
			if r.set.Contains(i) {
				owners = append(owners, r.owner)
			}
		}
		sort.Ints(owners)
		owners = uniqueInts(owners)
		key := intsKey(owners)
		use, ok := bins[key]
		if !ok {
			use = &LinkUse{Path: p, Link: link, Target: target, Owners: owners, Set: space.Empty()}
			bins[key] = use
			keys = append(keys, key)
		}
		use.Set = use.Set.Union(space.Of(i))
	}
	out := make([]LinkUse, 0, len(keys))
	for _, key := range keys {
		out = append(out, *bins[key])
	}
	return out
}

// substitute rewrites a path whose prefix is a link. Absolute targets
// restart at the root; relative ones resolve against the link's
// directory.
func substitute(prefix string, target string, rest []string) string {
	elems := []string{target}
	if !strings.HasPrefix(target, "/") {
		elems = []string{path.Dir(prefix), target}
	}
	elems = append(elems, rest...)
	return shared.NormalizePath(path.Join(elems...))
}
