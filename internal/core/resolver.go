package core

import (
	"context"
	"sort"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/fmri"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/policies"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

type ResolveOptions struct {
	// UseImage lets the installed image satisfy what the batch cannot.
	UseImage bool
	// Verbose keeps pkg.debug.depend.* attributes on resolved actions.
	Verbose   bool
	HopBudget int
	// External lists the package patterns expected to be depended on
	// from outside the batch.
	External []string
}

type ResolverCore struct {
	Options ResolveOptions
}

// DependencyCoverage partitions the combinations of one merged file
// dependency into those some provider satisfied and the rest.
type DependencyCoverage struct {
	Dep    analyzers.FileDependency
	Sat    variant.Set
	NotSat variant.Set
}

type ManifestResolution struct {
	Manifest     *manifest.Manifest
	Dependencies []manifest.Action
	Coverage     []DependencyCoverage
}

// Resolved returns the manifest with its generated file dependencies
// replaced by the resolved depend actions.
func (m ManifestResolution) Resolved() *manifest.Manifest {
	var kept []manifest.Action
	for _, a := range m.Manifest.Actions {
		if analyzers.IsFileDependency(a) {
			continue
		}
		kept = append(kept, a)
	}
	return manifest.New(m.Manifest.Path, append(kept, m.Dependencies...))
}

type ResolveResult struct {
	Manifests   []ManifestResolution
	Diagnostics []Diagnostic
	// ExternalDeps lists the installed packages the batch depends on.
	ExternalDeps []string
	// UnlistedExternal lists external dependencies no External pattern
	// names; UnusedFMRIs the patterns nothing matched.
	UnlistedExternal []string
	UnusedFMRIs      []string
}

// Fatal reports whether resolution hit a problem that voids its output.
func (r ResolveResult) Fatal() bool {
	for _, d := range r.Diagnostics {
		if IsFatal(d) {
			return true
		}
	}
	return false
}

func (r ResolveResult) Report() types.Report {
	report := BuildReport("resolve", r.Diagnostics)
	report.ExternalDeps = r.ExternalDeps
	report.UnusedFMRIs = r.UnusedFMRIs
	return report
}

func NewResolverCore(opts ResolveOptions) ResolverCore {
	return ResolverCore{Options: opts}
}

// Resolve turns the generated file dependencies of batch into depend
// actions on the packages that deliver the files. installed is consulted
// only when Options.UseImage is set; installed packages sharing a name
// with a batch manifest are ignored.
func (r ResolverCore) Resolve(ctx context.Context, batch []*manifest.Manifest, installed []*manifest.Manifest) (ResolveResult, error) {
	if len(batch) == 0 {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resolve requires at least one manifest")
	}
	var diags []Diagnostic
	batchNames := map[string]struct{}{}
	var all []*manifest.Manifest
	fmris := make([]fmri.FMRI, 0, len(batch))
	for _, m := range batch {
		assert.NotEmpty(ctx, m.Name(), "manifest name must be set")
		f, err := m.FMRI()
		if err != nil {
			diags = append(diags, &BadPackageFmri{Path: m.Path, Value: m.Name(), Cause: err})
			f = fmri.FMRI{}
		}
		if f.Name != "" {
			batchNames[f.Name] = struct{}{}
		}
		fmris = append(fmris, f)
		all = append(all, m)
	}
	var image []*manifest.Manifest
	var imageFMRIs []fmri.FMRI
	if r.Options.UseImage {
		for _, m := range installed {
			f, err := m.FMRI()
			if err != nil {
				log.Ctx(ctx).Debug().Str("manifest", m.Path).Err(err).Msg("skipping installed package with an invalid FMRI")
				continue
			}
			if _, ok := batchNames[f.Name]; ok {
				continue
			}
			image = append(image, m)
			imageFMRIs = append(imageFMRIs, f)
			all = append(all, m)
		}
	}

	space, universe, err := Universe(all...)
	if err != nil {
		return ResolveResult{}, err
	}
	providers := make([]*Provider, 0, len(all))
	for i, m := range batch {
		providers = append(providers, NewProvider(m, fmris[i], false, space, universe))
	}
	for i, m := range image {
		providers = append(providers, NewProvider(m, imageFMRIs[i], true, space, universe))
	}
	graph := NewLinkGraph(providers, r.Options.HopBudget)
	for _, conflict := range graph.Conflicts() {
		diags = append(diags, conflict)
	}

	result := ResolveResult{}
	external := map[int]struct{}{}
	for owner := range batch {
		if err := ctx.Err(); err != nil {
			return ResolveResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("resolve canceled").
				WithCause(err)
		}
		res, ds := r.resolveManifest(graph, owner, external)
		result.Manifests = append(result.Manifests, res)
		diags = append(diags, ds...)
	}

	var used []fmri.FMRI
	for owner := range external {
		used = append(used, providers[owner].FMRI)
	}
	sort.Slice(used, func(i, j int) bool { return fmri.Compare(used[i], used[j]) < 0 })
	for _, f := range used {
		result.ExternalDeps = append(result.ExternalDeps, f.Short())
	}
	if len(r.Options.External) > 0 {
		policy := policies.NewExternalPolicy(r.Options.External)
		result.UnlistedExternal, result.UnusedFMRIs = policy.Partition(used)
	}

	SortDiagnostics(diags)
	result.Diagnostics = diags
	log.Ctx(ctx).Debug().
		Int("manifests", len(batch)).
		Int("installed", len(image)).
		Int("external", len(result.ExternalDeps)).
		Int("diagnostics", len(diags)).
		Msg("resolver completed")
	return result, nil
}

type pendingDep struct {
	dep     analyzers.FileDependency
	set     variant.Set
	reasons []string
}

func (r ResolverCore) resolveManifest(g *LinkGraph, owner int, external map[int]struct{}) (ManifestResolution, []Diagnostic) {
	p := g.providers[owner]
	var diags []Diagnostic
	var pending []pendingDep
	var manual []policies.ManualDepend
	var bad []string
	for _, a := range p.Manifest.Actions {
		if a.Type != manifest.ActionDepend {
			continue
		}
		if dep, ok := analyzers.FromAction(a); ok {
			if diff := dep.Variants.Difference(p.Template); !diff.IsEmpty() {
				diags = append(diags, &ExtraVariantedDependency{Path: p.Manifest.Path, Package: p.Name, Reason: dep.Reason, Diff: diff})
				continue
			}
			pending = append(pending, pendingDep{dep: dep, set: p.ActionSet(a), reasons: []string{dep.Reason}})
			continue
		}
		if diff := a.Variants().Difference(p.Template); !diff.IsEmpty() {
			diags = append(diags, &ExtraVariantedDependency{Path: p.Manifest.Path, Package: p.Name, Reason: manifest.Format(a), Manual: true, Diff: diff})
			continue
		}
		m := policies.ManualDepend{Type: types.DependType(a.Attrs.Get("type")), Set: p.ActionSet(a)}
		for _, text := range a.Attrs.List("fmri") {
			if text == analyzers.TBD {
				continue
			}
			f, err := fmri.Parse(text)
			if err != nil {
				bad = append(bad, text)
				continue
			}
			m.Stems = append(m.Stems, f.Stem())
		}
		manual = append(manual, m)
	}
	if len(bad) > 0 {
		diags = append(diags, &BadDependencyFmri{Path: p.Manifest.Path, Package: p.Name, Values: bad})
	}

	res := ManifestResolution{Manifest: p.Manifest}
	var autos []autoDep
	for _, pd := range mergePending(pending) {
		found, cov, ds := r.resolveDependency(g, owner, pd)
		autos = append(autos, found...)
		diags = append(diags, ds...)
		res.Coverage = append(res.Coverage, cov)
		if cov.NotSat.IsEmpty() {
			continue
		}
		unresolved := &UnresolvedDependencyError{Path: p.Manifest.Path, Package: p.Name, Dep: pd.dep}
		if !cov.NotSat.Equal(p.Space) {
			unresolved.NotSat = p.Tags(cov.NotSat)
		}
		diags = append(diags, unresolved)
	}
	res.Dependencies = combine(g, owner, autos, manual, r.Options.Verbose, external)
	return res, diags
}

// mergePending folds together dependencies that differ only in variant
// tag and reason.
func mergePending(pending []pendingDep) []pendingDep {
	var out []pendingDep
	index := map[string]int{}
	for _, pd := range pending {
		key := pd.dep.Key() + "|" + string(pd.dep.Severity)
		i, ok := index[key]
		if !ok {
			pd.dep.Variants = nil
			index[key] = len(out)
			out = append(out, pd)
			continue
		}
		out[i].set = out[i].set.Union(pd.set)
		out[i].reasons = append(out[i].reasons, pd.reasons...)
	}
	return out
}

func (r ResolverCore) resolveDependency(g *LinkGraph, owner int, pd pendingDep) ([]autoDep, DependencyCoverage, []Diagnostic) {
	cov := variant.NewCoverage(pd.set)
	var found []autoDep
	var diags []Diagnostic
	for _, tier := range []types.Tier{types.TierSelf, types.TierBatch, types.TierImage} {
		want := cov.NotSat()
		if want.IsEmpty() {
			break
		}
		deps, claimed, ds := r.resolveInScope(g, owner, pd, want, Scope{Tier: tier, Owner: owner})
		found = append(found, deps...)
		diags = append(diags, ds...)
		cov.MarkSatisfied(claimed)
	}
	return found, DependencyCoverage{Dep: pd.dep, Sat: cov.Sat(), NotSat: cov.NotSat()}, diags
}

// resolveInScope looks every candidate path of a dependency up within
// one tier. Combinations reached by several packages at one path are
// ambiguous; different paths reaching different packages under shared
// combinations collide. Either way no dependency is produced for the
// contested combinations, but they count as satisfied.
func (r ResolverCore) resolveInScope(g *LinkGraph, owner int, pd pendingDep, want variant.Set, scope Scope) ([]autoDep, variant.Set, []Diagnostic) {
	self := g.providers[owner]
	claimed := want.Space().Empty()
	var diags []Diagnostic
	var results []*autoDep
	var links []autoDep
	collided := map[int]bool{}
	for _, candidate := range pd.dep.Candidates() {
		hits, uses := g.Resolve(candidate, want, scope)
		if len(hits) == 0 {
			continue
		}
		for _, use := range uses {
			links = append(links, linkDependency(use, pd.reasons))
		}
		byOwner := map[int]*autoDep{}
		var owners []int
		for _, h := range hits {
			claimed = claimed.Union(h.Set)
			d, ok := byOwner[h.Owner]
			if !ok {
				d = &autoDep{
					typ:     types.DependTypeRequire,
					owners:  []int{h.Owner},
					set:     want.Space().Empty(),
					kinds:   []string{string(pd.dep.Kind)},
					pathIDs: []string{candidate},
					reasons: append([]string(nil), pd.reasons...),
				}
				byOwner[h.Owner] = d
				owners = append(owners, h.Owner)
			}
			d.set = d.set.Union(h.Set)
			d.files = append(d.files, h.Path)
			if len(h.ViaLinks) > 0 {
				d.viaLinks = append(d.viaLinks, strings.Join(h.ViaLinks, ":"))
			}
		}
		sort.Ints(owners)

		overlap := want.Space().Empty()
		var contested []int
		for i, a := range owners {
			for _, b := range owners[i+1:] {
				shared := byOwner[a].set.Intersect(byOwner[b].set)
				if shared.IsEmpty() {
					continue
				}
				overlap = overlap.Union(shared)
				contested = append(contested, a, b)
			}
		}
		if len(contested) > 0 {
			diags = append(diags, &AmbiguousPathError{
				Path:      self.Manifest.Path,
				Package:   self.Name,
				Dep:       pd.dep,
				Candidate: candidate,
				Providers: g.names(uniqueInts(sortedInts(contested))),
			})
			for _, o := range owners {
				byOwner[o].set = byOwner[o].set.Minus(overlap)
			}
		}

		for _, o := range owners {
			n := byOwner[o]
			if n.set.IsEmpty() {
				continue
			}
			merged := false
			for _, e := range results {
				if e.owners[0] == o {
					e.merge(n)
					merged = true
					continue
				}
				if shared := e.set.Intersect(n.set); !shared.IsEmpty() {
					diags = append(diags, &CollisionError{
						Path:         self.Manifest.Path,
						Package:      self.Name,
						Dep:          pd.dep,
						Providers:    g.names([]int{e.owners[0], o}),
						Combinations: self.Tags(shared),
					})
					collided[e.owners[0]] = true
					collided[o] = true
				}
			}
			if !merged {
				results = append(results, n)
			}
		}
	}

	var out []autoDep
	for _, e := range results {
		if !collided[e.owners[0]] {
			out = append(out, *e)
		}
	}
	return append(out, links...), claimed, diags
}

func (g *LinkGraph) names(owners []int) []string {
	out := make([]string, 0, len(owners))
	for _, o := range owners {
		out = append(out, g.providers[o].Name)
	}
	return out
}

func sortedInts(values []int) []int {
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}

// uniqueInts drops adjacent duplicates from a sorted slice.
func uniqueInts(values []int) []int {
	var out []int
	for i, v := range values {
		if i > 0 && v == values[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
