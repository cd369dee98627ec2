package core

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/policies"
	"pkgdepend/internal/ports"
	"pkgdepend/internal/shared"
	"pkgdepend/internal/types"
)

type GenerateOptions struct {
	Config analyzers.Config
	// KeepInternal keeps dependencies the package satisfies itself.
	KeepInternal bool
	Workers      int
}

type Generator struct {
	Proto   ports.ProtoAreaPort
	Options GenerateOptions
}

type GenerateResult struct {
	Manifest *manifest.Manifest
	// Dependencies holds one unresolved depend action per file
	// dependency.
	Dependencies []manifest.Action
	// Attributes holds set actions recording bypassed paths.
	Attributes  []manifest.Action
	Diagnostics []Diagnostic
	// Unanalyzed maps each file type no analyzer handles to the first
	// payload seen with it.
	Unanalyzed map[string]string
	// Missing is set when a payload could not be found.
	Missing bool
}

// Actions returns the generated actions in output order.
func (r GenerateResult) Actions() []manifest.Action {
	return append(append([]manifest.Action(nil), r.Attributes...), r.Dependencies...)
}

func (r GenerateResult) Report() types.Report {
	return BuildReport("generate", r.Diagnostics)
}

func NewGenerator(proto ports.ProtoAreaPort, opts GenerateOptions) Generator {
	return Generator{Proto: proto, Options: opts}
}

// Generate analyzes the payloads a manifest delivers and returns their
// file dependencies.
func (g Generator) Generate(ctx context.Context, m *manifest.Manifest) (GenerateResult, error) {
	if g.Proto == nil {
		return GenerateResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("generator requires a proto area")
	}
	res := GenerateResult{Manifest: m, Unanalyzed: map[string]string{}}
	declared := m.Variants()
	for _, a := range m.Actions {
		if diff := a.Variants().Difference(declared); !diff.IsEmpty() {
			res.Diagnostics = append(res.Diagnostics, &MissingPackageVariantError{
				Path:    m.Path,
				Package: m.Name(),
				Action:  manifest.Format(a),
				Diff:    diff,
			})
		}
	}
	if _, err := policies.ParseRunPath(m.Attr(analyzers.AttrRunpath)); err != nil {
		res.Diagnostics = append(res.Diagnostics, g.problem(m, analyzers.InvalidRunpathValue(m.Path, shared.ErrorMessage(err))))
		return res, nil
	}

	cfg := g.Options.Config
	files := m.ActionsByType(manifest.ActionFile)
	for _, a := range files {
		if analyzers.InSMFManifestDir(a.Path()) {
			cfg = cfg.WithSMFCatalog(analyzers.LoadSMFCatalog(g.Proto.Roots()))
			break
		}
	}
	outcomes, err := g.analyzeFiles(ctx, m, cfg, files)
	if err != nil {
		return GenerateResult{}, err
	}

	var deps []analyzers.FileDependency
	var bypassed []string
	var smfFMRIs []string
	for _, o := range outcomes {
		res.Diagnostics = append(res.Diagnostics, o.diags...)
		res.Missing = res.Missing || o.missing
		if o.label != "" {
			if _, seen := res.Unanalyzed[o.label]; !seen {
				res.Unanalyzed[o.label] = o.local
			}
		}
		deps = append(deps, o.deps...)
		bypassed = append(bypassed, o.bypassed...)
		smfFMRIs = append(smfFMRIs, o.smfFMRIs...)
	}
	for _, a := range m.ActionsByType(manifest.ActionHardlink) {
		if dep, ok := hardlinkDependency(a); ok {
			deps = append(deps, dep)
		}
	}

	if !g.Options.KeepInternal {
		pruned, err := pruneInternal(m, deps)
		if err != nil {
			return GenerateResult{}, err
		}
		deps = pruned
	}
	for _, dep := range deps {
		res.Dependencies = append(res.Dependencies, dep.Action())
	}
	if len(bypassed) > 0 {
		set := manifest.NewAction(manifest.ActionSet)
		set.Attrs.Set("name", analyzers.AttrBypassed)
		set.Attrs.Set("value", shared.UniqueSorted(bypassed)...)
		res.Attributes = append(res.Attributes, set)
	}
	if len(smfFMRIs) > 0 {
		set := manifest.NewAction(manifest.ActionSet)
		set.Attrs.Set("name", analyzers.AttrSMFFMRI)
		set.Attrs.Set("value", shared.UniqueSorted(smfFMRIs)...)
		res.Attributes = append(res.Attributes, set)
	}
	SortDiagnostics(res.Diagnostics)
	log.Ctx(ctx).Debug().
		Str("manifest", m.Path).
		Int("dependencies", len(res.Dependencies)).
		Int("diagnostics", len(res.Diagnostics)).
		Msg("generated dependencies")
	return res, nil
}

func (g Generator) problem(m *manifest.Manifest, p *analyzers.Problem) *analyzers.Problem {
	p.Package = m.Name()
	if p.InstalledPath == "" {
		p.InstalledPath = m.Path
	}
	return p
}

// hardlinkDependency makes a hardlink depend on its target. Relative
// targets resolve against the hardlink's directory.
func hardlinkDependency(a manifest.Action) (analyzers.FileDependency, bool) {
	target := a.Attrs.Get("target")
	if target == "" {
		return analyzers.FileDependency{}, false
	}
	return analyzers.FileDependency{
		Kind:      types.DependencyKindHardlink,
		FullPaths: []string{substitute(a.Path(), target, nil)},
		Reason:    a.Path(),
		Variants:  a.Variants(),
	}, true
}

// fileOutcome is the analysis of one file action. label is set when no
// analyzer handled the payload.
type fileOutcome struct {
	diags    []Diagnostic
	deps     []analyzers.FileDependency
	bypassed []string
	smfFMRIs []string
	label    string
	local    string
	missing  bool
}

// analyzeFiles analyzes files on up to Options.Workers goroutines.
// Outcomes keep the order of files.
func (g Generator) analyzeFiles(ctx context.Context, m *manifest.Manifest, cfg analyzers.Config, files []manifest.Action) ([]fileOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	workers := g.Options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	outcomes := make([]fileOutcome, len(files))
	var errMu sync.Mutex
	var firstErr error
	sem := make(chan struct{}, max(min(workers, len(files)), 1))
	var wg sync.WaitGroup
	for i, a := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			o, err := g.analyzeFile(m, cfg, a)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				errMu.Unlock()
				return
			}
			outcomes[i] = o
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("generate canceled").
			WithCause(err)
	}
	return outcomes, nil
}

func (g Generator) analyzeFile(m *manifest.Manifest, cfg analyzers.Config, a manifest.Action) (fileOutcome, error) {
	var o fileOutcome
	bypass, err := policies.BypassFor(m, a)
	if err != nil {
		o.diags = append(o.diags, g.problem(m, analyzers.InvalidBypassValue(a.Path(), strings.Join(a.Attrs.List(analyzers.AttrBypassGen), " "), err)))
		return o, nil
	}
	if bypass.SkipsAll() {
		o.bypassed = append(o.bypassed, a.Path()+":.*")
		return o, nil
	}
	runPaths, err := policies.RunPathFor(m, a)
	if err != nil {
		o.diags = append(o.diags, g.problem(m, analyzers.InvalidRunpathValue(a.Path(), shared.ErrorMessage(err))))
		return o, nil
	}
	key := a.Hash
	if key == "" {
		key = a.Path()
	}
	local, ok := g.Proto.Locate(key)
	if !ok && key != a.Path() {
		local, ok = g.Proto.Locate(a.Path())
	}
	if !ok {
		o.missing = true
		o.diags = append(o.diags, g.problem(m, analyzers.MissingFile(a.Path(), g.Proto.Roots())))
		return o, nil
	}
	if runPaths != nil {
		cfg = cfg.WithRunPaths(runPaths)
	}
	analysis, err := analyzers.Analyze(cfg, analyzers.Payload{Action: a, LocalPath: local}, g.Proto)
	if err != nil {
		return o, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to analyze " + local).
			WithCause(err)
	}
	if !analysis.Analyzed {
		o.label = analysis.Label
		o.local = local
	}
	for _, p := range analysis.Problems {
		o.diags = append(o.diags, g.problem(m, p))
	}
	for _, dep := range analysis.Deps {
		kept, skipped, keep := bypass.Apply(dep)
		o.bypassed = append(o.bypassed, skipped...)
		if keep {
			o.deps = append(o.deps, kept)
		}
	}
	o.smfFMRIs = analysis.SMFFMRIs
	return o, nil
}
