package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/core"
	"pkgdepend/internal/manifest"
)

// DefaultSuffix is appended to a manifest's path to name its resolved
// output.
const DefaultSuffix = ".res"

func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	if err := validateResolveRequest(req); err != nil {
		return ResolveResult{}, err
	}
	suffix := req.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}

	var batch []*manifest.Manifest
	for _, path := range req.ManifestPaths {
		m, err := s.Manifests.Load(path)
		if err != nil {
			return ResolveResult{}, err
		}
		batch = append(batch, m)
	}
	var external []string
	for _, path := range req.ExternalFiles {
		patterns, err := s.Externals.Load(path)
		if err != nil {
			return ResolveResult{}, err
		}
		external = append(external, patterns...)
	}
	var installed []*manifest.Manifest
	if !req.SkipImage && strings.TrimSpace(req.ImageIndex) != "" {
		ms, err := s.NewImage(req.ImageIndex).InstalledManifests(ctx)
		if err != nil {
			return ResolveResult{}, err
		}
		installed = ms
	}

	resolver := core.NewResolverCore(core.ResolveOptions{
		UseImage:  !req.SkipImage,
		Verbose:   req.Verbose,
		HopBudget: req.HopBudget,
		External:  external,
	})
	res, err := resolver.Resolve(ctx, batch, installed)
	if err != nil {
		return ResolveResult{}, err
	}
	out := ResolveResult{
		Diagnostics:      res.Diagnostics,
		ExternalDeps:     res.ExternalDeps,
		UnlistedExternal: res.UnlistedExternal,
		UnusedFMRIs:      res.UnusedFMRIs,
		Report:           res.Report(),
		Fatal:            res.Fatal(),
	}
	if req.ReportPath != "" {
		if err := s.Reports.WriteReport(req.ReportPath, out.Report); err != nil {
			return out, err
		}
	}
	if res.Fatal() {
		return out, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("resolve failed: dependencies could not be assigned to a single provider")
	}

	writer := s.NewWriter(req.OutputDir, s.Stdout)
	for _, mr := range res.Manifests {
		text := renderResolved(mr, req.EchoManifest)
		if req.ToStdout {
			if err := writer.Write("", "# "+mr.Manifest.Path+"\n"+text+"\n"); err != nil {
				return out, err
			}
			continue
		}
		target := mr.Manifest.Path + suffix
		if err := writer.Write(target, text); err != nil {
			return out, err
		}
		out.Outputs = append(out.Outputs, target)
	}
	log.Ctx(ctx).Info().
		Int("manifests", len(res.Manifests)).
		Int("errors", len(out.Report.Errors)).
		Int("external", len(res.ExternalDeps)).
		Msg("resolve finished")
	if out.Report.HasErrors() {
		return out, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("resolve found %d error(s)", len(out.Report.Errors)))
	}
	return out, nil
}

func validateResolveRequest(req ResolveRequest) error {
	if len(req.ManifestPaths) == 0 {
		return usageError("at least one manifest file is required")
	}
	for _, path := range req.ManifestPaths {
		if strings.TrimSpace(path) == "" {
			return usageError("manifest path is empty")
		}
	}
	if req.ToStdout && req.OutputDir != "" {
		return usageError("-o and -d may not be combined")
	}
	if req.ToStdout && req.Suffix != "" {
		return usageError("-o and -s may not be combined")
	}
	if req.ShowExternal && len(req.ExternalFiles) == 0 {
		return usageError("-E requires at least one -e file")
	}
	return nil
}

func usageError(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}

// renderResolved returns the resolved manifest text. With echo the
// original lines are kept verbatim, minus the unresolved file
// dependencies, and the resolved dependencies follow.
func renderResolved(mr core.ManifestResolution, echo bool) string {
	if !echo {
		return mr.Resolved().Text()
	}
	var b strings.Builder
	for _, line := range mr.Manifest.Lines {
		if line.Action >= 0 && analyzers.IsFileDependency(mr.Manifest.Actions[line.Action]) {
			continue
		}
		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	for _, a := range mr.Dependencies {
		b.WriteString(manifest.Format(a))
		b.WriteString("\n")
	}
	return b.String()
}
