package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/core"
	"pkgdepend/internal/manifest"
)

func (s Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	manifestPath := strings.TrimSpace(req.ManifestPath)
	if manifestPath == "" {
		return GenerateResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest file is required")
	}
	tokens, err := ParseTokens(req.Tokens)
	if err != nil {
		return GenerateResult{}, err
	}
	m, err := s.Manifests.Load(manifestPath)
	if err != nil {
		return GenerateResult{}, err
	}

	cfg := analyzers.NewConfig(analyzers.Options{
		RunPaths:       req.RunPaths,
		Tokens:         tokens,
		Platform:       req.Platform,
		ISAList:        req.ISAList,
		PythonSysPath:  req.PythonSysPath,
		PythonMaxDepth: req.PythonMaxDepth,
	})
	generator := core.NewGenerator(s.NewProto(req.ProtoDirs), core.GenerateOptions{
		Config:       cfg,
		KeepInternal: req.KeepInternal,
		Workers:      req.Workers,
	})
	res, err := generator.Generate(ctx, m)
	if err != nil {
		return GenerateResult{}, err
	}

	if err := s.NewWriter("", s.Stdout).Write("", renderGenerated(m, res, req.EchoManifest)); err != nil {
		return GenerateResult{}, err
	}
	out := GenerateResult{
		Diagnostics: res.Diagnostics,
		Unanalyzed:  res.Unanalyzed,
		Report:      res.Report(),
	}
	if req.ReportPath != "" {
		if err := s.Reports.WriteReport(req.ReportPath, out.Report); err != nil {
			return out, err
		}
	}
	log.Ctx(ctx).Info().
		Str("manifest", manifestPath).
		Int("dependencies", len(res.Dependencies)).
		Int("errors", len(out.Report.Errors)).
		Msg("generate finished")
	if res.Missing || out.Report.HasErrors() {
		return out, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("generate found %d error(s) in %s", len(out.Report.Errors), manifestPath))
	}
	return out, nil
}

// renderGenerated prints the bypass attributes followed by the sorted
// dependencies. With echo the original manifest text comes first.
func renderGenerated(m *manifest.Manifest, res core.GenerateResult, echo bool) string {
	var b strings.Builder
	if echo {
		for _, line := range m.Lines {
			b.WriteString(line.Text)
			b.WriteString("\n")
		}
	}
	for _, a := range res.Attributes {
		b.WriteString(manifest.Format(a))
		b.WriteString("\n")
	}
	lines := make([]string, 0, len(res.Dependencies))
	for _, a := range res.Dependencies {
		lines = append(lines, manifest.Format(a))
	}
	sort.Strings(lines)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseTokens reads name=value run path token definitions. Repeating a
// name adds another value.
func ParseTokens(values []string) (map[string][]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	tokens := map[string][]string{}
	for _, value := range values {
		name, tokenValue, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || tokenValue == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid token definition " + value + ", expected name=value")
		}
		tokens[name] = append(tokens[name], tokenValue)
	}
	return tokens, nil
}
