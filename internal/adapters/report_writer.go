package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pkgdepend/internal/ports"
	"pkgdepend/internal/types"
)

// ReportWriterAdapter writes diagnostics reports as YAML, or as plain
// text when the path ends in .txt.
type ReportWriterAdapter struct{}

func NewReportWriterAdapter() ReportWriterAdapter {
	return ReportWriterAdapter{}
}

func (a ReportWriterAdapter) WriteReport(path string, report types.Report) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("report path is empty")
	}
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data = []byte(RenderReportText(report))
	} else {
		out, err := yaml.Marshal(report)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to encode report").
				WithCause(err)
		}
		data = out
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create report directory").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write report").
			WithCause(err)
	}
	return nil
}

// RenderReportText renders one line per diagnostic, errors first.
func RenderReportText(report types.Report) string {
	var b strings.Builder
	write := func(d types.Diagnostic) {
		fmt.Fprintf(&b, "%s: %s: %s\n", d.Severity, d.Kind, d.Message)
	}
	for _, d := range report.Errors {
		write(d)
	}
	for _, d := range report.Warnings {
		write(d)
	}
	for _, dep := range report.ExternalDeps {
		fmt.Fprintf(&b, "external: %s\n", dep)
	}
	for _, pattern := range report.UnusedFMRIs {
		fmt.Fprintf(&b, "unused: %s\n", pattern)
	}
	return b.String()
}

var _ ports.ReportPort = ReportWriterAdapter{}
