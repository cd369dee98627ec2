package app

import (
	"pkgdepend/internal/core"
	"pkgdepend/internal/types"
)

type GenerateRequest struct {
	ManifestPath   string
	ProtoDirs      []string
	Tokens         []string
	RunPaths       []string
	Platform       string
	ISAList        []string
	PythonSysPath  []string
	PythonMaxDepth int
	KeepInternal   bool
	EchoManifest   bool
	Workers        int
	ReportPath     string
}

type GenerateResult struct {
	Diagnostics []core.Diagnostic
	// Unanalyzed maps each file type no analyzer handled to an example
	// payload.
	Unanalyzed map[string]string
	Report     types.Report
}

type ResolveRequest struct {
	ManifestPaths []string
	OutputDir     string
	Suffix        string
	ToStdout      bool
	EchoManifest  bool
	SkipImage     bool
	Verbose       bool
	ExternalFiles []string
	ShowExternal  bool
	ImageIndex    string
	HopBudget     int
	ReportPath    string
}

type ResolveResult struct {
	Diagnostics []core.Diagnostic
	// Outputs lists the files written, in manifest order. It is empty
	// when printing to stdout or when resolution failed fatally.
	Outputs          []string
	ExternalDeps     []string
	UnlistedExternal []string
	UnusedFMRIs      []string
	Report           types.Report
	// Fatal is set when no output was written because dependencies
	// could not be assigned to a single provider.
	Fatal bool
}
