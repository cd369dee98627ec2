package types

// Diagnostic is the serializable form of one error or warning produced
// while generating or resolving dependencies.
type Diagnostic struct {
	Kind     string   `yaml:"kind"`
	Severity Severity `yaml:"severity"`
	Path     string   `yaml:"path,omitempty"`
	Package  string   `yaml:"package,omitempty"`
	Message  string   `yaml:"message"`
}

// Report collects the diagnostics of one generate or resolve run.
type Report struct {
	Command      string       `yaml:"command"`
	Errors       []Diagnostic `yaml:"errors,omitempty"`
	Warnings     []Diagnostic `yaml:"warnings,omitempty"`
	ExternalDeps []string     `yaml:"external_deps,omitempty"`
	UnusedFMRIs  []string     `yaml:"unused_fmris,omitempty"`
}

// HasErrors reports whether the run should exit non-zero.
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}
