package analyzers

import (
	"sort"
	"strings"
)

// RunpathPlaceholder stands for the detected run paths inside a
// user-supplied run path list.
const RunpathPlaceholder = "$PKGDEPEND_RUNPATH"

// DefaultPythonMaxDepth limits the import walk to direct imports.
const DefaultPythonMaxDepth = 1

// DefaultPythonSysPath is the search path template used when no run
// paths are given. "{version}" is replaced by the python major.minor.
var DefaultPythonSysPath = []string{
	"usr/lib/python{version}",
	"usr/lib/python{version}/lib-dynload",
	"usr/lib/python{version}/site-packages",
	"usr/lib/python{version}/vendor-packages",
}

type Options struct {
	RunPaths       []string
	Tokens         map[string][]string
	Platform       string
	ISAList        []string
	PythonSysPath  []string
	PythonMaxDepth int
}

// Config is the immutable analysis configuration shared by every
// analyzer. Accessors return copies.
type Config struct {
	runPaths       []string
	tokens         map[string][]string
	pythonSysPath  []string
	pythonMaxDepth int
	smf            *SMFCatalog
}

func NewConfig(opts Options) Config {
	tokens := map[string][]string{}
	platform := strings.TrimSpace(opts.Platform)
	if platform == "" {
		platform = DefaultPlatform()
	}
	tokens["$PLATFORM"] = []string{platform}
	isa := opts.ISAList
	if len(isa) == 0 {
		isa = DefaultISAList()
	}
	tokens["$ISALIST"] = append([]string(nil), isa...)
	for name, values := range opts.Tokens {
		tokens[NormalizeToken(name)] = append([]string(nil), values...)
	}

	sysPath := opts.PythonSysPath
	if len(sysPath) == 0 {
		sysPath = DefaultPythonSysPath
	}
	depth := opts.PythonMaxDepth
	if depth <= 0 {
		depth = DefaultPythonMaxDepth
	}
	return Config{
		runPaths:       append([]string(nil), opts.RunPaths...),
		tokens:         tokens,
		pythonSysPath:  append([]string(nil), sysPath...),
		pythonMaxDepth: depth,
	}
}

func (c Config) RunPaths() []string {
	return append([]string(nil), c.runPaths...)
}

// WithRunPaths returns a copy using a different user run path list.
func (c Config) WithRunPaths(paths []string) Config {
	c.runPaths = append([]string(nil), paths...)
	return c
}

// Tokens returns the token table, with $ORIGIN set for an installed path
// when origin is non-empty.
func (c Config) Tokens(origin string) map[string][]string {
	out := make(map[string][]string, len(c.tokens)+1)
	for name, values := range c.tokens {
		out[name] = append([]string(nil), values...)
	}
	if origin != "" {
		out["$ORIGIN"] = []string{origin}
	}
	return out
}

// TokenNames lists the configured tokens in sorted order.
func (c Config) TokenNames() []string {
	names := make([]string, 0, len(c.tokens))
	for name := range c.tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PythonSysPath expands the sys.path template for a python version.
func (c Config) PythonSysPath(version string) []string {
	out := make([]string, 0, len(c.pythonSysPath))
	for _, entry := range c.pythonSysPath {
		out = append(out, strings.TrimLeft(strings.ReplaceAll(entry, "{version}", version), "/"))
	}
	return out
}

// WithSMFCatalog returns a copy resolving SMF service dependencies
// against catalog.
func (c Config) WithSMFCatalog(catalog *SMFCatalog) Config {
	c.smf = catalog
	return c
}

func (c Config) PythonMaxDepth() int {
	return c.pythonMaxDepth
}

// MergeRunPaths replaces the detected run paths with the user list,
// substituting the placeholder with the detected paths. It reports
// false when the placeholder appears more than once.
func MergeRunPaths(detected []string, user []string) ([]string, bool) {
	if len(user) == 0 {
		return detected, true
	}
	var out []string
	seen := false
	for _, p := range user {
		if p != RunpathPlaceholder {
			out = append(out, p)
			continue
		}
		if seen {
			return nil, false
		}
		seen = true
		out = append(out, detected...)
	}
	return out, true
}
