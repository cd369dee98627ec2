package analyzers

import (
	"errors"
	"os"
	"path"
	"regexp"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
)

var (
	pyBinRe = regexp.MustCompile(`^#!\s*/usr/bin/([^/]+/)?python(\d+)\.(\d+)`)
	pyLibRe = regexp.MustCompile(`^usr/lib/python(\d+)\.(\d+)/`)
)

// pyBuiltins are compiled into the interpreter and never live on disk.
var pyBuiltins = map[string]struct{}{
	"__builtin__": {}, "__future__": {}, "__main__": {}, "_abc": {}, "_ast": {},
	"_codecs": {}, "_collections": {}, "_functools": {}, "_imp": {}, "_io": {},
	"_locale": {}, "_operator": {}, "_signal": {}, "_sre": {}, "_stat": {},
	"_string": {}, "_symtable": {}, "_thread": {}, "_tracemalloc": {},
	"_warnings": {}, "_weakref": {}, "atexit": {}, "builtins": {}, "errno": {},
	"exceptions": {}, "faulthandler": {}, "gc": {}, "imp": {}, "itertools": {},
	"marshal": {}, "posix": {}, "pwd": {}, "signal": {}, "sys": {}, "thread": {},
	"time": {}, "xxsubtype": {}, "zipimport": {},
}

func matchVersion(re *regexp.Regexp, value string) string {
	m := re.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[len(m)-2] + "." + m[len(m)-1]
}

func sameVersion(a, b string) bool {
	va, errA := pep440.Parse(a)
	vb, errB := pep440.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return va.Compare(vb) == 0
}

func atLeast(version string, floor string) bool {
	v, err := pep440.Parse(version)
	if err != nil {
		return false
	}
	f, err := pep440.Parse(floor)
	if err != nil {
		return false
	}
	return v.Compare(f) >= 0
}

// analyzePython scans a python file's imports. scriptLine is the "#!"
// line of an executable script, or "" when the file is not executable.
// The interpreter version comes from the install directory when it
// implies one, else from the "#!" line.
func analyzePython(cfg Config, p Payload, scriptLine string, locator Locator) ([]FileDependency, []*Problem) {
	installed := p.Action.Path()
	executable := scriptLine != ""
	dirVersion := matchVersion(pyLibRe, installed)
	fileVersion := ""
	if executable {
		fileVersion = matchVersion(pyBinRe, scriptLine)
	}

	var problems []*Problem
	version := ""
	switch {
	case executable:
		if dirVersion != "" && fileVersion != "" && !sameVersion(dirVersion, fileVersion) {
			problems = append(problems, pythonMismatchedVersion(p.LocalPath, installed, fileVersion, dirVersion))
		}
		switch {
		case dirVersion != "":
			version = dirVersion
		case fileVersion != "":
			version = fileVersion
		default:
			return nil, append(problems, pythonUnspecifiedVersion(p.LocalPath, installed))
		}
	case dirVersion != "":
		version = dirVersion
	default:
		return nil, nil
	}

	finder := newModuleFinder(cfg, version, p.Action, locator)
	deps, err := finder.scanFile(p.LocalPath, installed, cfg.PythonMaxDepth())
	if err != nil {
		var syntax *PySyntaxError
		if errors.As(err, &syntax) {
			return nil, append(problems, pythonSyntaxError(p.LocalPath, installed, syntax.Line, syntax.Reason))
		}
		return nil, append(problems, newProblem(KindPythonSyntaxError, types.SeverityError, p.LocalPath, installed,
			"failed to read %s: %v", p.LocalPath, err))
	}
	return deps, problems
}

type moduleFinder struct {
	version     string
	py3         bool
	cpythonTag  string
	searchPaths []string
	action      manifest.Action
	locator     Locator
	visited     map[string]struct{}
	seen        map[string]struct{}
	deps        []FileDependency
}

func newModuleFinder(cfg Config, version string, action manifest.Action, locator Locator) *moduleFinder {
	major, minor, _ := strings.Cut(version, ".")
	f := &moduleFinder{
		version: version,
		py3:     major == "3",
		action:  action,
		locator: locator,
		visited: map[string]struct{}{},
		seen:    map[string]struct{}{},
	}
	if f.py3 {
		f.cpythonTag = ".cpython-" + major + minor + "m.so"
		if atLeast(version, "3.8") {
			f.cpythonTag = ".cpython-" + major + minor + ".so"
		}
	}
	search := cfg.PythonSysPath(version)
	if user := cfg.RunPaths(); len(user) > 0 {
		merged, ok := MergeRunPaths(search, user)
		if ok {
			search = sortedUnique(trimSlashes(merged))
		}
	}
	f.searchPaths = search
	return f
}

func (f *moduleFinder) moduleFiles(name string) []string {
	files := []string{
		name + ".py", name + ".pyc", name + ".pyo", name + ".so", name + "module.so",
		name + "/__init__.py", "64/" + name + ".so", "64/" + name + "module.so",
	}
	if f.py3 {
		files = append(files,
			name+".abi3.so", name+f.cpythonTag,
			"64/"+name+".abi3.so", "64/"+name+f.cpythonTag)
	}
	return files
}

func packageFiles(name string) []string {
	return []string{name + "/__init__.py"}
}

// scanFile records the dependencies of one source file and, while depth
// allows, of the modules it imports that the proto area delivers.
func (f *moduleFinder) scanFile(localPath string, installed string, depth int) ([]FileDependency, error) {
	if _, ok := f.visited[installed]; ok {
		return f.deps, nil
	}
	f.visited[installed] = struct{}{}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	imports, err := ScanPyImports(string(data))
	if err != nil {
		return nil, err
	}
	installDir := path.Dir(installed)
	if installDir == "." {
		installDir = ""
	}
	dirs := append(append([]string(nil), f.searchPaths...), installDir)

	var found []FileDependency
	for _, imp := range imports {
		base := dirs
		if imp.Level > 0 {
			dir := installDir
			for i := 1; i < imp.Level; i++ {
				dir = path.Dir(dir)
				if dir == "." {
					dir = ""
				}
			}
			base = []string{dir}
			if imp.Module == "" {
				found = append(found, f.emit([]string{"__init__.py"}, base))
				continue
			}
		}
		parts := strings.Split(imp.Module, ".")
		if imp.Level == 0 {
			if _, builtin := pyBuiltins[parts[0]]; builtin && len(parts) == 1 {
				continue
			}
		}
		for i, part := range parts {
			if i < len(parts)-1 {
				found = append(found, f.emit(packageFiles(part), base))
			} else {
				found = append(found, f.emit(f.moduleFiles(part), base))
			}
			next := make([]string, 0, len(base))
			for _, dir := range base {
				next = append(next, path.Join(dir, part))
			}
			base = next
		}
	}
	if depth > 1 && f.locator != nil {
		for _, dep := range found {
			for _, candidate := range dep.Candidates() {
				if !strings.HasSuffix(candidate, ".py") {
					continue
				}
				local, ok := f.locator.Locate(candidate)
				if !ok {
					continue
				}
				if _, err := f.scanFile(local, candidate, depth-1); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	return f.deps, nil
}

func (f *moduleFinder) emit(files []string, dirs []string) FileDependency {
	dep := newFileDependency(types.DependencyKindPython, f.action, files, dirs)
	if _, ok := f.seen[dep.Key()]; !ok {
		f.seen[dep.Key()] = struct{}{}
		f.deps = append(f.deps, dep)
	}
	return dep
}
