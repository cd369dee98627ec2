package analyzers

import (
	"bufio"
	"os"
	"path"
	"strconv"
	"strings"

	"pkgdepend/internal/types"
)

// isExecutable reports whether the action delivers the file with any
// execute bit set. An action without a mode counts as executable.
func isExecutable(mode string) bool {
	if strings.TrimSpace(mode) == "" {
		return true
	}
	bits, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return false
	}
	return bits&0o111 != 0
}

func readFirstLine(localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// analyzeScript emits a script dependency on the interpreter of an
// executable file starting with "#!". Python scripts are also scanned
// for imports.
func analyzeScript(cfg Config, p Payload, locator Locator) ([]FileDependency, []*Problem) {
	installed := p.Action.Path()
	line, err := readFirstLine(p.LocalPath)
	if err != nil {
		return nil, []*Problem{newProblem(KindMissingFile, types.SeverityError, p.LocalPath, installed,
			"failed to read %s: %v", p.LocalPath, err)}
	}
	if !strings.HasPrefix(line, "#!") {
		return nil, nil
	}
	var deps []FileDependency
	var problems []*Problem
	scriptLine := ""
	if isExecutable(p.Action.Attrs.Get("mode")) {
		fields := strings.Fields(line[2:])
		if len(fields) > 0 {
			interpreter := fields[0]
			if !path.IsAbs(interpreter) {
				problems = append(problems, scriptNonAbsPath(p.LocalPath, installed, interpreter))
			} else {
				dir, file := path.Split(strings.TrimLeft(interpreter, "/"))
				deps = append(deps, newFileDependency(types.DependencyKindScript, p.Action,
					[]string{file}, []string{strings.TrimRight(dir, "/")}))
				scriptLine = line
			}
		}
	}
	if strings.Contains(line, "python") {
		pyDeps, pyProblems := analyzePython(cfg, p, scriptLine, locator)
		deps = append(deps, pyDeps...)
		problems = append(problems, pyProblems...)
	}
	return deps, problems
}
