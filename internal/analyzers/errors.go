package analyzers

import (
	"fmt"

	"pkgdepend/internal/types"
)

// Problem kinds reported while analyzing payloads.
const (
	KindBadElfFile               = "BadElfFile"
	KindUnsupportedDynamicToken  = "UnsupportedDynamicToken"
	KindMultipleDefaultRunpaths  = "MultipleDefaultRunpaths"
	KindPythonUnspecifiedVersion = "PythonUnspecifiedVersion"
	KindPythonMismatchedVersion  = "PythonMismatchedVersion"
	KindPythonSyntaxError        = "PythonSyntaxError"
	KindScriptNonAbsPath         = "ScriptNonAbsPath"
	KindMissingFile              = "MissingFile"
	KindInvalidBypassValue       = "InvalidDependBypassValue"
	KindInvalidRunpathValue      = "InvalidPackageDependRunpath"
	KindSMFManifest              = "SMFManifestError"
)

// Problem is a collected, per-file analysis error or warning.
type Problem struct {
	Kind          string
	Severity      types.Severity
	Package       string
	ProtoPath     string
	InstalledPath string
	Message       string
}

func (p *Problem) Error() string {
	return p.Message
}

func (p *Problem) IsWarning() bool {
	return p.Severity == types.SeverityWarning
}

// Record converts the problem to its report form.
func (p *Problem) Record() types.Diagnostic {
	return types.Diagnostic{
		Kind:     p.Kind,
		Severity: p.Severity,
		Path:     p.InstalledPath,
		Package:  p.Package,
		Message:  p.Message,
	}
}

func newProblem(kind string, severity types.Severity, proto string, installed string, format string, args ...any) *Problem {
	return &Problem{
		Kind:          kind,
		Severity:      severity,
		ProtoPath:     proto,
		InstalledPath: installed,
		Message:       fmt.Sprintf(format, args...),
	}
}

func badElfFile(proto string, installed string, cause error) *Problem {
	return newProblem(KindBadElfFile, types.SeverityError, proto, installed,
		"%s (installed at %s) had this ELF error: %v", proto, installed, cause)
}

func unsupportedToken(proto string, installed string, runPath string, token string) *Problem {
	return newProblem(KindUnsupportedDynamicToken, types.SeverityWarning, proto, installed,
		"%s (installed at %s) has the dynamic token %s in its run path %s, which is not supported", proto, installed, token, runPath)
}

func multipleDefaultRunpaths(proto string, installed string, placeholder string) *Problem {
	return newProblem(KindMultipleDefaultRunpaths, types.SeverityError, proto, installed,
		"%s (installed at %s) lists %s more than once in its run path", proto, installed, placeholder)
}

func pythonUnspecifiedVersion(proto string, installed string) *Problem {
	return newProblem(KindPythonUnspecifiedVersion, types.SeverityError, proto, installed,
		"%s (installed at %s) is an executable python script with no version in its shebang line or install path", proto, installed)
}

func pythonMismatchedVersion(proto string, installed string, shebang string, dir string) *Problem {
	return newProblem(KindPythonMismatchedVersion, types.SeverityWarning, proto, installed,
		"%s (installed at %s) declares python %s in its shebang line but is installed under the python %s directory; using %s",
		proto, installed, shebang, dir, dir)
}

func pythonSyntaxError(proto string, installed string, line int, reason string) *Problem {
	return newProblem(KindPythonSyntaxError, types.SeverityError, proto, installed,
		"%s (installed at %s) could not be scanned for imports: line %d: %s", proto, installed, line, reason)
}

func scriptNonAbsPath(proto string, installed string, interpreter string) *Problem {
	return newProblem(KindScriptNonAbsPath, types.SeverityError, proto, installed,
		"%s (installed at %s) names the interpreter %s, which is not an absolute path", proto, installed, interpreter)
}

// MissingFile reports a payload that no proto area root provides.
func MissingFile(installed string, roots []string) *Problem {
	return newProblem(KindMissingFile, types.SeverityError, "", installed,
		"couldn't find %s in any of the proto areas %v", installed, roots)
}

func InvalidBypassValue(installed string, value string, cause error) *Problem {
	return newProblem(KindInvalidBypassValue, types.SeverityError, "", installed,
		"invalid pkg.depend.bypass-generate value %q on %s: %v", value, installed, cause)
}

func InvalidRunpathValue(installed string, reason string) *Problem {
	return newProblem(KindInvalidRunpathValue, types.SeverityError, "", installed,
		"invalid pkg.depend.runpath on %s: %s", installed, reason)
}
