// Package analyzers inspects delivered file payloads and reports the
// file dependencies they imply.
package analyzers

import (
	"strings"

	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
)

// Locator finds a delivered path in the proto area.
type Locator interface {
	Locate(relPath string) (string, bool)
}

// Payload is one file action together with its proto area copy.
type Payload struct {
	Action    manifest.Action
	LocalPath string
}

// Result is the outcome of analyzing one payload.
type Result struct {
	Type     types.FileType
	Label    string
	Analyzed bool
	Deps     []FileDependency
	Problems []*Problem
	// SMFFMRIs lists the services and instances an SMF manifest declares.
	SMFFMRIs []string
}

// Analyze classifies a payload and runs the analyzers that apply to it.
// Non-executable python sources under a versioned python library
// directory are scanned for imports as well.
func Analyze(cfg Config, p Payload, locator Locator) (Result, error) {
	fileType, label, err := Classify(p.LocalPath)
	if err != nil {
		return Result{}, err
	}
	res := Result{Type: fileType, Label: label}
	switch fileType {
	case types.FileTypeELF:
		res.Analyzed = true
		res.Deps, res.Problems = analyzeELF(cfg, p)
	case types.FileTypeExec:
		res.Analyzed = true
		res.Deps, res.Problems = analyzeScript(cfg, p, locator)
	case types.FileTypeSMF:
		res.Analyzed = true
		res.Deps, res.Problems, res.SMFFMRIs = analyzeSMF(cfg, p)
	default:
		if pyLibRe.MatchString(p.Action.Path()) && strings.HasSuffix(p.Action.Path(), ".py") {
			res.Analyzed = true
			res.Deps, res.Problems = analyzePython(cfg, p, "", locator)
		}
	}
	return res, nil
}
