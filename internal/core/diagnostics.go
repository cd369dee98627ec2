package core

import (
	"fmt"
	"sort"
	"strings"

	"pkgdepend/internal/analyzers"
	"pkgdepend/internal/manifest"
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// Diagnostic kinds raised while resolving.
const (
	KindUnresolvedDependency     = "UnresolvedDependencyError"
	KindAmbiguousPath            = "AmbiguousPathError"
	KindCollision                = "CollisionError"
	KindLinkConflict             = "LinkConflictError"
	KindMissingPackageVariant    = "MissingPackageVariantError"
	KindExtraVariantedDependency = "ExtraVariantedDependency"
	KindBadPackageFmri           = "BadPackageFmri"
	KindBadDependencyFmri        = "BadDependencyFmri"
)

// Diagnostic is a collected error or warning. Analyzer problems satisfy
// it as well.
type Diagnostic interface {
	error
	Record() types.Diagnostic
}

var _ Diagnostic = (*analyzers.Problem)(nil)

// UnresolvedDependencyError reports a file dependency that no provider
// satisfies under NotSat. NotSat is nil when nothing satisfied it.
type UnresolvedDependencyError struct {
	Path    string
	Package string
	Dep     analyzers.FileDependency
	NotSat  []variant.Template
}

func (e *UnresolvedDependencyError) Error() string {
	msg := fmt.Sprintf("%s has unresolved dependency '%s'", e.Path, manifest.Format(e.Dep.Action()))
	if len(e.NotSat) == 0 {
		return msg + "."
	}
	tags := make([]string, 0, len(e.NotSat))
	for _, tag := range e.NotSat {
		tags = append(tags, tag.String())
	}
	return msg + " under the following combinations of variants: " + strings.Join(tags, "; ")
}

func (e *UnresolvedDependencyError) Record() types.Diagnostic {
	severity := types.SeverityError
	if e.Dep.IsWarning() {
		severity = types.SeverityWarning
	}
	return types.Diagnostic{Kind: KindUnresolvedDependency, Severity: severity, Path: e.Path, Package: e.Package, Message: e.Error()}
}

// AmbiguousPathError reports one candidate path delivered by several
// packages under overlapping variants.
type AmbiguousPathError struct {
	Path      string
	Package   string
	Dep       analyzers.FileDependency
	Candidate string
	Providers []string
}

func (e *AmbiguousPathError) Error() string {
	return fmt.Sprintf("%s: the path %s needed by '%s' is delivered by more than one package: %s",
		e.Path, e.Candidate, manifest.Format(e.Dep.Action()), strings.Join(e.Providers, ", "))
}

func (e *AmbiguousPathError) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindAmbiguousPath, Severity: types.SeverityError, Path: e.Path, Package: e.Package, Message: e.Error()}
}

// CollisionError reports two candidate paths of one dependency that
// resolve to different packages under overlapping variants.
type CollisionError struct {
	Path         string
	Package      string
	Dep          analyzers.FileDependency
	Providers    []string
	Combinations []variant.Template
}

func (e *CollisionError) Error() string {
	tags := make([]string, 0, len(e.Combinations))
	for _, tag := range e.Combinations {
		if s := tag.String(); s != "" {
			tags = append(tags, s)
		}
	}
	msg := fmt.Sprintf("%s: the dependency '%s' resolves to more than one package: %s",
		e.Path, manifest.Format(e.Dep.Action()), strings.Join(e.Providers, ", "))
	if len(tags) > 0 {
		msg += " under " + strings.Join(tags, "; ")
	}
	return msg
}

func (e *CollisionError) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindCollision, Severity: types.SeverityError, Path: e.Path, Package: e.Package, Message: e.Error()}
}

// LinkConflictError reports links at one path that point at different
// targets under overlapping variants.
type LinkConflictError struct {
	LinkPath string
	Links    []string
}

func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("conflicting links at %s: %s", e.LinkPath, strings.Join(e.Links, "; "))
}

func (e *LinkConflictError) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindLinkConflict, Severity: types.SeverityError, Path: e.LinkPath, Message: e.Error()}
}

// MissingPackageVariantError reports an action tagged with a variant
// its package never declares.
type MissingPackageVariantError struct {
	Path    string
	Package string
	Action  string
	Diff    variant.Difference
}

func (e *MissingPackageVariantError) Error() string {
	return fmt.Sprintf("%s: the action %s is tagged with undeclared variants: %s", e.Path, e.Action, e.Diff)
}

func (e *MissingPackageVariantError) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindMissingPackageVariant, Severity: types.SeverityError, Path: e.Path, Package: e.Package, Message: e.Error()}
}

// ExtraVariantedDependency reports a depend action whose variant tag is
// not declared by its package.
type ExtraVariantedDependency struct {
	Path    string
	Package string
	Reason  string
	Manual  bool
	Diff    variant.Difference
}

func (e *ExtraVariantedDependency) Error() string {
	origin := "the dependency generated from " + e.Reason
	if e.Manual {
		origin = "the manual dependency " + e.Reason
	}
	return fmt.Sprintf("%s: %s is tagged with variants its package does not declare: %s", e.Path, origin, e.Diff)
}

func (e *ExtraVariantedDependency) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindExtraVariantedDependency, Severity: types.SeverityError, Path: e.Path, Package: e.Package, Message: e.Error()}
}

type BadPackageFmri struct {
	Path  string
	Value string
	Cause error
}

func (e *BadPackageFmri) Error() string {
	return fmt.Sprintf("%s: the package FMRI %q is not valid: %v", e.Path, e.Value, e.Cause)
}

func (e *BadPackageFmri) Unwrap() error {
	return e.Cause
}

func (e *BadPackageFmri) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindBadPackageFmri, Severity: types.SeverityError, Path: e.Path, Message: e.Error()}
}

type BadDependencyFmri struct {
	Path    string
	Package string
	Values  []string
}

func (e *BadDependencyFmri) Error() string {
	return fmt.Sprintf("%s: depend actions name invalid FMRIs: %s", e.Path, strings.Join(e.Values, ", "))
}

func (e *BadDependencyFmri) Record() types.Diagnostic {
	return types.Diagnostic{Kind: KindBadDependencyFmri, Severity: types.SeverityError, Path: e.Path, Package: e.Package, Message: e.Error()}
}

// IsFatal reports whether a diagnostic stops any output from being
// written.
func IsFatal(d Diagnostic) bool {
	switch d.(type) {
	case *AmbiguousPathError, *CollisionError, *LinkConflictError:
		return true
	}
	return false
}

// SortDiagnostics orders fatal diagnostics first, then by path, package
// and message.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		fi, fj := IsFatal(ds[i]), IsFatal(ds[j])
		if fi != fj {
			return fi
		}
		ri, rj := ds[i].Record(), ds[j].Record()
		if ri.Path != rj.Path {
			return ri.Path < rj.Path
		}
		if ri.Package != rj.Package {
			return ri.Package < rj.Package
		}
		return ri.Message < rj.Message
	})
}

// BuildReport splits diagnostics into errors and warnings.
func BuildReport(command string, ds []Diagnostic) types.Report {
	report := types.Report{Command: command}
	for _, d := range ds {
		record := d.Record()
		if record.Severity == types.SeverityWarning {
			report.Warnings = append(report.Warnings, record)
			continue
		}
		report.Errors = append(report.Errors, record)
	}
	return report
}
