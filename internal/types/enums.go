package types

// DependencyKind names the analyzer (or link walk) that produced a
// file dependency.
type DependencyKind string

const (
	DependencyKindELF      DependencyKind = "elf"
	DependencyKindPython   DependencyKind = "python"
	DependencyKindScript   DependencyKind = "script"
	DependencyKindHardlink DependencyKind = "hardlink"
	DependencyKindLink     DependencyKind = "link"
	DependencyKindSMF      DependencyKind = "smf_manifest"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// DependType is the value of the type attribute on a depend action.
type DependType string

const (
	DependTypeConditional DependType = "conditional"
	DependTypeExclude     DependType = "exclude"
	DependTypeGroup       DependType = "group"
	DependTypeIncorporate DependType = "incorporate"
	DependTypeOptional    DependType = "optional"
	DependTypeOrigin      DependType = "origin"
	DependTypeParent      DependType = "parent"
	DependTypeRequire     DependType = "require"
	DependTypeRequireAny  DependType = "require-any"
)

// FileType is the payload classification used to dispatch analyzers.
type FileType string

const (
	FileTypeELF     FileType = "elf"
	FileTypeExec    FileType = "exec"
	FileTypeSMF     FileType = "smf_manifest"
	FileTypeUnknown FileType = "unknown"
)

// Tier orders the places a dependency may be satisfied from. Lower
// tiers are consulted first.
type Tier int

const (
	TierSelf Tier = iota
	TierBatch
	TierImage
)

func (t Tier) String() string {
	switch t {
	case TierSelf:
		return "self"
	case TierBatch:
		return "batch"
	case TierImage:
		return "image"
	default:
		return "unknown"
	}
}
