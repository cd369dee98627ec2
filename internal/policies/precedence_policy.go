package policies

import (
	"pkgdepend/internal/types"
	"pkgdepend/internal/variant"
)

// ManualDepend is a hand-authored depend action reduced to what matters
// for precedence: the packages it names and where it applies.
type ManualDepend struct {
	Type  types.DependType
	Stems []string
	Set   variant.Set
}

// Covers reports whether a manual depend of this type already makes the
// named package part of the install.
func Covers(depType types.DependType) bool {
	switch depType {
	case types.DependTypeRequire, types.DependTypeRequireAny, types.DependTypeGroup, types.DependTypeIncorporate:
		return true
	default:
		return false
	}
}

// ApplyManual settles an automatic dependency on stem against the manual
// depends of the same manifest. Manual depends are never changed. The
// automatic one is dropped when a manual depend covers all of its
// combinations and loses the combinations of a manual depend applying to
// a strict subset of them. On partial overlap both are kept. keep is
// false when nothing of the automatic dependency remains.
func ApplyManual(stem string, auto variant.Set, manual []ManualDepend) (variant.Set, bool) {
	for _, m := range manual {
		if !Covers(m.Type) || !names(m.Stems, stem) {
			continue
		}
		switch {
		case auto.SubsetOf(m.Set):
			return auto.Minus(auto), false
		case m.Set.SubsetOf(auto):
			auto = auto.Minus(m.Set)
		}
	}
	return auto, !auto.IsEmpty()
}

func names(stems []string, stem string) bool {
	for _, s := range stems {
		if s == stem {
			return true
		}
	}
	return false
}
