package policies

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/analyzers"
)

// BypassPolicy decides which candidate paths of a generated dependency
// are dropped because the package declared them with
// pkg.depend.bypass-generate.
type BypassPolicy struct {
	Values  []string
	exact   map[string]struct{}
	regexps []*regexp.Regexp
	all     bool
}

// NewBypassPolicy compiles bypass values. A value holding "*" or "?" is a
// regular expression; a bare file name matches that name in any
// directory; anything else is an exact path. Every expression is
// anchored at both ends.
func NewBypassPolicy(values []string) (BypassPolicy, error) {
	policy := BypassPolicy{exact: map[string]struct{}{}}
	for _, raw := range values {
		value := strings.TrimLeft(strings.TrimSpace(raw), "/")
		if value == "" {
			continue
		}
		policy.Values = append(policy.Values, value)
		if value == ".*" || value == "^.*$" {
			policy.all = true
			continue
		}
		expr := value
		switch {
		case strings.ContainsAny(value, "*?"):
		case !strings.Contains(value, "/"):
			expr = ".*/" + value
		default:
			policy.exact[value] = struct{}{}
			continue
		}
		re, err := regexp.Compile("^" + strings.TrimSuffix(strings.TrimPrefix(expr, "^"), "$") + "$")
		if err != nil {
			return BypassPolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid bypass expression %q", value)).
				WithCause(err)
		}
		policy.regexps = append(policy.regexps, re)
	}
	return policy, nil
}

// IsEmpty reports whether the policy bypasses nothing.
func (p BypassPolicy) IsEmpty() bool {
	return len(p.Values) == 0
}

// SkipsAll reports whether analysis of the file is bypassed entirely.
func (p BypassPolicy) SkipsAll() bool {
	return p.all
}

// Matches reports whether a candidate path is bypassed.
func (p BypassPolicy) Matches(candidate string) bool {
	if p.all {
		return true
	}
	if _, ok := p.exact[candidate]; ok {
		return true
	}
	for _, re := range p.regexps {
		if re.MatchString(candidate) {
			return true
		}
	}
	return false
}

// Apply removes bypassed candidates from dep. When some but not all
// candidates are bypassed the rest become the dependency's full paths.
// keep is false when nothing is left to depend on.
func (p BypassPolicy) Apply(dep analyzers.FileDependency) (analyzers.FileDependency, []string, bool) {
	if p.IsEmpty() {
		return dep, nil, true
	}
	var remaining, bypassed []string
	for _, candidate := range dep.Candidates() {
		if p.Matches(candidate) {
			bypassed = append(bypassed, candidate)
			continue
		}
		remaining = append(remaining, candidate)
	}
	if len(bypassed) == 0 {
		return dep, nil, true
	}
	sort.Strings(bypassed)
	if len(remaining) == 0 {
		return analyzers.FileDependency{}, bypassed, false
	}
	sort.Strings(remaining)
	dep.FullPaths = remaining
	dep.Files = nil
	dep.RunPaths = nil
	return dep, bypassed, true
}
