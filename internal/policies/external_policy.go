package policies

import (
	"sort"
	"strings"

	"pkgdepend/internal/fmri"
)

// ExternalPolicy matches providers from outside the batch against the
// patterns of external package files. A pattern is a package name, an
// FMRI with a version prefix, or a glob using "*" and "?".
type ExternalPolicy struct {
	Patterns    []string
	exactByName map[string][]int
	globs       []int
	wildcardAny int
}

func NewExternalPolicy(patterns []string) ExternalPolicy {
	policy := ExternalPolicy{wildcardAny: -1}
	for _, raw := range patterns {
		if pattern := strings.TrimSpace(raw); pattern != "" {
			policy.Patterns = append(policy.Patterns, pattern)
		}
	}
	policy.compile()
	return policy
}

func (p *ExternalPolicy) compile() {
	p.exactByName = map[string][]int{}
	for idx, pattern := range p.Patterns {
		switch {
		case pattern == "*":
			if p.wildcardAny < 0 {
				p.wildcardAny = idx
			}
		case strings.ContainsAny(pattern, "*?@") || strings.HasPrefix(pattern, "pkg:"):
			p.globs = append(p.globs, idx)
		default:
			p.exactByName[pattern] = append(p.exactByName[pattern], idx)
		}
	}
}

// Match returns the indexes of every pattern naming the provider.
func (p ExternalPolicy) Match(provider fmri.FMRI) []int {
	var out []int
	out = append(out, p.exactByName[provider.Name]...)
	parts := strings.Split(provider.Name, "/")
	for i := 1; i < len(parts); i++ {
		out = append(out, p.exactByName[strings.Join(parts[i:], "/")]...)
	}
	for _, idx := range p.globs {
		if provider.Matches(p.Patterns[idx]) {
			out = append(out, idx)
		}
	}
	if p.wildcardAny >= 0 {
		out = append(out, p.wildcardAny)
	}
	sort.Ints(out)
	return out
}

// Partition splits the external providers a resolve run used into those
// no pattern lists and reports the patterns no provider matched.
func (p ExternalPolicy) Partition(providers []fmri.FMRI) (unlisted []string, unused []string) {
	used := make([]bool, len(p.Patterns))
	for _, provider := range providers {
		matches := p.Match(provider)
		if len(matches) == 0 {
			unlisted = append(unlisted, provider.Short())
			continue
		}
		for _, idx := range matches {
			used[idx] = true
		}
	}
	for idx, ok := range used {
		if !ok {
			unused = append(unused, p.Patterns[idx])
		}
	}
	sort.Strings(unlisted)
	sort.Strings(unused)
	return unlisted, unused
}
