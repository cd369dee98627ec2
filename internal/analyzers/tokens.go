package analyzers

import (
	"runtime"
	"strings"
)

// UnexpandedToken is a run path holding a token with no known value.
type UnexpandedToken struct {
	RunPath string
	Token   string
}

// ExpandTokens substitutes dynamic tokens such as $PLATFORM in each path.
// A token runs from "$" to the next "/". A token with several values
// fans the path out into one path per value; remaining tokens in the
// result are expanded in turn. Paths holding an unknown token are
// dropped and reported.
func ExpandTokens(paths []string, tokens map[string][]string) ([]string, []UnexpandedToken) {
	var out []string
	var unknown []UnexpandedToken
	for _, p := range paths {
		start := strings.Index(p, "$")
		if start < 0 {
			out = append(out, p)
			continue
		}
		token := p[start:]
		if end := strings.Index(token, "/"); end > -1 {
			token = token[:end]
		}
		values, ok := tokens[token]
		if !ok {
			unknown = append(unknown, UnexpandedToken{RunPath: p, Token: token})
			continue
		}
		expanded := make([]string, 0, len(values))
		for _, value := range values {
			expanded = append(expanded, p[:start]+value+p[start+len(token):])
		}
		more, missing := ExpandTokens(expanded, tokens)
		out = append(out, more...)
		unknown = append(unknown, missing...)
	}
	return out, unknown
}

// DefaultPlatform maps the host architecture to a platform name.
func DefaultPlatform() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return "i86pc"
	case "sparc64":
		return "sun4v"
	default:
		return runtime.GOARCH
	}
}

// DefaultISAList lists the instruction sets the host can run, best first.
func DefaultISAList() []string {
	switch runtime.GOARCH {
	case "amd64":
		return []string{"amd64", "pentium_pro+mmx", "pentium_pro", "pentium+mmx", "pentium", "i486", "i386", "i86"}
	case "386":
		return []string{"pentium_pro+mmx", "pentium_pro", "pentium+mmx", "pentium", "i486", "i386", "i86"}
	case "sparc64":
		return []string{"sparcv9", "sparcv8plus", "sparcv8", "sparc"}
	default:
		return []string{runtime.GOARCH}
	}
}

// NormalizeToken prefixes a token name with "$" when missing.
func NormalizeToken(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "$") {
		return name
	}
	return "$" + name
}
