package manifest

import (
	"strings"
	"unicode"
)

// Format renders an action as a single manifest line with its attribute
// keys sorted. List attributes are written as repeated key=value pairs.
func Format(a Action) string {
	var b strings.Builder
	b.WriteString(string(a.Type))
	if a.Hash != "" {
		b.WriteString(" ")
		b.WriteString(a.Hash)
	}
	for _, key := range a.Attrs.Keys() {
		for _, value := range a.Attrs[key] {
			b.WriteString(" ")
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(quoteValue(value))
		}
	}
	return b.String()
}

func quoteValue(value string) string {
	if value != "" && !strings.ContainsAny(value, `"'`) && strings.IndexFunc(value, unicode.IsSpace) < 0 {
		return value
	}
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
