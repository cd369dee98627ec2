// Package shared provides common utility functions used across multiple
// packages in the pkgdepend codebase.
package shared

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// NormalizePath cleans a delivered path and strips its leading slash, so
// "/usr//bin/../lib" and "usr/lib" compare equal.
func NormalizePath(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+value), "/")
}

// UniqueSorted returns the distinct values in sorted order.
func UniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// SplitNonEmpty splits value on sep and drops empty or blank fields.
func SplitNonEmpty(value string, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ErrorMessage returns the message of a coded error without its cause
// chain, falling back to err.Error() for plain errors.
func ErrorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
