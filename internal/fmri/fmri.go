// Package fmri parses and orders package identities of the form
// pkg://publisher/name@release,build-branch:timestamp.
package fmri

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	debversion "github.com/knqyf263/go-deb-version"
)

var (
	dotSequence = regexp.MustCompile(`^\d+(\.\d+)*$`)
	timestampRe = regexp.MustCompile(`^\d{8}T\d{6}Z$`)
	nameRe      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_/\-\.\+]*$`)
)

// Version is the optional version part of an FMRI.
type Version struct {
	Release   string
	Build     string
	Branch    string
	Timestamp string
}

func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(v.Release)
	if v.Build != "" {
		b.WriteString("," + v.Build)
	}
	if v.Branch != "" {
		b.WriteString("-" + v.Branch)
	}
	if v.Timestamp != "" {
		b.WriteString(":" + v.Timestamp)
	}
	return b.String()
}

// Compare orders versions by release, branch and then timestamp. Build
// strings do not participate in ordering.
func (v Version) Compare(o Version) int {
	if c := compareDotSequence(v.Release, o.Release); c != 0 {
		return c
	}
	if c := compareDotSequence(v.Branch, o.Branch); c != 0 {
		return c
	}
	return strings.Compare(v.Timestamp, o.Timestamp)
}

type FMRI struct {
	Publisher string
	Name      string
	Version   Version
}

// Parse accepts pkg://publisher/name@version, pkg:/name@version and
// name@version, each with the version optional.
func Parse(value string) (FMRI, error) {
	raw := strings.TrimSpace(value)
	rest := raw
	var f FMRI
	switch {
	case strings.HasPrefix(rest, "pkg://"):
		rest = strings.TrimPrefix(rest, "pkg://")
		slash := strings.Index(rest, "/")
		if slash <= 0 {
			return FMRI{}, illegal(raw, "missing publisher or package name")
		}
		f.Publisher = rest[:slash]
		rest = rest[slash+1:]
	case strings.HasPrefix(rest, "pkg:/"):
		rest = strings.TrimPrefix(rest, "pkg:/")
	}
	name, version, hasVersion := strings.Cut(rest, "@")
	if !nameRe.MatchString(name) {
		return FMRI{}, illegal(raw, "invalid package name")
	}
	f.Name = name
	if hasVersion {
		parsed, err := parseVersion(version)
		if err != nil {
			return FMRI{}, illegal(raw, err.Error())
		}
		f.Version = parsed
	}
	return f, nil
}

func parseVersion(value string) (Version, error) {
	var v Version
	rest := value
	if before, ts, ok := strings.Cut(rest, ":"); ok {
		if !timestampRe.MatchString(ts) {
			return Version{}, fmt.Errorf("invalid timestamp %q", ts)
		}
		v.Timestamp = ts
		rest = before
	}
	if before, branch, ok := strings.Cut(rest, "-"); ok {
		if !dotSequence.MatchString(branch) {
			return Version{}, fmt.Errorf("invalid branch %q", branch)
		}
		v.Branch = branch
		rest = before
	}
	if before, build, ok := strings.Cut(rest, ","); ok {
		if !dotSequence.MatchString(build) {
			return Version{}, fmt.Errorf("invalid build release %q", build)
		}
		v.Build = build
		rest = before
	}
	if !dotSequence.MatchString(rest) {
		return Version{}, fmt.Errorf("invalid release %q", rest)
	}
	v.Release = rest
	return v, nil
}

func illegal(value string, reason string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("illegal FMRI %q: %s", value, reason))
}

// String renders the full FMRI.
func (f FMRI) String() string {
	var b strings.Builder
	if f.Publisher != "" {
		b.WriteString("pkg://" + f.Publisher + "/")
	} else {
		b.WriteString("pkg:/")
	}
	b.WriteString(f.Name)
	if !f.Version.IsZero() {
		b.WriteString("@" + f.Version.String())
	}
	return b.String()
}

// Short drops the publisher and timestamp, the form used in depend actions.
func (f FMRI) Short() string {
	s := "pkg:/" + f.Name
	if !f.Version.IsZero() {
		v := f.Version
		v.Timestamp = ""
		s += "@" + v.String()
	}
	return s
}

// Stem is the package name without publisher or version.
func (f FMRI) Stem() string {
	return f.Name
}

// Compare orders by name, then version.
func Compare(a, b FMRI) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return a.Version.Compare(b.Version)
}

// IsSuccessor reports whether f names the same package as other at the
// same or a newer version. An unversioned other is succeeded by any
// version of the package.
func (f FMRI) IsSuccessor(other FMRI) bool {
	if f.Name != other.Name {
		return false
	}
	if other.Version.IsZero() {
		return true
	}
	return f.Version.Compare(other.Version) >= 0
}

// Matches reports whether f matches a pattern. The pattern's name part
// may use shell wildcards and matches either the full name or its
// trailing path components; a version in the pattern must prefix-match.
func (f FMRI) Matches(pattern string) bool {
	p := strings.TrimSpace(pattern)
	p = strings.TrimPrefix(p, "pkg://")
	if strings.HasPrefix(strings.TrimSpace(pattern), "pkg://") {
		if _, afterPub, ok := strings.Cut(p, "/"); ok {
			p = afterPub
		}
	}
	p = strings.TrimPrefix(p, "pkg:/")
	namePattern, versionPattern, hasVersion := strings.Cut(p, "@")
	if !matchName(namePattern, f.Name) {
		return false
	}
	if hasVersion && versionPattern != "" && versionPattern != "*" {
		return strings.HasPrefix(f.Version.String(), strings.TrimSuffix(versionPattern, "*"))
	}
	return true
}

func matchName(pattern string, name string) bool {
	if ok, err := path.Match(pattern, name); err == nil && ok {
		return true
	}
	parts := strings.Split(name, "/")
	for i := 1; i < len(parts); i++ {
		if ok, err := path.Match(pattern, strings.Join(parts[i:], "/")); err == nil && ok {
			return true
		}
	}
	return false
}

// compareDotSequence orders numeric dot sequences segment by segment
// using Debian upstream version comparison.
func compareDotSequence(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	va, errA := debversion.NewVersion(a)
	vb, errB := debversion.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}
