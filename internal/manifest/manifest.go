package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/fmri"
	"pkgdepend/internal/variant"
)

// FMRIAttr is the set action naming the package.
const FMRIAttr = "pkg.fmri"

// SourceLine is one logical line of the manifest text. Action is the
// index into Actions, or -1 for comments and blank lines.
type SourceLine struct {
	Text   string
	Action int
}

type Manifest struct {
	Path    string
	Actions []Action
	Lines   []SourceLine
}

// Parse reads manifest text. Lines ending in a backslash continue on the
// next line. Any malformed action rejects the whole manifest.
func Parse(path string, r io.Reader) (*Manifest, error) {
	m := &Manifest{Path: path}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	var pending []string
	var logical strings.Builder
	startLine := 0
	flush := func() error {
		raw := strings.Join(pending, "\n")
		text := logical.String()
		pending = nil
		logical.Reset()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			m.Lines = append(m.Lines, SourceLine{Text: raw, Action: -1})
			return nil
		}
		action, err := ParseAction(trimmed)
		if err != nil {
			var malformed *MalformedActionError
			if errors.As(err, &malformed) {
				malformed.Line = startLine
			}
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("malformed manifest %s: %s", path, err)).
				WithCause(err)
		}
		m.Lines = append(m.Lines, SourceLine{Text: raw, Action: len(m.Actions)})
		m.Actions = append(m.Actions, action)
		return nil
	}
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(pending) == 0 {
			startLine = lineNo
		}
		pending = append(pending, line)
		if strings.HasSuffix(line, "\\") && !strings.HasPrefix(strings.TrimSpace(line), "#") {
			logical.WriteString(strings.TrimSuffix(line, "\\"))
			logical.WriteString(" ")
			continue
		}
		logical.WriteString(line)
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read manifest " + path).
			WithCause(err)
	}
	if len(pending) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// New builds a manifest from in-memory actions.
func New(path string, actions []Action) *Manifest {
	m := &Manifest{Path: path}
	for _, action := range actions {
		m.Lines = append(m.Lines, SourceLine{Text: Format(action), Action: len(m.Actions)})
		m.Actions = append(m.Actions, action)
	}
	return m
}

// Attr returns the values of the first set action with the given name.
func (m *Manifest) Attr(name string) []string {
	for _, action := range m.Actions {
		if action.Type == ActionSet && action.Attrs.Get("name") == name {
			return action.Attrs.List("value")
		}
	}
	return nil
}

// FMRIText is the declared package FMRI, or "" when undeclared.
func (m *Manifest) FMRIText() string {
	values := m.Attr(FMRIAttr)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// FMRI parses the declared package FMRI. An undeclared FMRI falls back
// to the manifest's file name.
func (m *Manifest) FMRI() (fmri.FMRI, error) {
	if text := m.FMRIText(); text != "" {
		return fmri.Parse(text)
	}
	return fmri.Parse(filepath.Base(m.Path))
}

// Name identifies the manifest in diagnostics.
func (m *Manifest) Name() string {
	if text := m.FMRIText(); text != "" {
		return text
	}
	return m.Path
}

// Variants collects the axis domains declared by set name=variant.* actions.
func (m *Manifest) Variants() variant.Template {
	t := variant.Template{}
	for _, action := range m.Actions {
		if action.Type != ActionSet {
			continue
		}
		name := action.Attrs.Get("name")
		if !variant.IsVariant(name) {
			continue
		}
		t.Merge(variant.Template{name: action.Attrs.List("value")})
	}
	return t
}

// ActionVariants is the union of every variant tag used by the actions.
func (m *Manifest) ActionVariants() variant.Template {
	t := variant.Template{}
	for _, action := range m.Actions {
		t.Merge(action.Variants())
	}
	return t
}

func (m *Manifest) ActionsByType(t ActionType) []Action {
	var out []Action
	for _, action := range m.Actions {
		if action.Type == t {
			out = append(out, action)
		}
	}
	return out
}

// Text serializes every action, one per line.
func (m *Manifest) Text() string {
	var b strings.Builder
	for _, action := range m.Actions {
		b.WriteString(Format(action))
		b.WriteString("\n")
	}
	return b.String()
}

// WithActions returns a copy of the manifest with extra actions appended.
func (m *Manifest) WithActions(actions ...Action) *Manifest {
	out := &Manifest{Path: m.Path}
	out.Actions = append(out.Actions, m.Actions...)
	out.Lines = append(out.Lines, m.Lines...)
	for _, action := range actions {
		out.Lines = append(out.Lines, SourceLine{Text: Format(action), Action: len(out.Actions)})
		out.Actions = append(out.Actions, action)
	}
	return out
}
