package manifest

import (
	"fmt"
	"strings"
	"unicode"
)

// MalformedActionError describes an action line that cannot be parsed.
type MalformedActionError struct {
	Line   int
	Text   string
	Pos    int
	Reason string
}

func (e *MalformedActionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: malformed action at position %d: %s: %s", e.Line, e.Pos, e.Reason, e.Text)
	}
	return fmt.Sprintf("malformed action at position %d: %s: %s", e.Pos, e.Reason, e.Text)
}

// ParseAction parses a single action line.
func ParseAction(text string) (Action, error) {
	line := strings.TrimSpace(text)
	fail := func(pos int, reason string) (Action, error) {
		return Action{}, &MalformedActionError{Text: line, Pos: pos, Reason: reason}
	}

	end := strings.IndexFunc(line, unicode.IsSpace)
	if end < 0 {
		if line == "" {
			return fail(0, "empty action")
		}
		return fail(len(line), "no attributes")
	}
	keyword := line[:end]
	if !KnownActionType(keyword) {
		return fail(0, fmt.Sprintf("unknown action type %q", keyword))
	}
	action := NewAction(ActionType(keyword))

	pos := end
	first := true
	for {
		for pos < len(line) && unicode.IsSpace(rune(line[pos])) {
			pos++
		}
		if pos >= len(line) {
			break
		}
		start := pos
		for pos < len(line) && line[pos] != '=' && !unicode.IsSpace(rune(line[pos])) {
			if line[pos] == '"' || line[pos] == '\'' {
				return fail(pos, "quote in key")
			}
			pos++
		}
		token := line[start:pos]
		if pos >= len(line) || line[pos] != '=' {
			if first && action.Type.hasPayload() {
				action.Hash = token
				first = false
				continue
			}
			if pos < len(line) {
				rest := strings.TrimLeftFunc(line[pos:], unicode.IsSpace)
				if strings.HasPrefix(rest, "=") {
					return fail(pos, "whitespace in key")
				}
			}
			return fail(start, "missing value")
		}
		first = false
		if token == "" {
			return fail(start, "missing key")
		}
		pos++
		if pos >= len(line) || unicode.IsSpace(rune(line[pos])) {
			return fail(pos, "missing value")
		}
		var value string
		if quote := line[pos]; quote == '"' || quote == '\'' {
			var b strings.Builder
			pos++
			closed := false
			for pos < len(line) {
				c := line[pos]
				if c == '\\' && pos+1 < len(line) && (line[pos+1] == quote || line[pos+1] == '\\') {
					b.WriteByte(line[pos+1])
					pos += 2
					continue
				}
				if c == quote {
					closed = true
					pos++
					break
				}
				b.WriteByte(c)
				pos++
			}
			if !closed {
				return fail(pos, "unfinished quoted value")
			}
			if pos < len(line) && !unicode.IsSpace(rune(line[pos])) {
				return fail(pos, "text after quoted value")
			}
			value = b.String()
		} else {
			vstart := pos
			for pos < len(line) && !unicode.IsSpace(rune(line[pos])) {
				pos++
			}
			value = line[vstart:pos]
		}
		action.Attrs.Add(token, value)
	}
	if len(action.Attrs) == 0 {
		return fail(len(line), "no attributes")
	}
	return action, nil
}
