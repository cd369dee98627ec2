package analyzers

import (
	"fmt"
	"regexp"
	"strings"
)

// PyImport is one imported name found by the static scanner. Level
// counts the leading dots of a relative import.
type PyImport struct {
	Module string
	Level  int
	From   bool
	Line   int
}

// PySyntaxError reports source the scanner could not tokenize.
type PySyntaxError struct {
	Line   int
	Reason string
}

func (e *PySyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

var pyIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type logicalLine struct {
	text string
	line int
}

// ScanPyImports lists the import statements of python source without
// executing it. Comments and string literals are blanked, physical lines
// are joined inside brackets and after backslashes, and statements are
// split on ";".
func ScanPyImports(src string) ([]PyImport, error) {
	lines, err := logicalLines(src)
	if err != nil {
		return nil, err
	}
	var out []PyImport
	for _, ll := range lines {
		for _, stmt := range strings.Split(ll.text, ";") {
			stmt = stripCompoundHeader(strings.TrimSpace(stmt))
			imports, err := parseImportStatement(stmt, ll.line)
			if err != nil {
				return nil, err
			}
			out = append(out, imports...)
		}
	}
	return out, nil
}

// stripCompoundHeader drops a leading one-line block opener such as
// "try:" or "if x:" so "try: import foo" is seen as an import.
func stripCompoundHeader(stmt string) string {
	for _, keyword := range []string{"try", "else", "finally", "if", "elif", "except", "with", "for", "while", "def", "class"} {
		if stmt != keyword && !strings.HasPrefix(stmt, keyword+" ") && !strings.HasPrefix(stmt, keyword+":") {
			continue
		}
		if i := strings.Index(stmt, ":"); i > -1 {
			return strings.TrimSpace(stmt[i+1:])
		}
	}
	return stmt
}

func parseImportStatement(stmt string, line int) ([]PyImport, error) {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return nil, nil
	}
	switch fields[0] {
	case "import":
		rest := strings.TrimSpace(strings.TrimPrefix(stmt, "import"))
		if rest == "" {
			return nil, &PySyntaxError{Line: line, Reason: "import statement without a module"}
		}
		var out []PyImport
		for _, part := range strings.Split(rest, ",") {
			name := strings.Fields(strings.TrimSpace(part))
			if len(name) == 0 || !validDotted(name[0]) {
				return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("invalid module name in %q", stmt)}
			}
			out = append(out, PyImport{Module: name[0], Line: line})
		}
		return out, nil
	case "from":
		if len(fields) < 3 {
			return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("incomplete from-import %q", stmt)}
		}
		source := fields[1]
		rest := fields[2:]
		// "from . import x" may be written "from .import x".
		if strings.HasSuffix(source, "import") && strings.Trim(source, ".") == "import" {
			rest = append([]string{"import"}, rest...)
			source = strings.TrimSuffix(source, "import")
		}
		if rest[0] != "import" {
			return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("expected import in %q", stmt)}
		}
		module := strings.TrimLeft(source, ".")
		level := len(source) - len(module)
		if (module == "" && level == 0) || (module != "" && !validDotted(module)) {
			return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("invalid module name in %q", stmt)}
		}
		if len(rest) < 2 {
			return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("nothing imported in %q", stmt)}
		}
		return []PyImport{{Module: module, Level: level, From: true, Line: line}}, nil
	default:
		return nil, nil
	}
}

func validDotted(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if !pyIdentifier.MatchString(part) {
			return false
		}
	}
	return true
}

func logicalLines(src string) ([]logicalLine, error) {
	var out []logicalLine
	var current strings.Builder
	depth := 0
	line := 1
	start := 1
	emit := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			out = append(out, logicalLine{text: text, line: start})
		}
		current.Reset()
	}
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			current.WriteByte(' ')
			i += 2
			line++
			continue
		case c == '\n':
			line++
			i++
			if depth > 0 {
				current.WriteByte(' ')
				continue
			}
			emit()
			start = line
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, &PySyntaxError{Line: line, Reason: fmt.Sprintf("unmatched %q", c)}
			}
		case c == '"' || c == '\'':
			end, lines, err := skipString(src, i, line)
			if err != nil {
				return nil, err
			}
			current.WriteString(`""`)
			line += lines
			i = end
			continue
		}
		if current.Len() == 0 {
			start = line
		}
		current.WriteByte(c)
		i++
	}
	if depth > 0 {
		return nil, &PySyntaxError{Line: line, Reason: "unexpected end of file inside brackets"}
	}
	emit()
	return out, nil
}

// skipString returns the index just past the literal starting at i and
// the number of newlines it spans. String prefixes such as r or b are
// left in the output as ordinary identifier characters.
func skipString(src string, i int, line int) (int, int, error) {
	quote := src[i]
	triple := strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3))
	raw := i > 0 && (src[i-1] == 'r' || src[i-1] == 'R')
	j := i + 1
	if triple {
		j = i + 3
	}
	lines := 0
	for j < len(src) {
		c := src[j]
		if c == '\\' && !raw && j+1 < len(src) {
			if src[j+1] == '\n' {
				lines++
			}
			j += 2
			continue
		}
		if c == '\\' && raw && j+1 < len(src) && src[j+1] == quote {
			j += 2
			continue
		}
		if c == '\n' {
			if !triple {
				return 0, 0, &PySyntaxError{Line: line, Reason: "end of line inside string literal"}
			}
			lines++
		}
		if c == quote {
			if !triple {
				return j + 1, lines, nil
			}
			if strings.HasPrefix(src[j:], strings.Repeat(string(quote), 3)) {
				return j + 3, lines, nil
			}
		}
		j++
	}
	return 0, 0, &PySyntaxError{Line: line, Reason: "unterminated string literal"}
}
