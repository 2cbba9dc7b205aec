package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jacoelho/dq/internal/dq/value"
)

// extractJSON implements `json[:name]`. Without an argument the whole input
// must be a JSON literal. With one, the input is treated as script text and
// the literal assigned to the named JS-style variable is located first, so
// values can be pulled out of inline <script> blocks.
func extractJSON(v any, arg string) (any, error) {
	text := value.Stringify(v)
	literal := strings.TrimSpace(text)
	if arg != "" {
		found, ok := findAssignment(text, arg)
		if !ok {
			return nil, fmt.Errorf("%w: no assignment to %q", ErrValue, arg)
		}
		literal = found
	}
	var decoded any
	if err := json.Unmarshal([]byte(literal), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	return decoded, nil
}

// findAssignment locates `name = <literal>` in script text and returns the
// literal: a balanced object or array, a quoted string, or a bare token up
// to the next statement end.
func findAssignment(script, name string) (string, bool) {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\s*=\s*`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(script)
	if loc == nil {
		return "", false
	}
	return scanLiteral(script[loc[1]:])
}

func scanLiteral(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return "", false
	}
	switch s[0] {
	case '{', '[':
		end := balancedEnd(s)
		if end < 0 {
			return "", false
		}
		return s[:end], true
	case '"', '\'':
		content, ok := scanQuoted(s)
		if !ok {
			return "", false
		}
		// Re-quote so single-quoted JS strings decode as JSON.
		encoded, err := json.Marshal(content)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	default:
		end := strings.IndexAny(s, ";\n")
		if end < 0 {
			end = len(s)
		}
		return strings.TrimSpace(s[:end]), true
	}
}

// balancedEnd returns the index just past the bracket that closes s[0],
// skipping brackets inside string literals.
func balancedEnd(s string) int {
	depth := 0
	var inString byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func scanQuoted(s string) (string, bool) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if c == quote {
			return b.String(), true
		}
		b.WriteByte(c)
	}
	return "", false
}
