package vars

import (
	"strings"

	"github.com/jacoelho/dq/internal/dq/value"
)

// Resolve substitutes every `${...}` occurrence in s. A placeholder whose
// body names a saved variable becomes that variable's string form; any other
// body is handed to the expression evaluator. Placeholders that cannot be
// resolved are kept literally, unterminated ones included.
func (e *Environment) Resolve(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			out.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			out.WriteString(s)
			break
		}
		end += start
		out.WriteString(s[:start])
		placeholder := s[start : end+1]
		body := strings.TrimSpace(s[start+2 : end])
		if resolved, ok := e.resolvePlaceholder(body); ok {
			out.WriteString(resolved)
		} else {
			out.WriteString(placeholder)
		}
		s = s[end+1:]
	}
	return out.String()
}

func (e *Environment) resolvePlaceholder(body string) (string, bool) {
	if body == "" {
		return "", false
	}
	if v, ok := e.values[body]; ok {
		return value.Stringify(v), true
	}
	result, err := Evaluate(body, e)
	if err != nil {
		return "", false
	}
	return value.Stringify(result), true
}
