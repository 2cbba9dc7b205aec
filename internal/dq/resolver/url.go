package resolver

import (
	"net/url"
	"strings"
)

// resolveURL extracts components from a URL string. An empty path yields the
// normalized URL itself; otherwise the first step names a component and
// `query/<key>` returns every value of one query parameter. Missing
// components yield no match so `||` fallbacks work naturally.
func resolveURL(raw, path string) []any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return []any{parsed.String()}
	}

	component, rest, _ := strings.Cut(path, "/")
	switch component {
	case "scheme":
		return nonEmpty(parsed.Scheme)
	case "host":
		return nonEmpty(parsed.Hostname())
	case "port":
		return nonEmpty(parsed.Port())
	case "path":
		return nonEmpty(parsed.Path)
	case "fragment":
		return nonEmpty(parsed.Fragment)
	case "query":
		if rest == "" {
			return nonEmpty(parsed.RawQuery)
		}
		values := parsed.Query()[rest]
		out := make([]any, 0, len(values))
		for _, v := range values {
			out = append(out, v)
		}
		return out
	default:
		return nil
	}
}

func nonEmpty(s string) []any {
	if s == "" {
		return nil
	}
	return []any{s}
}
