package resolver

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/theory/jsonpath"
)

// resolveJSON navigates decoded JSON. Paths starting with `$` are full
// JSONPath expressions; everything else is a slash path where a step is an
// object key, an array index (negative counts from the end), or `*` for
// every element. Object wildcards iterate keys in sorted order so results
// are deterministic.
func resolveJSON(data any, path string) []any {
	path = strings.TrimSpace(path)
	if path == "" {
		return []any{data}
	}
	if strings.HasPrefix(path, "$") {
		parsed, err := jsonpath.Parse(path)
		if err != nil {
			return nil
		}
		return append([]any(nil), parsed.Select(data)...)
	}

	current := []any{data}
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			continue
		}
		var next []any
		for _, node := range current {
			next = append(next, jsonStep(node, step)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func jsonStep(node any, step string) []any {
	switch current := node.(type) {
	case map[string]any:
		if step == "*" {
			keys := slices.Sorted(maps.Keys(current))
			out := make([]any, 0, len(keys))
			for _, k := range keys {
				out = append(out, current[k])
			}
			return out
		}
		if v, ok := current[step]; ok {
			return []any{v}
		}
	case []any:
		if step == "*" {
			return current
		}
		idx, err := strconv.Atoi(step)
		if err != nil {
			return nil
		}
		if idx < 0 {
			idx += len(current)
		}
		if idx < 0 || idx >= len(current) {
			return nil
		}
		return []any{current[idx]}
	}
	return nil
}
