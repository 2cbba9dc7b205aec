package resolver

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// resolveHTML walks slash-separated selector steps. Element steps (`div`,
// `.class`, `#id`, `a.external`) search descendants of every current match
// in document order, deduplicated. A final `@attr` step — standalone or
// suffixed to a selector as `a@href` — extracts attribute values, and a
// final `text` step extracts trimmed text content; both end the walk with
// string results. An empty path yields the document itself.
func resolveHTML(root *html.Node, path string) []any {
	path = strings.TrimSpace(path)
	if path == "" {
		return []any{&Element{node: root}}
	}

	current := []*html.Node{root}
	steps := strings.Split(path, "/")
	for i, step := range steps {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		terminal := i == len(steps)-1
		switch {
		case strings.Contains(step, "@"):
			if !terminal {
				return nil
			}
			selPart, attrName, _ := strings.Cut(step, "@")
			if selPart != "" {
				current = matchStep(current, parseSelector(selPart))
			}
			return attrValues(current, attrName)
		case step == "text":
			if !terminal {
				return nil
			}
			return textValues(current)
		default:
			current = matchStep(current, parseSelector(step))
			if len(current) == 0 {
				return nil
			}
		}
	}

	out := make([]any, 0, len(current))
	for _, n := range current {
		out = append(out, &Element{node: n})
	}
	return out
}

// selector is one parsed element step: optional tag plus any number of
// `.class` markers and at most one `#id`.
type selector struct {
	tag     string
	id      string
	classes []string
}

func parseSelector(step string) selector {
	var sel selector
	rest := step
	for len(rest) > 0 {
		marker := strings.IndexAny(rest, ".#")
		if marker < 0 {
			if sel.tag == "" && sel.id == "" && len(sel.classes) == 0 {
				sel.tag = rest
			}
			break
		}
		if marker > 0 && sel.tag == "" && sel.id == "" && len(sel.classes) == 0 {
			sel.tag = rest[:marker]
		}
		kind := rest[marker]
		rest = rest[marker+1:]
		end := strings.IndexAny(rest, ".#")
		if end < 0 {
			end = len(rest)
		}
		name := rest[:end]
		rest = rest[end:]
		if name == "" {
			continue
		}
		if kind == '#' {
			sel.id = name
		} else {
			sel.classes = append(sel.classes, name)
		}
	}
	return sel
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && sel.tag != "*" && !strings.EqualFold(sel.tag, n.Data) {
		return false
	}
	if sel.id != "" {
		id, ok := attrValue(n, "id")
		if !ok || id != sel.id {
			return false
		}
	}
	if len(sel.classes) > 0 {
		classAttr, ok := attrValue(n, "class")
		if !ok {
			return false
		}
		classes := strings.Fields(classAttr)
		for _, want := range sel.classes {
			if !slices.Contains(classes, want) {
				return false
			}
		}
	}
	return true
}

// matchStep collects, in document order, every descendant of the current
// matches that satisfies sel. Nested matches are deduplicated.
func matchStep(current []*html.Node, sel selector) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]struct{})
	for _, node := range current {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if sel.matches(n) {
				if _, dup := seen[n]; !dup {
					seen[n] = struct{}{}
					out = append(out, n)
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	return out
}

func attrValues(current []*html.Node, name string) []any {
	var out []any
	for _, n := range current {
		if v, ok := attrValue(n, name); ok {
			out = append(out, v)
		}
	}
	return out
}

func textValues(current []*html.Node) []any {
	out := make([]any, 0, len(current))
	for _, n := range current {
		out = append(out, (&Element{node: n}).Text())
	}
	return out
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
