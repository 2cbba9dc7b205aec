package resolver

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// Element is an opaque HTML match. It stays structured while piped between
// segments and renders as outer HTML when stringified.
type Element struct {
	node *html.Node
}

// String renders the element as outer HTML.
func (e *Element) String() string {
	var sb strings.Builder
	if err := html.Render(&sb, e.node); err != nil {
		return ""
	}
	return sb.String()
}

// Text returns the element's concatenated text content, trimmed.
func (e *Element) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return strings.TrimSpace(sb.String())
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// MarshalJSON encodes the element as its outer HTML string, so structured
// results serialize cleanly at array-pipe boundaries.
func (e *Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}
