package resolver

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/value"
)

// Resolve navigates node by path under the given scheme. It is total: any
// mismatch between scheme and node, unparsable input, or missing path yields
// an empty result, never an error. Template segments never reach here.
func Resolve(scheme query.Scheme, node *Node, path string) []any {
	if node == nil {
		return nil
	}
	switch scheme {
	case query.SchemeHTML:
		root := node.htmlRoot()
		if root == nil {
			return nil
		}
		return resolveHTML(root, path)
	case query.SchemeJSON:
		data, ok := node.jsonData()
		if !ok {
			return nil
		}
		return resolveJSON(data, path)
	case query.SchemeURL:
		return resolveURL(node.urlString(), path)
	default:
		return nil
	}
}

// Synthesize builds a fresh node of the segment's scheme from one piped
// value. It is total: values that do not parse are carried as text or as a
// bare JSON string so the pipe keeps flowing.
func Synthesize(scheme query.Scheme, v any, srcURL string) *Node {
	switch scheme {
	case query.SchemeHTML:
		if el, ok := v.(*Element); ok {
			return NewHTML(el.node, srcURL)
		}
		text := value.Stringify(v)
		if root, err := html.Parse(strings.NewReader(text)); err == nil {
			return NewHTML(root, srcURL)
		}
		return NewText(text, srcURL)
	case query.SchemeJSON:
		switch v.(type) {
		case map[string]any, []any, float64, int, int64, bool, nil:
			return NewJSON(v, srcURL)
		}
		text := value.Stringify(v)
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			return NewJSON(decoded, srcURL)
		}
		return NewJSON(text, srcURL)
	case query.SchemeURL:
		return NewURL(strings.TrimSpace(value.Stringify(v)), srcURL)
	default:
		return NewText(value.Stringify(v), srcURL)
	}
}

func (n *Node) htmlRoot() *html.Node {
	switch n.kind {
	case KindHTML:
		return n.root
	case KindText:
		root, err := html.Parse(strings.NewReader(n.text))
		if err != nil {
			return nil
		}
		return root
	default:
		return nil
	}
}

func (n *Node) jsonData() (any, bool) {
	switch n.kind {
	case KindJSON:
		return n.data, true
	case KindText:
		var decoded any
		if err := json.Unmarshal([]byte(n.text), &decoded); err != nil {
			return nil, false
		}
		return decoded, true
	default:
		return nil, false
	}
}

// urlString returns the URL a url segment navigates: the node itself when it
// wraps one, otherwise the document's source URL.
func (n *Node) urlString() string {
	if n.kind == KindURL && n.text != "" {
		return n.text
	}
	return n.src
}
