// Package resolver navigates already-fetched documents. Given a node and a
// resolved path it returns raw matches: pure lookups, no errors, an empty
// slice when nothing matches.
package resolver

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// Kind tags the concrete document type a Node wraps.
type Kind int

const (
	KindText Kind = iota
	KindHTML
	KindJSON
	KindURL
)

// String returns the kind name used by CLI --type values.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindJSON:
		return "json"
	case KindURL:
		return "url"
	default:
		return "text"
	}
}

// ParseKind maps a --type value to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "html":
		return KindHTML, true
	case "json":
		return KindJSON, true
	case "url":
		return KindURL, true
	case "text":
		return KindText, true
	default:
		return 0, false
	}
}

// Node is one input document plus the URL it was fetched from. The source
// URL feeds the pageUrl/rootUrl builtins and the url scheme's fallback.
type Node struct {
	kind Kind
	root *html.Node // KindHTML
	data any        // KindJSON, decoded
	text string     // raw source; authoritative for KindText and KindURL
	src  string
}

// Kind returns the node's document type.
func (n *Node) Kind() Kind { return n.kind }

// SourceURL returns the URL the document was fetched from, if any.
func (n *Node) SourceURL() string { return n.src }

// NewText wraps raw text. html/json segments over a text node parse it on
// demand; a url segment treats it as the URL itself.
func NewText(text, srcURL string) *Node {
	return &Node{kind: KindText, text: text, src: srcURL}
}

// NewURL wraps a URL string. Construction never fails; an unparsable URL
// simply yields no component matches.
func NewURL(raw, srcURL string) *Node {
	return &Node{kind: KindURL, text: raw, src: srcURL}
}

// NewJSON wraps an already-decoded JSON value.
func NewJSON(data any, srcURL string) *Node {
	return &Node{kind: KindJSON, data: data, src: srcURL}
}

// ParseJSON decodes a JSON document.
func ParseJSON(data []byte, srcURL string) (*Node, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return NewJSON(decoded, srcURL), nil
}

// NewHTML wraps an already-parsed HTML tree.
func NewHTML(root *html.Node, srcURL string) *Node {
	return &Node{kind: KindHTML, root: root, src: srcURL}
}

// ParseHTML parses an HTML document. The parser is forgiving, so this only
// fails on reader errors.
func ParseHTML(data []byte, srcURL string) (*Node, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return NewHTML(root, srcURL), nil
}

// Detect builds a node by sniffing the payload: documents that decode as
// JSON become JSON nodes, everything else parses as HTML.
func Detect(data []byte, srcURL string) *Node {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && strings.ContainsRune(`{["-0123456789tfn`, rune(trimmed[0])) {
		if node, err := ParseJSON(trimmed, srcURL); err == nil {
			return node
		}
	}
	if node, err := ParseHTML(data, srcURL); err == nil {
		return node
	}
	return NewText(string(data), srcURL)
}

// FromBytes builds a node of an explicitly requested kind.
func FromBytes(kind Kind, data []byte, srcURL string) (*Node, error) {
	switch kind {
	case KindJSON:
		return ParseJSON(data, srcURL)
	case KindHTML:
		return ParseHTML(data, srcURL)
	case KindURL:
		return NewURL(strings.TrimSpace(string(data)), srcURL), nil
	default:
		return NewText(string(data), srcURL), nil
	}
}
