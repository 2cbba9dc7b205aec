package transform

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jacoelho/dq/internal/dq/value"
)

// NameJSEval is the sandbox-backed transform; it is dispatched by the
// pipeline rather than the registry because it needs the sandbox handle.
const NameJSEval = "jseval"

func registerBuiltins(r *Registry) {
	r.Register("uppercase", stringTransform(strings.ToUpper))
	r.Register("lowercase", stringTransform(strings.ToLower))
	r.Register("titlecase", titlecase)
	r.Register("trim", stringTransform(strings.TrimSpace))
	r.Register("reverse", stringTransform(reverseString))
	r.Register("base64", stringTransform(func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	}))
	r.Register("base64decode", base64Decode)
	r.Register("urlencode", stringTransform(url.QueryEscape))
	r.Register("urldecode", urlDecode)
	r.Register("html2text", stringTransform(htmlToText))
	r.Register("md5", stringTransform(func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}))
	r.Register("sha1", stringTransform(func(s string) string {
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}))
	r.Register("sha256", stringTransform(func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}))
	r.Register("regexp", applyRegexp)
	r.Register("json", extractJSON)
	r.Register("yaml", parseYAML)
	r.Register("date", parseDate)
	r.Register("markdown", renderMarkdown)
	r.Register("uuid", newUUID)
}

// stringTransform lifts a pure string function into a Func operating on the
// element's string form.
func stringTransform(fn func(string) string) Func {
	return func(v any, _ string) (any, error) {
		return fn(value.Stringify(v)), nil
	}
}

func titlecase(v any, _ string) (any, error) {
	return cases.Title(language.Und).String(value.Stringify(v)), nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func base64Decode(v any, _ string) (any, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value.Stringify(v)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	return string(decoded), nil
}

func urlDecode(v any, _ string) (any, error) {
	decoded, err := url.QueryUnescape(value.Stringify(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	return decoded, nil
}

// htmlToText strips markup and collapses all whitespace runs to single
// spaces. Unparsable input passes through unchanged; the HTML parser is
// forgiving enough that this effectively never happens.
func htmlToText(s string) string {
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var words []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(words, " ")
}

func parseYAML(v any, _ string) (any, error) {
	var decoded any
	if err := yaml.Unmarshal([]byte(value.Stringify(v)), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	return decoded, nil
}

// parseDate accepts almost any date format and reformats it, by default as
// RFC 3339, or with the Go layout given as the argument.
func parseDate(v any, arg string) (any, error) {
	parsed, err := dateparse.ParseAny(strings.TrimSpace(value.Stringify(v)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	layout := arg
	if layout == "" {
		layout = time.RFC3339
	}
	return parsed.Format(layout), nil
}

func renderMarkdown(v any, _ string) (any, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(value.Stringify(v)), &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValue, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func newUUID(any, string) (any, error) {
	return uuid.NewString(), nil
}
