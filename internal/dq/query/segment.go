package query

import (
	"fmt"
	"strings"
)

// parseSegment parses one `[scheme:]path[?params]` token. The scheme must be
// one of the four known names; a missing scheme means html. Everything after
// the first `?` is the parameter list. A second `?` is not a structural
// error here (the validate package flags it) so the pair keeps it verbatim.
func parseSegment(raw string, required, pipe bool) (Segment, error) {
	seg := Segment{
		Raw:      raw,
		Scheme:   SchemeHTML,
		Required: required,
		Pipe:     pipe,
		Specs:    make(map[Stage][]string),
	}

	head := raw
	var params string
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		head, params = raw[:i], raw[i+1:]
	}

	seg.Path = head
	if i := strings.IndexByte(head, ':'); i >= 0 {
		name := head[:i]
		if isSchemeToken(name) {
			scheme, ok := ParseScheme(name)
			if !ok {
				return Segment{}, fmt.Errorf("%w: %q in %q", ErrUnsupportedScheme, name, raw)
			}
			seg.Scheme = scheme
			seg.Path = head[i+1:]
		}
	}

	if params != "" {
		if err := parseParams(&seg, params); err != nil {
			return Segment{}, err
		}
	}

	return seg, nil
}

// isSchemeToken reports whether text before the first colon can be a scheme
// name at all. Paths like `a/b:c` or `$.store:x` keep their colon; only an
// all-letter prefix is treated as a scheme and then checked against the
// known set.
func isSchemeToken(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// parseParams splits the parameter list into pairs on unescaped `&`, then
// routes each pair either into the transform-pipeline spec table or the
// plain parameter list.
func parseParams(seg *Segment, params string) error {
	for _, pair := range splitUnescaped(params, '&') {
		if pair == "" {
			continue
		}

		key := pair
		value := ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key, value = pair[:i], pair[i+1:]
		}

		seg.Params = append(seg.Params, Param{Key: key, Value: value})

		switch key {
		case "regexp":
			// regexp=/pat/rep/ is sugar for transform=regexp:/pat/rep/.
			seg.Specs[StageTransform] = append(seg.Specs[StageTransform], "regexp:"+unescape(value))
		case "transform", "update", "filter":
			stage, _ := ParseStage(key)
			for _, spec := range splitSpecs(value) {
				seg.Specs[stage] = append(seg.Specs[stage], unescape(spec))
			}
		default:
			if stage, ok := ParseStage(key); ok {
				seg.Specs[stage] = append(seg.Specs[stage], unescape(value))
			}
		}
	}
	return nil
}

// splitUnescaped splits s on sep, ignoring separators preceded by a
// backslash. The backslash stays in place; consumers unescape later.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// splitSpecs splits a transform/update/filter value into individual specs on
// unescaped `;`. A spec opening with `regexp:/` suppresses splitting until
// its closing delimiter, so `regexp:/a;b/x/;uppercase` yields two specs.
func splitSpecs(value string) []string {
	var specs []string
	start := 0
	i := 0
	for i < len(value) {
		if value[i] == '\\' {
			i += 2
			continue
		}
		if strings.HasPrefix(value[i:], "regexp:/") && i == start {
			i = regexpSpecEnd(value, i+len("regexp:"))
			continue
		}
		if value[i] == ';' {
			specs = append(specs, value[start:i])
			start = i + 1
		}
		i++
	}
	specs = append(specs, value[start:])

	out := specs[:0]
	for _, spec := range specs {
		if spec != "" {
			out = append(out, spec)
		}
	}
	return out
}

// regexpSpecEnd returns the index just past the closing delimiter of a
// /pattern/replacement/ literal starting at open. Escaped slashes (`\/`) do
// not close a section. An unterminated literal runs to the end of the value;
// execution reports it as a bad regexp there.
func regexpSpecEnd(s string, open int) int {
	slashes := 0
	for i := open; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '/' {
			slashes++
			if slashes == 3 {
				return i + 1
			}
		}
	}
	return len(s)
}

// unescape resolves the separator escapes the splitters honoured. Escaped
// spaces stay intact for the filter stage, which owns word splitting.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '&' || s[i+1] == ';') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
