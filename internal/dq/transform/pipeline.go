package transform

import (
	"encoding/json"
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/sandbox"
	"github.com/jacoelho/dq/internal/dq/value"
	"github.com/jacoelho/dq/internal/dq/vars"
)

// Pipeline applies a segment's stage specs to its raw matches. Stage order
// is fixed (transform, update, filter, index, save, keep) no matter how the
// parameters were written. Failures here are never fatal: they are logged
// and execution continues per stage semantics.
type Pipeline struct {
	Registry *Registry
	Sandbox  sandbox.Sandbox
	Logf     func(format string, args ...any)
}

// NewPipeline wires a pipeline with safe defaults for any nil collaborator.
func NewPipeline(reg *Registry, sb sandbox.Sandbox, logf func(string, ...any)) *Pipeline {
	if reg == nil {
		reg = NewRegistry()
	}
	if sb == nil {
		sb = sandbox.Null{}
	}
	return &Pipeline{Registry: reg, Sandbox: sb, Logf: logf}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// Apply runs every stage over values. Specs must already be
// variable-resolved; env only receives writes from the save stage.
func (p *Pipeline) Apply(values []any, specs map[query.Stage][]string, env *vars.Environment) []any {
	for _, stage := range query.Stages() {
		switch stage {
		case query.StageTransform:
			for _, spec := range specs[stage] {
				values = p.applyTransform(values, spec)
			}
		case query.StageUpdate:
			for _, spec := range specs[stage] {
				values = p.applyUpdate(values, spec)
			}
		case query.StageFilter:
			for _, spec := range specs[stage] {
				values = applyFilter(values, spec)
			}
		case query.StageIndex:
			for _, spec := range specs[stage] {
				values = p.applyIndex(values, spec)
			}
		case query.StageSave:
			for _, name := range specs[stage] {
				if name == "" {
					continue
				}
				env.Set(name, value.Simplify(values))
			}
		case query.StageKeep:
			if len(specs[query.StageSave]) > 0 && len(specs[query.StageKeep]) == 0 {
				values = discardAll(values)
			}
		}
	}
	return values
}

// applyTransform maps one named transform over every element. A failing
// element either passes through unchanged (spec-level problems) or drops
// out (value-level problems); the distinction rides on the wrapped sentinel.
func (p *Pipeline) applyTransform(values []any, spec string) []any {
	name, arg, _ := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)

	if name == NameJSEval {
		return p.applyJSEval(values, arg)
	}

	fn, ok := p.Registry.Lookup(name)
	if !ok {
		p.logf("unknown transform %q", name)
		return values
	}

	out := make([]any, 0, len(values))
	for _, el := range values {
		res, err := fn(el, arg)
		if err != nil {
			p.logf("transform %s: %v", name, err)
			if errors.Is(err, ErrValue) {
				continue
			}
			res = el
		}
		out = append(out, res)
	}
	return out
}

// applyJSEval sends each element to the sandbox as script text. Optional
// comma-separated variable names select what to extract after evaluation.
func (p *Pipeline) applyJSEval(values []any, arg string) []any {
	var names []string
	for _, name := range strings.Split(arg, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	var out []any
	for _, el := range values {
		res, err := p.Sandbox.EvaluateAndExtract(value.Stringify(el), names)
		if err != nil {
			p.logf("transform jseval: %v", err)
			continue
		}
		out = append(out, res)
	}
	return out
}

// applyUpdate merges a JSON object literal into every map-valued element.
// Elements stay untouched when the literal does not parse or the element is
// not a map.
func (p *Pipeline) applyUpdate(values []any, spec string) []any {
	var patch map[string]any
	if err := json.Unmarshal([]byte(spec), &patch); err != nil {
		p.logf("update %q: %v", spec, err)
		return values
	}

	out := make([]any, 0, len(values))
	for _, el := range values {
		m, ok := el.(map[string]any)
		if !ok {
			p.logf("update: value %T is not an object", el)
			out = append(out, el)
			continue
		}
		merged := maps.Clone(m)
		maps.Copy(merged, patch)
		out = append(out, merged)
	}
	return out
}

// applyFilter keeps elements satisfying every space-separated sub-pattern:
// bare words require substring containment, `!word` forbids it. Escaped
// spaces (`\ `) join words into one pattern.
func applyFilter(values []any, spec string) []any {
	patterns := splitFilterWords(spec)
	if len(patterns) == 0 {
		return values
	}

	out := values[:0:0]
	for _, el := range values {
		s := value.Stringify(el)
		if matchesAll(s, patterns) {
			out = append(out, el)
		}
	}
	return out
}

func matchesAll(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if negated := strings.HasPrefix(pattern, "!"); negated {
			if strings.Contains(s, pattern[1:]) {
				return false
			}
		} else if !strings.Contains(s, pattern) {
			return false
		}
	}
	return true
}

func splitFilterWords(spec string) []string {
	var words []string
	var b strings.Builder
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c == '\\' && i+1 < len(spec) && spec[i+1] == ' ' {
			b.WriteByte(' ')
			i++
			continue
		}
		if c == ' ' {
			if b.Len() > 0 {
				words = append(words, b.String())
				b.Reset()
			}
			continue
		}
		b.WriteByte(c)
	}
	if b.Len() > 0 {
		words = append(words, b.String())
	}
	return words
}

// applyIndex selects one element, counting from the end for negative
// indexes. Out of range is absent, not an error; an unparsable index is
// logged and also yields absent.
func (p *Pipeline) applyIndex(values []any, spec string) []any {
	idx, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		p.logf("index %q: %v", spec, err)
		return nil
	}
	if idx < 0 {
		idx += len(values)
	}
	if idx < 0 || idx >= len(values) {
		return nil
	}
	return []any{values[idx]}
}

func discardAll(values []any) []any {
	out := make([]any, 0, len(values))
	for _, el := range values {
		out = append(out, value.Discard{Value: el})
	}
	return out
}
