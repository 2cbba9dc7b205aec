// Package transform implements the six-stage pipeline applied to a segment's
// raw matches and the open registry of named value transforms.
package transform

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrSpec reports a malformed transform specification, a bad regexp or
	// unparsable update JSON. The pipeline logs it and keeps the original
	// value so one typo never empties a result.
	ErrSpec = errors.New("invalid transform spec")
	// ErrValue reports an input a transform cannot apply to. The pipeline
	// logs it and drops that element.
	ErrValue = errors.New("value not transformable")
)

// Func is one named transform. It receives a single element (the pipeline
// maps over sequences) and the raw argument written after the transform
// name, already variable-resolved.
type Func func(v any, arg string) (any, error)

// Registry maps transform names to functions. It starts with the builtin
// set; callers may register more or replace builtins.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry populated with the builtin transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the transform registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists registered transform names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.funcs))
}

// Has reports whether name resolves to a registered transform or to the
// sandbox-backed jseval, which the pipeline handles itself.
func (r *Registry) Has(name string) bool {
	if name == NameJSEval {
		return true
	}
	_, ok := r.funcs[name]
	return ok
}
