// Package execute runs parsed queries: combinator semantics, the pipe and
// array-pipe boundaries, variable threading, and discard filtering.
package execute

import (
	"fmt"
	"io"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/resolver"
	"github.com/jacoelho/dq/internal/dq/sandbox"
	"github.com/jacoelho/dq/internal/dq/transform"
	"github.com/jacoelho/dq/internal/dq/value"
)

// Engine evaluates queries against document nodes. Engines are cheap and
// safe for concurrent use as long as the configured sandbox is; every
// Execute call builds its own variable environment.
type Engine struct {
	registry *transform.Registry
	sandbox  sandbox.Sandbox
	errOut   io.Writer
}

// Option configures an Engine.
type Option func(*Engine)

// WithSandbox wires the JavaScript sandbox used by the jseval transform.
func WithSandbox(sb sandbox.Sandbox) Option {
	return func(e *Engine) {
		if sb != nil {
			e.sandbox = sb
		}
	}
}

// WithErrorOutput directs non-fatal transform errors to w. The default
// discards them.
func WithErrorOutput(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.errOut = w
		}
	}
}

// WithRegistry replaces the builtin transform registry.
func WithRegistry(r *transform.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// New returns an engine with the builtin transforms, no sandbox, and
// discarded error output.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: transform.NewRegistry(),
		sandbox:  sandbox.Null{},
		errOut:   io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) logf(format string, args ...any) {
	fmt.Fprintf(e.errOut, format+"\n", args...)
}

// Execute runs the query over node and returns the simplified result: nil
// when nothing matched, the bare element for a single match, a sequence
// otherwise. initial variables are installed after the builtins.
func (e *Engine) Execute(q *query.Query, node *resolver.Node, initial map[string]any) (any, error) {
	values, _, err := e.run(q, node, initial)
	if err != nil {
		return nil, err
	}
	return value.Simplify(values), nil
}

// ExecuteAll is Execute without simplification: the raw ordered sequence,
// empty included.
func (e *Engine) ExecuteAll(q *query.Query, node *resolver.Node, initial map[string]any) ([]any, error) {
	values, _, err := e.run(q, node, initial)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Capture runs the query and additionally returns a snapshot of every
// variable saved during execution, so callers can thread state into later
// queries.
func (e *Engine) Capture(q *query.Query, node *resolver.Node, initial map[string]any) (any, map[string]any, error) {
	values, env, err := e.run(q, node, initial)
	if err != nil {
		return nil, nil, err
	}
	return value.Simplify(values), env.Snapshot(), nil
}
