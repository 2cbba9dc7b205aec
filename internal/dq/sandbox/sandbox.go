// Package sandbox defines the contract for the external JavaScript
// evaluation environment used by the jseval transform. The engine only ever
// talks to this interface; wiring a real interpreter is the caller's choice.
package sandbox

import "errors"

// ErrUnavailable reports that no sandbox implementation was configured.
var ErrUnavailable = errors.New("sandbox unavailable")

// Sandbox evaluates scripts and extracts variables from them. Reset clears
// all global state; the engine calls it at most once per execution, and only
// when the query actually uses the sandbox.
type Sandbox interface {
	Reset()
	EvaluateAndExtract(script string, names []string) (any, error)
}

// Null is the default sandbox: evaluation always fails with ErrUnavailable,
// which the pipeline treats as a non-fatal transform error.
type Null struct{}

func (Null) Reset() {}

func (Null) EvaluateAndExtract(string, []string) (any, error) {
	return nil, ErrUnavailable
}
