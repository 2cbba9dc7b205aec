// Package vars implements the variable environment threaded through one
// query execution: saved values, the seeded builtins, and best-effort
// `${...}` placeholder resolution.
package vars

import (
	"maps"
	"net/url"

	"github.com/jacoelho/dq/internal/dq/clock"
)

// Builtin variable names seeded once per top-level execution.
const (
	BuiltinTime    = "time"
	BuiltinPageURL = "pageUrl"
	BuiltinRootURL = "rootUrl"
)

// Environment maps saved variable names to values. It grows monotonically
// within one execution: entries are added or overwritten, never removed.
type Environment struct {
	values map[string]any
}

// New returns an empty environment.
func New() *Environment {
	return &Environment{values: make(map[string]any)}
}

// Set stores a value under name, overwriting any previous entry.
func (e *Environment) Set(name string, v any) {
	e.values[name] = v
}

// Get returns the value saved under name.
func (e *Environment) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Len returns the number of saved variables.
func (e *Environment) Len() int {
	return len(e.values)
}

// Clone returns an independent copy carrying every entry saved so far.
// Array-pipe boundaries cross on a clone, never on the original.
func (e *Environment) Clone() *Environment {
	copied := make(map[string]any, len(e.values))
	maps.Copy(copied, e.values)
	return &Environment{values: copied}
}

// Snapshot copies the environment into a plain map for callers that thread
// variables across executions.
func (e *Environment) Snapshot() map[string]any {
	copied := make(map[string]any, len(e.values))
	maps.Copy(copied, e.values)
	return copied
}

// SeedBuiltins installs the per-execution builtins: `time` as unix
// milliseconds, `pageUrl` as the document source, and `rootUrl` as its
// scheme://host prefix.
func (e *Environment) SeedBuiltins(pageURL string) {
	e.values[BuiltinTime] = clock.Now().UnixMilli()
	e.values[BuiltinPageURL] = pageURL
	e.values[BuiltinRootURL] = rootURL(pageURL)
}

func rootURL(pageURL string) string {
	if pageURL == "" {
		return ""
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return pageURL
	}
	return parsed.Scheme + "://" + parsed.Host
}
