// Package query parses dq expressions into combinator-linked segments.
//
// An expression is a sequence of segments joined by combinators:
//
//	json:items/0?save=x ++ template:${x}
//
// `||` runs the next segment only when nothing matched so far, `++` always
// runs it, `>>` re-runs it once per element of the prior result, and `>>>`
// flattens the prior result into a JSON array and restarts against it.
package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is the sentinel error for structural expression failures.
	ErrParse = errors.New("invalid query")
	// ErrUnsupportedScheme indicates a scheme outside html/json/url/template.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// Scheme identifies how a segment interprets its path.
type Scheme int

const (
	SchemeHTML Scheme = iota
	SchemeJSON
	SchemeURL
	SchemeTemplate
)

// String returns the scheme name as written in expressions.
func (s Scheme) String() string {
	switch s {
	case SchemeHTML:
		return "html"
	case SchemeJSON:
		return "json"
	case SchemeURL:
		return "url"
	case SchemeTemplate:
		return "template"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// Schemes lists every supported scheme.
func Schemes() []Scheme {
	return []Scheme{SchemeHTML, SchemeJSON, SchemeURL, SchemeTemplate}
}

// ParseScheme maps a scheme name to its enum value.
func ParseScheme(name string) (Scheme, bool) {
	switch name {
	case "html":
		return SchemeHTML, true
	case "json":
		return SchemeJSON, true
	case "url":
		return SchemeURL, true
	case "template":
		return SchemeTemplate, true
	default:
		return 0, false
	}
}

// Stage identifies one step of the transform pipeline. Stages always run in
// declaration order below, regardless of how parameters were written.
type Stage int

const (
	StageTransform Stage = iota
	StageUpdate
	StageFilter
	StageIndex
	StageSave
	StageKeep
)

// Stages lists every pipeline stage in execution order.
func Stages() []Stage {
	return []Stage{StageTransform, StageUpdate, StageFilter, StageIndex, StageSave, StageKeep}
}

// String returns the parameter key that introduces the stage.
func (s Stage) String() string {
	switch s {
	case StageTransform:
		return "transform"
	case StageUpdate:
		return "update"
	case StageFilter:
		return "filter"
	case StageIndex:
		return "index"
	case StageSave:
		return "save"
	case StageKeep:
		return "keep"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ParseStage maps a parameter key to its pipeline stage.
func ParseStage(key string) (Stage, bool) {
	switch key {
	case "transform":
		return StageTransform, true
	case "update":
		return StageUpdate, true
	case "filter":
		return StageFilter, true
	case "index":
		return StageIndex, true
	case "save":
		return StageSave, true
	case "keep":
		return StageKeep, true
	default:
		return 0, false
	}
}

// Param is one key=value pair from a segment's parameter list, in source order.
type Param struct {
	Key   string
	Value string
}

// Segment is one scheme:path?params unit between combinators. It is immutable
// after parsing; `${...}` placeholders in Path, Params, and Specs stay raw
// until execution resolves them against the variable environment.
type Segment struct {
	Raw    string
	Scheme Scheme
	Path   string
	Params []Param
	// Specs holds raw transform-pipeline values grouped by stage, each group
	// in encounter order.
	Specs map[Stage][]string
	// Required marks segments that run even when earlier ones matched
	// (`++` and `>>`); `||` segments only run as fallback.
	Required bool
	// Pipe marks a segment that re-runs once per element of the prior result.
	Pipe bool
}

// HasSpec reports whether the segment carries at least one value for stage.
func (s Segment) HasSpec(stage Stage) bool {
	return len(s.Specs[stage]) > 0
}

// SaveNames returns the variable names this segment saves, in order.
func (s Segment) SaveNames() []string {
	return s.Specs[StageSave]
}

// Discards reports whether the segment's values are recorded into the
// environment but withheld from the combined result (save without keep).
func (s Segment) Discards() bool {
	return s.HasSpec(StageSave) && !s.HasSpec(StageKeep)
}

// Chain is a `>>>`-free run of segments executed against one input document.
type Chain struct {
	Segments []Segment
}

// Query is the parsed form of a whole expression: its `>>>`-separated chains,
// reduced left to right at execution time.
type Query struct {
	Expr   string
	Chains []Chain
}

// Parse builds the query AST for an expression. It splits on `>>>` first,
// then lexes each chain into flag-annotated segments. Scheme errors surface
// here; everything transform-level stays non-fatal until execution.
func Parse(expr string) (*Query, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, parseError("expression is empty")
	}

	parts := splitArrayPipe(trimmed)
	chains := make([]Chain, 0, len(parts))
	for _, part := range parts {
		chain, err := parseChain(part)
		if err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}

	return &Query{Expr: trimmed, Chains: chains}, nil
}

// UsesTransform reports whether any segment in any chain names the given
// transform. Used to coordinate one-time sandbox resets before execution.
func (q *Query) UsesTransform(name string) bool {
	prefix := name + ":"
	for _, chain := range q.Chains {
		for _, seg := range chain.Segments {
			for _, spec := range seg.Specs[StageTransform] {
				if spec == name || strings.HasPrefix(spec, prefix) {
					return true
				}
			}
		}
	}
	return false
}

// Segments returns every segment of the query in execution order.
func (q *Query) Segments() []Segment {
	var out []Segment
	for _, chain := range q.Chains {
		out = append(out, chain.Segments...)
	}
	return out
}
