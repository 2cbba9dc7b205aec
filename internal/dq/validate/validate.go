// Package validate checks query expressions without executing them: typos,
// stray characters, specs that can never succeed. It shares the parser with
// execution but nothing else; a validation bug can never affect a running
// query, and execution never consults validation.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/transform"
)

// Issue is one finding, tied to the segment it was found in when known.
type Issue struct {
	Segment string
	Message string
}

func (i Issue) String() string {
	if i.Segment == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Segment, i.Message)
}

// SegmentInfo describes one parsed segment for structural introspection.
type SegmentInfo struct {
	Raw      string
	Scheme   string
	Path     string
	Required bool
	Pipe     bool
	Saves    []string
}

// Report is the result of validating one expression. Errors are findings
// that can never execute meaningfully; warnings may still work at runtime,
// for example a transform registered only in a customized engine.
type Report struct {
	Errors   []Issue
	Warnings []Issue
	Segments []SegmentInfo
}

// OK reports whether the expression carries no errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) errorf(segment, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Segment: segment, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(segment, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Segment: segment, Message: fmt.Sprintf(format, args...)})
}

// Validate checks expr against the builtin transform set.
func Validate(expr string) Report {
	return ValidateWithRegistry(expr, transform.NewRegistry())
}

// ValidateWithRegistry checks expr, treating reg's transforms as known.
func ValidateWithRegistry(expr string, reg *transform.Registry) Report {
	var report Report

	q, err := query.Parse(expr)
	if err != nil {
		report.errorf("", "%v", err)
		return report
	}

	for _, seg := range q.Segments() {
		report.Segments = append(report.Segments, SegmentInfo{
			Raw:      seg.Raw,
			Scheme:   seg.Scheme.String(),
			Path:     seg.Path,
			Required: seg.Required,
			Pipe:     seg.Pipe,
			Saves:    seg.SaveNames(),
		})
		checkSegment(&report, seg, reg)
	}
	return report
}

func checkSegment(report *Report, seg query.Segment, reg *transform.Registry) {
	raw := seg.Raw

	if seg.Path == "" && seg.Scheme == query.SchemeTemplate && !seg.HasSpec(query.StageTransform) {
		report.warnf(raw, "template has no content")
	}

	if unbalancedPlaceholder(seg.Path) {
		report.warnf(raw, "unbalanced ${ in path %q", seg.Path)
	}

	for _, p := range seg.Params {
		if strings.Contains(p.Key, "?") || strings.Contains(p.Value, "?") {
			report.errorf(raw, "stray '?' in parameter %q; parameters are joined with '&'", p.Key+"="+p.Value)
			continue
		}
		if _, known := query.ParseStage(p.Key); !known && p.Key != "regexp" {
			msg := fmt.Sprintf("unknown parameter %q", p.Key)
			if s := suggest(p.Key, knownParams()); s != "" {
				msg += fmt.Sprintf(", did you mean %q", s)
			}
			report.warnf(raw, "%s", msg)
		}
		if unbalancedPlaceholder(p.Value) {
			report.warnf(raw, "unbalanced ${ in parameter %q", p.Key)
		}
	}

	for _, spec := range seg.Specs[query.StageTransform] {
		name, arg, _ := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if !reg.Has(name) {
			msg := fmt.Sprintf("unknown transform %q", name)
			if s := suggest(name, append(reg.Names(), transform.NameJSEval)); s != "" {
				msg += fmt.Sprintf(", did you mean %q", s)
			}
			report.warnf(raw, "%s", msg)
			continue
		}
		if err := transform.CheckSpec(name, arg); err != nil {
			report.errorf(raw, "%v", err)
		}
	}

	for _, spec := range seg.Specs[query.StageUpdate] {
		if strings.Contains(spec, "${") {
			continue
		}
		var patch map[string]any
		if err := json.Unmarshal([]byte(spec), &patch); err != nil {
			report.errorf(raw, "update %q is not a JSON object: %v", spec, err)
		}
	}

	for _, spec := range seg.Specs[query.StageIndex] {
		if strings.Contains(spec, "${") {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(spec)); err != nil {
			report.errorf(raw, "index %q is not an integer", spec)
		}
	}

	for _, name := range seg.SaveNames() {
		if name == "" {
			report.errorf(raw, "save needs a variable name")
		}
	}
}

func knownParams() []string {
	var keys []string
	for _, stage := range query.Stages() {
		keys = append(keys, stage.String())
	}
	return append(keys, "regexp")
}

// unbalancedPlaceholder reports a `${` with no closing brace after it.
func unbalancedPlaceholder(s string) bool {
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			return false
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			return true
		}
		s = s[start+end+1:]
	}
}

// suggest returns the closest known name within a small edit distance, so
// typos like `trasform` or `upercase` come back with a hint.
func suggest(name string, known []string) string {
	best := ""
	bestDist := 3
	for _, candidate := range known {
		if d := editDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
