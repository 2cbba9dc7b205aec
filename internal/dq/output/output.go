// Package output renders query results, rule runs and validation reports
// in text or JSON form.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jacoelho/dq/internal/dq/validate"
	"github.com/jacoelho/dq/internal/dq/value"
)

// Format selects the rendering of results.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// FormatFromString maps the CLI flag value onto a Format. Unknown values
// fall back to text; the flag is validated before it reaches here.
func FormatFromString(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// Result writes a single query result.
func Result(format Format, w io.Writer, v any) error {
	switch format {
	case FormatJSON:
		return resultJSON(w, v)
	case FormatText:
		fallthrough
	default:
		return resultText(w, v)
	}
}

// resultText prints one line per element so array results stay grep-able.
func resultText(w io.Writer, v any) error {
	elements, ok := v.([]any)
	if !ok {
		elements = []any{v}
	}
	for _, element := range elements {
		if _, err := fmt.Fprintln(w, value.Stringify(element)); err != nil {
			return err
		}
	}
	return nil
}

func resultJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// RuleResult is the outcome of one rule in a rules file run.
type RuleResult struct {
	Name  string
	Value any
	Err   error
}

// Rules writes the outcomes of a rules file run in order.
func Rules(format Format, w io.Writer, results []RuleResult) error {
	switch format {
	case FormatJSON:
		return rulesJSON(w, results)
	case FormatText:
		fallthrough
	default:
		return rulesText(w, results)
	}
}

func rulesText(w io.Writer, results []RuleResult) error {
	for _, result := range results {
		status := value.Stringify(result.Value)
		if result.Err != nil {
			status = fmt.Sprintf("failed: %v", result.Err)
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", result.Name, status); err != nil {
			return err
		}
	}
	return nil
}

type jsonRuleResult struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

func rulesJSON(w io.Writer, results []RuleResult) error {
	payload := make([]jsonRuleResult, 0, len(results))
	for _, result := range results {
		item := jsonRuleResult{
			Name:  result.Name,
			Value: result.Value,
		}
		if result.Err != nil {
			item.Error = result.Err.Error()
		}
		payload = append(payload, item)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

// Validation writes a validation report.
func Validation(format Format, w io.Writer, report validate.Report) error {
	switch format {
	case FormatJSON:
		return validationJSON(w, report)
	case FormatText:
		fallthrough
	default:
		return validationText(w, report)
	}
}

func validationText(w io.Writer, report validate.Report) error {
	for _, issue := range report.Errors {
		if _, err := fmt.Fprintf(w, "error: %s\n", issue); err != nil {
			return err
		}
	}
	for _, issue := range report.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", issue); err != nil {
			return err
		}
	}

	if report.OK() {
		if _, err := fmt.Fprintf(w, "valid: %d segment(s)\n", len(report.Segments)); err != nil {
			return err
		}
	}

	return nil
}

type jsonIssue struct {
	Segment string `json:"segment,omitempty"`
	Message string `json:"message"`
}

type jsonSegment struct {
	Raw      string   `json:"raw"`
	Scheme   string   `json:"scheme"`
	Path     string   `json:"path,omitempty"`
	Required bool     `json:"required,omitempty"`
	Pipe     bool     `json:"pipe,omitempty"`
	Saves    []string `json:"saves,omitempty"`
}

type jsonValidation struct {
	OK       bool          `json:"ok"`
	Errors   []jsonIssue   `json:"errors,omitempty"`
	Warnings []jsonIssue   `json:"warnings,omitempty"`
	Segments []jsonSegment `json:"segments,omitempty"`
}

func validationJSON(w io.Writer, report validate.Report) error {
	payload := jsonValidation{
		OK:       report.OK(),
		Errors:   toJSONIssues(report.Errors),
		Warnings: toJSONIssues(report.Warnings),
		Segments: make([]jsonSegment, 0, len(report.Segments)),
	}
	for _, segment := range report.Segments {
		payload.Segments = append(payload.Segments, jsonSegment{
			Raw:      segment.Raw,
			Scheme:   segment.Scheme,
			Path:     segment.Path,
			Required: segment.Required,
			Pipe:     segment.Pipe,
			Saves:    segment.Saves,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func toJSONIssues(issues []validate.Issue) []jsonIssue {
	if len(issues) == 0 {
		return nil
	}
	out := make([]jsonIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, jsonIssue{Segment: issue.Segment, Message: issue.Message})
	}
	return out
}
