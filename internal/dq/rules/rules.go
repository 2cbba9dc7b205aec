// Package rules provides YAML parsing for rule files: ordered, named
// queries bound to the documents they run against.
package rules

import (
	"errors"
	"fmt"
	"io"
	"slices"

	yaml "github.com/goccy/go-yaml"
)

// ErrRules is the sentinel error for all rule file failures.
// It allows error wrapping and consistent error checks using errors.Is().
var ErrRules = fmt.Errorf("rules error")

// knownTypes lists the accepted input interpretations. Empty means auto.
var knownTypes = []string{"", "auto", "html", "json", "url", "text"}

// Rule binds one query expression to its input document. Exactly one of
// URL, File and Input may be set; with none set the rule runs against an
// empty text document, which suits template-only queries that compose
// variables saved by earlier rules.
type Rule struct {
	Name  string            `yaml:"name,omitempty"`  // Label used in output and logs
	Query string            `yaml:"query"`           // Query expression
	URL   string            `yaml:"url,omitempty"`   // Fetch the document from this URL
	File  string            `yaml:"file,omitempty"`  // Read the document from this file
	Input string            `yaml:"input,omitempty"` // Inline document content
	Type  string            `yaml:"type,omitempty"`  // Force input interpretation
	Vars  map[string]string `yaml:"vars,omitempty"`  // Extra variables for this rule
}

// Source reports which input the rule declares, for logging.
func (r Rule) Source() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.File != "":
		return r.File
	case r.Input != "":
		return "inline"
	default:
		return "none"
	}
}

// Parse decodes a YAML stream of rules and validates their shape.
// Rules without a name are labelled by position.
func Parse(r io.Reader) ([]Rule, error) {
	var parsed []Rule
	if err := yaml.NewDecoder(r).Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no rules defined", ErrRules)
		}
		return nil, fmt.Errorf("%w: failed to decode YAML: %v", ErrRules, err)
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrRules)
	}

	for i := range parsed {
		if parsed[i].Name == "" {
			parsed[i].Name = fmt.Sprintf("rule%d", i+1)
		}
		if err := checkRule(parsed[i]); err != nil {
			return nil, err
		}
	}

	return parsed, nil
}

func checkRule(rule Rule) error {
	if rule.Query == "" {
		return fmt.Errorf("%w: %s: missing required 'query' field", ErrRules, rule.Name)
	}

	sources := 0
	for _, s := range []string{rule.URL, rule.File, rule.Input} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("%w: %s: url, file and input are mutually exclusive", ErrRules, rule.Name)
	}

	if !slices.Contains(knownTypes, rule.Type) {
		return fmt.Errorf("%w: %s: unknown type %q", ErrRules, rule.Name, rule.Type)
	}

	return nil
}
