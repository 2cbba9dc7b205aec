// Package runner orchestrates the dq command line: it loads input
// documents, executes expressions or rule files, and renders results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/jacoelho/dq/internal/dq/config"
	"github.com/jacoelho/dq/internal/dq/execute"
	"github.com/jacoelho/dq/internal/dq/exit"
	"github.com/jacoelho/dq/internal/dq/fetch"
	"github.com/jacoelho/dq/internal/dq/output"
	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/resolver"
	"github.com/jacoelho/dq/internal/dq/rules"
	"github.com/jacoelho/dq/internal/dq/validate"
	"github.com/jacoelho/dq/internal/dq/vars"
)

const userAgent = "dq/1.0"

type Runner struct {
	config    *config.Config
	fetcher   *fetch.Client
	input     io.Reader
	output    io.Writer
	errOutput io.Writer
}

func New(cfg *config.Config) (*Runner, *exit.Result) {
	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}

	return &Runner{
		config: cfg,
		fetcher: fetch.New(fetch.Options{
			TLS:       tlsConfig,
			Timeout:   cfg.RequestTimeout,
			RateLimit: cfg.RateLimit,
			UserAgent: userAgent,
		}),
		input:     os.Stdin,
		output:    os.Stdout,
		errOutput: os.Stderr,
	}, nil
}

func (r *Runner) SetInput(reader io.Reader) {
	r.input = reader
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) payloadWriter() io.Writer {
	if r.output == nil {
		return io.Discard
	}
	return r.output
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

func (r *Runner) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errorWriter(), format, args...)
}

func (r *Runner) format() output.Format {
	return output.FormatFromString(r.config.OutputFormat)
}

func (r *Runner) Run(ctx context.Context) int {
	switch {
	case r.config.ValidateOnly:
		return r.runValidate()
	case r.config.RulesFile != "":
		return r.runRules(ctx)
	default:
		return r.runExpression(ctx)
	}
}

// runValidate checks expressions without executing them. With a rules file
// every rule query is checked; otherwise the single expression gets a full
// report.
func (r *Runner) runValidate() int {
	if r.config.RulesFile != "" {
		return r.validateRules()
	}

	report := validate.Validate(r.config.Expression)
	if err := output.Validation(r.format(), r.payloadWriter(), report); err != nil {
		r.logf("Error formatting report: %v\n", err)
		return 1
	}
	if !report.OK() {
		return 1
	}
	return 0
}

func (r *Runner) validateRules() int {
	ruleSet, err := r.loadRules()
	if err != nil {
		r.logf("Error: %v\n", err)
		return 1
	}

	failed := false
	results := make([]output.RuleResult, 0, len(ruleSet))
	for _, rule := range ruleSet {
		report := validate.Validate(rule.Query)
		if report.OK() {
			results = append(results, output.RuleResult{Name: rule.Name, Value: "valid"})
			continue
		}
		failed = true
		results = append(results, output.RuleResult{Name: rule.Name, Err: errors.New(report.Errors[0].String())})
	}

	if err := output.Rules(r.format(), r.payloadWriter(), results); err != nil {
		r.logf("Error formatting results: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

func (r *Runner) runExpression(ctx context.Context) int {
	parsed, err := query.Parse(r.config.Expression)
	if err != nil {
		r.logf("Error: %v\n", err)
		return 1
	}

	node, err := r.loadInput(ctx)
	if err != nil {
		r.logf("Error: %v\n", err)
		return 1
	}

	engine := execute.New(execute.WithErrorOutput(r.errorWriter()))

	var result any
	if r.config.NoSimplify {
		result, err = engine.ExecuteAll(parsed, node, r.config.Variables)
	} else {
		result, err = engine.Execute(parsed, node, r.config.Variables)
	}
	if err != nil {
		r.logf("Error: %v\n", err)
		return 1
	}

	if err := output.Result(r.format(), r.payloadWriter(), result); err != nil {
		r.logf("Error formatting result: %v\n", err)
		return 1
	}
	return 0
}

func (r *Runner) loadInput(ctx context.Context) (*resolver.Node, error) {
	data, srcURL, err := r.readInput(ctx)
	if err != nil {
		return nil, err
	}
	return makeNode(r.config.InputType, data, srcURL)
}

func (r *Runner) readInput(ctx context.Context) ([]byte, string, error) {
	switch {
	case r.config.URL != "":
		if r.config.Debug {
			r.logf("fetching %s\n", r.config.URL)
		}
		data, err := r.fetcher.Get(ctx, r.config.URL)
		return data, r.config.URL, err
	case r.config.InputFile != "" && r.config.InputFile != "-":
		data, err := os.ReadFile(r.config.InputFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read file %s: %w", r.config.InputFile, err)
		}
		return data, "", nil
	default:
		data, err := io.ReadAll(r.input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, "", nil
	}
}

// runRules executes a rules file in order. Variables saved by one rule are
// carried into the next, so later rules can template URLs and expressions
// with earlier captures.
func (r *Runner) runRules(ctx context.Context) int {
	ruleSet, err := r.loadRules()
	if err != nil {
		r.logf("Error: %v\n", err)
		return 1
	}

	queries := make([]*query.Query, len(ruleSet))
	for i, rule := range ruleSet {
		parsed, err := query.Parse(rule.Query)
		if err != nil {
			r.logf("Error: %s: %v\n", rule.Name, err)
			return 1
		}
		queries[i] = parsed
	}

	engine := execute.New(execute.WithErrorOutput(r.errorWriter()))
	baseDir := filepath.Dir(r.config.RulesFile)

	carried := make(map[string]any)
	maps.Copy(carried, r.config.Variables)

	failed := false
	results := make([]output.RuleResult, 0, len(ruleSet))

	for i, rule := range ruleSet {
		select {
		case <-ctx.Done():
			r.logf("\nInterrupted after %d of %d rules\n", i, len(ruleSet))
			return 1
		default:
		}

		if r.config.Debug {
			r.logf("--- %s (%s) ---\n", rule.Name, rule.Source())
		}

		result, saved, err := r.runRule(ctx, rule, queries[i], baseDir, engine, carried)
		if err != nil {
			failed = true
			results = append(results, output.RuleResult{Name: rule.Name, Err: err})
			continue
		}

		carryOver(carried, saved)
		results = append(results, output.RuleResult{Name: rule.Name, Value: result})
	}

	if err := output.Rules(r.format(), r.payloadWriter(), results); err != nil {
		r.logf("Error formatting results: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

// carryOver threads saved variables into the next rule. Builtins stay per
// document: carrying pageUrl forward would mask the next rule's own source.
func carryOver(carried, saved map[string]any) {
	for name, value := range saved {
		switch name {
		case vars.BuiltinTime, vars.BuiltinPageURL, vars.BuiltinRootURL:
			continue
		}
		carried[name] = value
	}
}

func (r *Runner) runRule(ctx context.Context, rule rules.Rule, q *query.Query, baseDir string, engine *execute.Engine, carried map[string]any) (any, map[string]any, error) {
	initial := make(map[string]any, len(carried)+len(rule.Vars))
	maps.Copy(initial, carried)
	for name, value := range rule.Vars {
		initial[name] = value
	}

	node, err := r.ruleDocument(ctx, rule, baseDir, initial)
	if err != nil {
		return nil, nil, err
	}

	return engine.Capture(q, node, initial)
}

// ruleDocument loads the rule's input. URL and file sources are templated
// against the variables available to the rule, so a rule can fetch a page
// discovered by an earlier one.
func (r *Runner) ruleDocument(ctx context.Context, rule rules.Rule, baseDir string, initial map[string]any) (*resolver.Node, error) {
	env := vars.New()
	for name, value := range initial {
		env.Set(name, value)
	}

	switch {
	case rule.URL != "":
		target := env.Resolve(rule.URL)
		data, err := r.fetcher.Get(ctx, target)
		if err != nil {
			return nil, err
		}
		return makeNode(rule.Type, data, target)
	case rule.File != "":
		path := rules.ResolveFilePath(env.Resolve(rule.File), baseDir)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		return makeNode(rule.Type, data, "")
	case rule.Input != "":
		return makeNode(rule.Type, []byte(rule.Input), "")
	default:
		return makeNode(rule.Type, nil, "")
	}
}

func (r *Runner) loadRules() ([]rules.Rule, error) {
	file, err := os.Open(r.config.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file %s: %w", r.config.RulesFile, err)
	}
	defer file.Close()

	return rules.Parse(file)
}

func makeNode(inputType string, data []byte, srcURL string) (*resolver.Node, error) {
	if inputType == "" || inputType == "auto" {
		return resolver.Detect(data, srcURL), nil
	}
	kind, ok := resolver.ParseKind(inputType)
	if !ok {
		return nil, fmt.Errorf("unknown input type %q", inputType)
	}
	return resolver.FromBytes(kind, data, srcURL)
}
