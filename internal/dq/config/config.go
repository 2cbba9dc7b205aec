// Package config parses command-line arguments into the settings the runner
// needs: the expression or rules file, input selection, HTTP behaviour, and
// initial variables.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jacoelho/dq/internal/dq/exit"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests.
	DefaultTimeout = 30 * time.Second
)

var (
	ErrNoArguments           = errors.New("no arguments provided")
	ErrNoExpression          = errors.New("no expression or rules file specified")
	ErrExpressionWithRules   = errors.New("an expression and --rules are mutually exclusive")
	ErrInvalidVariableFormat = errors.New("variable must be in format name=value")
	ErrEmptyVariableName     = errors.New("variable name cannot be empty")
	ErrUnknownInputType      = errors.New("unknown input type")
	ErrUnknownOutputFormat   = errors.New("unknown output format")
)

var (
	inputTypes    = []string{"auto", "html", "json", "url", "text"}
	outputFormats = []string{"text", "json"}
)

// Config represents the complete configuration for the dq tool.
type Config struct {
	// Query selection: a single expression over one input, or a rules file.
	Expression string
	InputFile  string
	RulesFile  string

	// Input handling
	URL       string
	InputType string

	// Output
	OutputFormat string
	NoSimplify   bool
	ValidateOnly bool
	Debug        bool

	// HTTP client configuration
	Insecure       bool
	CACertFile     string
	RequestTimeout time.Duration
	RateLimit      float64

	// Initial variables
	Variables    map[string]any
	VariableFile string
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Expression == "" && c.RulesFile == "" {
		return ErrNoExpression
	}
	if c.Expression != "" && c.RulesFile != "" {
		return ErrExpressionWithRules
	}

	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("rules file %s not found: %w", c.RulesFile, err)
		}
	}
	if c.InputFile != "" && c.InputFile != "-" {
		if _, err := os.Stat(c.InputFile); err != nil {
			return fmt.Errorf("input file %s not found: %w", c.InputFile, err)
		}
	}
	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	if !slices.Contains(inputTypes, c.InputType) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownInputType, c.InputType, strings.Join(inputTypes, ", "))
	}
	if !slices.Contains(outputFormats, c.OutputFormat) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownOutputFormat, c.OutputFormat, strings.Join(outputFormats, ", "))
	}

	return nil
}

// variablesFlag implements flag.Value for parsing repeated --var flags.
type variablesFlag map[string]any

// String returns a string representation of the variables flag for flag.Value interface.
func (v variablesFlag) String() string {
	var pairs []string
	for k, val := range v {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, val))
	}
	return strings.Join(pairs, ",")
}

// Set parses and stores a variable in name=value format for flag.Value interface.
func (v variablesFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%w, got: %s", ErrInvalidVariableFormat, value)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return ErrEmptyVariableName
	}

	v[name] = parts[1]
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Usagef("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage and error output since we handle both.
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		rulesFile    = fs.String("rules", "", "Path to YAML rules file to run instead of one expression")
		inputURL     = fs.String("url", "", "Fetch the input document from URL")
		inputType    = fs.String("type", "auto", "Input interpretation: auto, html, json, url, text")
		outputFormat = fs.String("output", "text", "Output format: text or json")
		noSimplify   = fs.Bool("no-simplify", false, "Always print the full result sequence as JSON")
		validateOnly = fs.Bool("validate", false, "Validate the expression and exit without executing")
		debug        = fs.Bool("debug", false, "Log document loading and rule progress to stderr")
		insecure     = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile   = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		timeout      = fs.Duration("timeout", DefaultTimeout, "HTTP request timeout")
		rateLimit    = fs.Float64("rate-limit", 0, "Rate limit in requests per second (0 for unlimited)")
		variables    = make(variablesFlag)
		variableFile = fs.String("variable-file", "", "Path to key=value file containing initial variables")
	)

	fs.Var(variables, "var", "Initial variable in format name=value (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Usagef("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	var expression, inputFile string
	rest := fs.Args()
	if *rulesFile == "" {
		if len(rest) > 0 {
			expression = rest[0]
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		inputFile = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return nil, exit.Usagef("Error: unexpected arguments: %s\n\n%s", strings.Join(rest, " "), Usage())
	}

	// File variables first, command-line variables override.
	finalVariables := make(map[string]any)
	if *variableFile != "" {
		fileVariables, err := loadVariableFile(*variableFile)
		if err != nil {
			return nil, exit.Errorf("Error: failed to load variable file: %v\n\n%s", err, Usage())
		}
		maps.Copy(finalVariables, fileVariables)
	}
	maps.Copy(finalVariables, variables)

	config := &Config{
		Expression:     expression,
		InputFile:      inputFile,
		RulesFile:      *rulesFile,
		URL:            *inputURL,
		InputType:      *inputType,
		OutputFormat:   *outputFormat,
		NoSimplify:     *noSimplify,
		ValidateOnly:   *validateOnly,
		Debug:          *debug,
		Insecure:       *insecure,
		CACertFile:     *caCertFile,
		RequestTimeout: *timeout,
		RateLimit:      *rateLimit,
		Variables:      finalVariables,
		VariableFile:   *variableFile,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Usagef("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// loadVariableFile loads variables from a key=value format file.
// It supports comments (lines starting with #) and empty lines.
func loadVariableFile(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	variables := make(map[string]any)
	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid format at line %d: %s (expected key=value)", lineNum+1, line)
		}

		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("empty key at line %d: %s", lineNum+1, line)
		}

		variables[key] = strings.TrimSpace(parts[1])
	}

	return variables, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `dq - extract and transform values from HTML and JSON documents

Usage: dq [options] <expression> [file]
       dq [options] --rules <file>

The expression is a chain of scheme:path segments joined by combinators:
  ||   run the next segment only when nothing matched yet
  ++   always run the next segment and combine results
  >>   re-run the next segment once per element of the prior result
  >>>  flatten the prior result into a JSON array and restart against it

The input document comes from [file], --url, or stdin.

Options:
  --rules FILE            Run a YAML rules file instead of one expression
  --url URL               Fetch the input document from URL
  --type TYPE             Input interpretation: auto, html, json, url, text (default: auto)
  --output FORMAT         Output format: text or json (default: text)
  --no-simplify           Always print the full result sequence as JSON
  --validate              Validate the expression and exit without executing
  --debug                 Log document loading and rule progress to stderr
  --insecure              Skip TLS certificate verification
  --cacert FILE           Path to CA certificate file for TLS verification
  --timeout DURATION      HTTP request timeout (default: 30s)
  --rate-limit N          Rate limit in requests per second (0 for unlimited)
  --var NAME=VALUE        Initial variable (can be used multiple times)
  --variable-file FILE    Path to key=value file containing initial variables
  -h, --help              Show this help message

Examples:
  dq 'json:items/0/name' data.json                  # First item name from a JSON file
  dq 'html:li/a@href' --url https://example.com     # Link targets from a fetched page
  dq 'json:firstName?save=fn ++ template:${fn}!' p.json
  dq --validate 'json:items?save=x?keep'            # Report the stray '?'
  dq --rules crawl.yaml --var region=eu             # Run a rules file`
}
