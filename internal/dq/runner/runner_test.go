package runner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacoelho/dq/internal/dq/config"
)

func newTestRunner(t *testing.T, cfg *config.Config) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	r, result := New(cfg)
	if result != nil {
		t.Fatalf("New() result = %+v", result)
	}

	var out, errOut bytes.Buffer
	r.SetOutput(&out)
	r.SetErrorOutput(&errOut)
	return r, &out, &errOut
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunExpressionOverFile(t *testing.T) {
	t.Parallel()

	input := writeFile(t, t.TempDir(), "person.json", `{"firstName": "Alice", "lastName": "Smith"}`)

	cfg := &config.Config{
		Expression: "json:firstName?save=first ++ json:lastName?save=last ++ template:${first} ${last}",
		InputFile:  input,
	}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	want := "Alice Smith\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunExpressionOverStdin(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Expression: "json:items/1"}
	r, out, errOut := newTestRunner(t, cfg)
	r.SetInput(strings.NewReader(`{"items": ["a", "b", "c"]}`))

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	if got := out.String(); got != "b\n" {
		t.Errorf("output = %q, want %q", got, "b\n")
	}
}

func TestRunExpressionOverURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Front Page</h1></body></html>`)
	}))
	defer server.Close()

	cfg := &config.Config{
		Expression: "html:h1/text ++ template:${pageUrl}",
		URL:        server.URL,
	}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	want := "Front Page\n" + server.URL + "\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunExpressionFetchFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	cfg := &config.Config{Expression: "json:a", URL: server.URL}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "404") {
		t.Errorf("stderr = %q, want status mention", errOut.String())
	}
}

func TestRunExpressionParseError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Expression: "ftp:path"}
	r, out, errOut := newTestRunner(t, cfg)
	r.SetInput(strings.NewReader("{}"))

	if code := r.Run(context.Background()); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "unsupported scheme") {
		t.Errorf("stderr = %q, want unsupported scheme", errOut.String())
	}
}

func TestRunExpressionForcedType(t *testing.T) {
	t.Parallel()

	// Sniffing would read this as an HTML document; forcing the url type
	// makes the payload itself the address under query.
	cfg := &config.Config{
		Expression: "url:host",
		InputType:  "url",
	}
	r, out, errOut := newTestRunner(t, cfg)
	r.SetInput(strings.NewReader("https://news.example.com/front?page=2\n"))

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	if got := out.String(); got != "news.example.com\n" {
		t.Errorf("output = %q, want %q", got, "news.example.com\n")
	}
}

func TestRunNoSimplify(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Expression:   "json:name",
		OutputFormat: "json",
		NoSimplify:   true,
	}
	r, out, errOut := newTestRunner(t, cfg)
	r.SetInput(strings.NewReader(`{"name": "Alice"}`))

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	want := "[\n  \"Alice\"\n]\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid expression", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Expression: "json:a?save=x&keep", ValidateOnly: true}
		r, out, _ := newTestRunner(t, cfg)

		if code := r.Run(context.Background()); code != 0 {
			t.Fatalf("Run() = %d, want 0", code)
		}
		if !strings.Contains(out.String(), "valid") {
			t.Errorf("output = %q, want valid line", out.String())
		}
	})

	t.Run("stray question mark", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Expression: "json:items?save=x?keep", ValidateOnly: true}
		r, out, _ := newTestRunner(t, cfg)

		if code := r.Run(context.Background()); code != 1 {
			t.Fatalf("Run() = %d, want 1", code)
		}
		if !strings.Contains(out.String(), "error:") {
			t.Errorf("output = %q, want an error line", out.String())
		}
	})
}

func TestRunRules(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widgets/7" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"price": 9.5}`)
	}))
	defer server.Close()

	dir := t.TempDir()
	rulesFile := writeFile(t, dir, "rules.yaml", fmt.Sprintf(`
- name: lookup
  query: json:id?save=id&keep
  input: '{"id": "7"}'
- name: price
  query: json:price
  url: %s/widgets/${id}
`, server.URL))

	cfg := &config.Config{RulesFile: rulesFile}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	want := "lookup: 7\nprice: 9.5\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunRulesRelativeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "doc.json", `{"status": "ready"}`)
	rulesFile := writeFile(t, dir, "rules.yaml", `
- name: status
  query: json:status
  file: doc.json
`)

	cfg := &config.Config{RulesFile: rulesFile}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	if got := out.String(); got != "status: ready\n" {
		t.Errorf("output = %q, want %q", got, "status: ready\n")
	}
}

func TestRunRulesFailedRuleContinues(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dir := t.TempDir()
	rulesFile := writeFile(t, dir, "rules.yaml", fmt.Sprintf(`
- name: broken
  query: json:a
  url: %s/missing
- name: inline
  query: json:b
  input: '{"b": "ok"}'
`, server.URL))

	cfg := &config.Config{RulesFile: rulesFile}
	r, out, _ := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}

	got := out.String()
	if !strings.Contains(got, "broken: failed:") {
		t.Errorf("output = %q, want a failed line for broken", got)
	}
	if !strings.Contains(got, "inline: ok") {
		t.Errorf("output = %q, want inline: ok", got)
	}
}

func TestRunRulesVariablePrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rulesFile := writeFile(t, dir, "rules.yaml", `
- name: greeting
  query: template:${greeting} ${name}
  vars:
    greeting: hello
`)

	cfg := &config.Config{
		RulesFile: rulesFile,
		Variables: map[string]any{"name": "Alice"},
	}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 0 {
		t.Fatalf("Run() = %d, stderr %q", code, errOut.String())
	}
	if got := out.String(); got != "greeting: hello Alice\n" {
		t.Errorf("output = %q, want %q", got, "greeting: hello Alice\n")
	}
}

func TestRunRulesValidateOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rulesFile := writeFile(t, dir, "rules.yaml", `
- name: good
  query: json:a
- name: bad
  query: json:items?save=x?keep
`)

	cfg := &config.Config{RulesFile: rulesFile, ValidateOnly: true}
	r, out, _ := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}

	got := out.String()
	if !strings.Contains(got, "good: valid") {
		t.Errorf("output = %q, want good: valid", got)
	}
	if !strings.Contains(got, "bad: failed:") {
		t.Errorf("output = %q, want bad: failed:", got)
	}
}

func TestRunRulesMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{RulesFile: filepath.Join(t.TempDir(), "absent.yaml")}
	r, out, errOut := newTestRunner(t, cfg)

	if code := r.Run(context.Background()); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "absent.yaml") {
		t.Errorf("stderr = %q, want missing file mention", errOut.String())
	}
}

func TestRunRulesCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rulesFile := writeFile(t, dir, "rules.yaml", `
- name: first
  query: json:a
  input: '{"a": 1}'
`)

	cfg := &config.Config{RulesFile: rulesFile}
	r, _, errOut := newTestRunner(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := r.Run(ctx); code != 1 {
		t.Fatalf("Run() = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "Interrupted") {
		t.Errorf("stderr = %q, want interruption notice", errOut.String())
	}
}
