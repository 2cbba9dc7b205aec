package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// generateTestCertificate creates a self-signed certificate for testing purposes
func generateTestCertificate() ([]byte, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Country:      []string{"AU"},
			Province:     []string{"Some-State"},
			Organization: []string{"Some Organization"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	}), nil
}

func TestParse(t *testing.T) {
	tempDir := t.TempDir()
	inputFile := filepath.Join(tempDir, "doc.json")
	rulesFile := filepath.Join(tempDir, "rules.yaml")
	varsFile := filepath.Join(tempDir, "vars.env")
	caCertFile := filepath.Join(tempDir, "ca.pem")

	if err := os.WriteFile(inputFile, []byte(`{"a": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rulesFile, []byte("- query: json:a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(varsFile, []byte("var1=value1\nvar2=value2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(caCertFile, []byte("-----BEGIN CERTIFICATE-----\ntest\n-----END CERTIFICATE-----\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := Config{
		InputType:      "auto",
		OutputFormat:   "text",
		RequestTimeout: DefaultTimeout,
		Variables:      map[string]any{},
	}
	withBase := func(mutate func(c *Config)) *Config {
		c := base
		c.Variables = map[string]any{}
		mutate(&c)
		return &c
	}

	tests := []struct {
		name     string
		args     []string
		want     *Config
		wantCode int // expected exit code when parsing fails; 0 means success
	}{
		{
			name: "expression_only",
			args: []string{"dq", "json:a"},
			want: withBase(func(c *Config) { c.Expression = "json:a" }),
		},
		{
			name: "expression_and_file",
			args: []string{"dq", "json:a", inputFile},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.InputFile = inputFile
			}),
		},
		{
			name: "stdin_marker_file",
			args: []string{"dq", "json:a", "-"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.InputFile = "-"
			}),
		},
		{
			name: "with_rules",
			args: []string{"dq", "--rules", rulesFile},
			want: withBase(func(c *Config) { c.RulesFile = rulesFile }),
		},
		{
			name: "with_url",
			args: []string{"dq", "--url", "https://example.com/feed", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.URL = "https://example.com/feed"
			}),
		},
		{
			name: "with_type_and_output",
			args: []string{"dq", "--type", "json", "--output", "json", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.InputType = "json"
				c.OutputFormat = "json"
			}),
		},
		{
			name: "with_flags",
			args: []string{"dq", "--no-simplify", "--validate", "--debug", "--insecure", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.NoSimplify = true
				c.ValidateOnly = true
				c.Debug = true
				c.Insecure = true
			}),
		},
		{
			name: "with_cacert",
			args: []string{"dq", "--cacert", caCertFile, "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.CACertFile = caCertFile
			}),
		},
		{
			name: "with_timeout",
			args: []string{"dq", "--timeout", "10s", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.RequestTimeout = 10 * time.Second
			}),
		},
		{
			name: "with_rate_limit",
			args: []string{"dq", "--rate-limit", "0.5", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.RateLimit = 0.5
			}),
		},
		{
			name: "with_variables",
			args: []string{"dq", "--var", "key1=value1", "--var", "key2=value2", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.Variables = map[string]any{"key1": "value1", "key2": "value2"}
			}),
		},
		{
			name: "with_variable_file_and_overrides",
			args: []string{"dq", "--variable-file", varsFile, "--var", "var1=override", "--var", "var3=new", "json:a"},
			want: withBase(func(c *Config) {
				c.Expression = "json:a"
				c.VariableFile = varsFile
				c.Variables = map[string]any{"var1": "override", "var2": "value2", "var3": "new"}
			}),
		},
		{
			name:     "no_arguments",
			args:     []string{},
			wantCode: 2,
		},
		{
			name:     "missing_expression",
			args:     []string{"dq"},
			wantCode: 2,
		},
		{
			name:     "rules_with_stray_positional",
			args:     []string{"dq", "--rules", rulesFile, "json:a"},
			wantCode: 2,
		},
		{
			name:     "unexpected_arguments",
			args:     []string{"dq", "json:a", inputFile, "extra"},
			wantCode: 2,
		},
		{
			name:     "unknown_input_type",
			args:     []string{"dq", "--type", "xml", "json:a"},
			wantCode: 2,
		},
		{
			name:     "unknown_output_format",
			args:     []string{"dq", "--output", "yaml", "json:a"},
			wantCode: 2,
		},
		{
			name:     "invalid_timeout",
			args:     []string{"dq", "--timeout", "invalid", "json:a"},
			wantCode: 2,
		},
		{
			name:     "invalid_variable_format",
			args:     []string{"dq", "--var", "invalid", "json:a"},
			wantCode: 2,
		},
		{
			name:     "empty_variable_name",
			args:     []string{"dq", "--var", "=value", "json:a"},
			wantCode: 2,
		},
		{
			name:     "nonexistent_variable_file",
			args:     []string{"dq", "--variable-file", "/nonexistent/vars.env", "json:a"},
			wantCode: 1,
		},
		{
			name:     "nonexistent_input_file",
			args:     []string{"dq", "json:a", filepath.Join(tempDir, "absent.json")},
			wantCode: 2,
		},
		{
			name:     "nonexistent_rules_file",
			args:     []string{"dq", "--rules", filepath.Join(tempDir, "absent.yaml")},
			wantCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, exitResult := Parse(tt.args)

			if tt.wantCode != 0 {
				if exitResult == nil {
					t.Fatal("Parse() expected an exit result but got none")
				}
				if exitResult.ExitCode != tt.wantCode {
					t.Errorf("Parse() exit code = %d, want %d", exitResult.ExitCode, tt.wantCode)
				}
				return
			}

			if exitResult != nil {
				t.Fatalf("Parse() unexpected exit result: code %d, message: %s", exitResult.ExitCode, exitResult.Message)
			}
			if !reflect.DeepEqual(cfg, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", cfg, tt.want)
			}
		})
	}
}

func TestParseHelpFlag(t *testing.T) {
	for _, flag := range []string{"-help", "--help", "-h"} {
		_, exitResult := Parse([]string{"dq", flag})
		if exitResult == nil {
			t.Fatalf("expected exit result for %s", flag)
		}
		if exitResult.ExitCode != 0 {
			t.Errorf("expected exit code 0 for %s, got %d", flag, exitResult.ExitCode)
		}
	}
}

func TestTLSConfig(t *testing.T) {
	t.Run("insecure", func(t *testing.T) {
		cfg := &Config{Insecure: true}
		tlsConfig, err := cfg.TLSConfig()
		if err != nil {
			t.Fatalf("TLSConfig() error = %v", err)
		}
		if !tlsConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify = false, want true")
		}
	})

	t.Run("valid ca certificate", func(t *testing.T) {
		certPEM, err := generateTestCertificate()
		if err != nil {
			t.Fatalf("generateTestCertificate() error = %v", err)
		}

		caCertFile := filepath.Join(t.TempDir(), "ca.pem")
		if err := os.WriteFile(caCertFile, certPEM, 0o644); err != nil {
			t.Fatal(err)
		}

		cfg := &Config{CACertFile: caCertFile}
		tlsConfig, err := cfg.TLSConfig()
		if err != nil {
			t.Fatalf("TLSConfig() error = %v", err)
		}
		if tlsConfig.RootCAs == nil {
			t.Error("RootCAs = nil, want pool with CA certificate")
		}
	})

	t.Run("missing ca certificate file", func(t *testing.T) {
		cfg := &Config{CACertFile: "/nonexistent/ca.pem"}
		if _, err := cfg.TLSConfig(); err == nil {
			t.Error("TLSConfig() expected error for missing file")
		}
	})

	t.Run("malformed ca certificate", func(t *testing.T) {
		caCertFile := filepath.Join(t.TempDir(), "ca.pem")
		if err := os.WriteFile(caCertFile, []byte("not a certificate"), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg := &Config{CACertFile: caCertFile}
		if _, err := cfg.TLSConfig(); err == nil {
			t.Error("TLSConfig() expected error for malformed certificate")
		}
	})
}

func TestLoadVariableFile(t *testing.T) {
	t.Run("comments and blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vars.env")
		content := "# comment\n\nname=Alice\nurl=https://example.com/?a=1\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		variables, err := loadVariableFile(path)
		if err != nil {
			t.Fatalf("loadVariableFile() error = %v", err)
		}
		want := map[string]any{"name": "Alice", "url": "https://example.com/?a=1"}
		if !reflect.DeepEqual(variables, want) {
			t.Errorf("loadVariableFile() = %v, want %v", variables, want)
		}
	})

	t.Run("missing equals sign", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vars.env")
		if err := os.WriteFile(path, []byte("broken line\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := loadVariableFile(path); err == nil {
			t.Error("loadVariableFile() expected error for malformed line")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vars.env")
		if err := os.WriteFile(path, []byte("=value\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := loadVariableFile(path); err == nil {
			t.Error("loadVariableFile() expected error for empty key")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "expression",
			config: Config{Expression: "json:a", InputType: "auto", OutputFormat: "text"},
		},
		{
			name:    "no expression or rules",
			config:  Config{InputType: "auto", OutputFormat: "text"},
			wantErr: true,
		},
		{
			name:    "expression and rules together",
			config:  Config{Expression: "json:a", RulesFile: "rules.yaml", InputType: "auto", OutputFormat: "text"},
			wantErr: true,
		},
		{
			name:    "unknown input type",
			config:  Config{Expression: "json:a", InputType: "xml", OutputFormat: "text"},
			wantErr: true,
		},
		{
			name:    "unknown output format",
			config:  Config{Expression: "json:a", InputType: "auto", OutputFormat: "yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
