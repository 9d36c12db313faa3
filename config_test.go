package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/elisa-itb/elisa/analysis"
)

func strPtr(s string) *string { return &s }

func TestResolveModel(t *testing.T) {
	cfg := &ConfigFile{
		Models: map[string]ModelProfile{
			"fast":   {Backend: strPtr(analysis.ModelGemini)},
			"deep":   {Backend: strPtr(analysis.ModelDeepseek)},
			"daily":  {Extend: strPtr("fast")},
			"report": {Extend: strPtr("daily")},
			"local":  {Extend: strPtr(analysis.ModelGemma)},
			"cycle-a": {
				Extend: strPtr("cycle-b"),
			},
			"cycle-b": {
				Extend: strPtr("cycle-a"),
			},
		},
	}

	tests := []struct {
		name string
		want string
	}{
		{"fast", analysis.ModelGemini},
		{"deep", analysis.ModelDeepseek},
		{"daily", analysis.ModelGemini},
		{"report", analysis.ModelGemini},
		{"local", analysis.ModelGemma},
		{"unlisted", "unlisted"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveModel(cfg, tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveModel(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	t.Run("Circular Dependency", func(t *testing.T) {
		if _, err := resolveModel(cfg, "cycle-a"); err == nil {
			t.Fatal("expected error for circular dependency, got nil")
		}
	})
}

func TestLoadConfigAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
api_url: http://dashboard.test
timeout: 12
default_model: smart
models:
  smart:
    backend: deepseek
    aliases: [s, brain]
  quick:
    backend: gemini
    aliases: [s]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIURL == nil || *cfg.APIURL != "http://dashboard.test" {
		t.Errorf("api_url not loaded: %v", cfg.APIURL)
	}

	got, err := resolveModel(cfg, "brain")
	if err != nil {
		t.Fatal(err)
	}
	if got != analysis.ModelDeepseek {
		t.Errorf("alias brain resolved to %q", got)
	}

	// "s" is claimed twice; whichever model registers it first keeps it.
	got, err = resolveModel(cfg, "s")
	if err != nil {
		t.Fatal(err)
	}
	if got != analysis.ModelDeepseek && got != analysis.ModelGemini {
		t.Errorf("alias s resolved to %q", got)
	}
}

func TestLoadConfigMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(dir, "nested", "config.yaml"))
	if err != nil {
		t.Fatalf("missing config should not fail: %v", err)
	}
	if cfg == nil || cfg.APIURL != nil {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); err != nil {
		t.Errorf("config directory not created: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("models: [unclosed"), 0o644)
	if _, err := loadConfig(bad); err == nil {
		t.Error("expected parse error")
	}

	// A path that exists but cannot be read as a file is an error, not an
	// empty config.
	unreadable := filepath.Join(dir, "as-dir.yaml")
	os.Mkdir(unreadable, 0o755)
	if cfg, err := loadConfig(unreadable); err == nil {
		t.Errorf("expected read error, got config %+v", cfg)
	}
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, v) })
		}
		os.Unsetenv(k)
	}
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("api-url", defaultAPIURL, "")
	cmd.Flags().String("analysis-url", defaultAnalysisURL, "")
	cmd.Flags().StringP("model", "m", analysis.ModelGemini, "")
	cmd.Flags().Int("timeout", defaultTimeoutSec, "")
	cmd.Flags().String("log-file", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	return cmd
}

func TestGetRunConfigPrecedence(t *testing.T) {
	unsetEnv(t, "ELISA_API_URL", "ELISA_ANALYSIS_URL", "ELISA_MODEL", "ELISA_TIMEOUT", "ELISA_LOG_FILE")

	timeout := 20
	cfg := &ConfigFile{
		APIURL:       strPtr("http://file-api"),
		AnalysisURL:  strPtr("http://file-analysis"),
		DefaultModel: "smart",
		Timeout:      &timeout,
		Models: map[string]ModelProfile{
			"smart": {Backend: strPtr(analysis.ModelDeepseek)},
		},
	}

	t.Run("Defaults", func(t *testing.T) {
		rc, err := getRunConfig(newFlagCommand(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if rc.APIURL != defaultAPIURL || rc.AnalysisURL != defaultAnalysisURL {
			t.Errorf("unexpected urls %q %q", rc.APIURL, rc.AnalysisURL)
		}
		if rc.StreamPath != analysis.DefaultStreamPath {
			t.Errorf("stream path = %q", rc.StreamPath)
		}
		if rc.Model != analysis.ModelGemini {
			t.Errorf("model = %q", rc.Model)
		}
		if rc.Timeout != defaultTimeoutSec*time.Second {
			t.Errorf("timeout = %v", rc.Timeout)
		}
	})

	t.Run("File", func(t *testing.T) {
		rc, err := getRunConfig(newFlagCommand(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if rc.APIURL != "http://file-api" {
			t.Errorf("api url = %q", rc.APIURL)
		}
		if rc.Model != analysis.ModelDeepseek {
			t.Errorf("default_model profile not resolved: %q", rc.Model)
		}
		if rc.Timeout != 20*time.Second {
			t.Errorf("timeout = %v", rc.Timeout)
		}
	})

	t.Run("Env over file", func(t *testing.T) {
		t.Setenv("ELISA_API_URL", "http://env-api")
		t.Setenv("ELISA_MODEL", analysis.ModelGemma)
		t.Setenv("ELISA_TIMEOUT", "5")

		rc, err := getRunConfig(newFlagCommand(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if rc.APIURL != "http://env-api" {
			t.Errorf("api url = %q", rc.APIURL)
		}
		if rc.AnalysisURL != "http://file-analysis" {
			t.Errorf("analysis url = %q", rc.AnalysisURL)
		}
		if rc.Model != analysis.ModelGemma {
			t.Errorf("model = %q", rc.Model)
		}
		if rc.Timeout != 5*time.Second {
			t.Errorf("timeout = %v", rc.Timeout)
		}
	})

	t.Run("Flags over env", func(t *testing.T) {
		t.Setenv("ELISA_API_URL", "http://env-api")
		t.Setenv("ELISA_MODEL", analysis.ModelGemma)

		cmd := newFlagCommand()
		if err := cmd.ParseFlags([]string{"--api-url", "http://flag-api", "-m", "smart", "--timeout", "7", "-v"}); err != nil {
			t.Fatal(err)
		}
		rc, err := getRunConfig(cmd, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if rc.APIURL != "http://flag-api" {
			t.Errorf("api url = %q", rc.APIURL)
		}
		if rc.Model != analysis.ModelDeepseek {
			t.Errorf("model = %q", rc.Model)
		}
		if rc.Timeout != 7*time.Second {
			t.Errorf("timeout = %v", rc.Timeout)
		}
		if !rc.Verbose {
			t.Error("verbose flag ignored")
		}
	})

	t.Run("Bad env", func(t *testing.T) {
		t.Setenv("ELISA_TIMEOUT", "soon")
		if _, err := getRunConfig(newFlagCommand(), cfg); err == nil {
			t.Error("expected error for non-numeric ELISA_TIMEOUT")
		}
	})
}
