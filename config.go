package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/elisa-itb/elisa/analysis"
)

const (
	defaultAPIURL      = "https://elisa.itb.ac.id"
	defaultAnalysisURL = "http://127.0.0.1:8000"
	defaultTimeoutSec  = 30
	defaultRefreshMin  = 60
)

// ModelProfile is a named model entry in config.yaml. Backend is the
// identifier sent to the analysis API.
type ModelProfile struct {
	Backend *string  `yaml:"backend,omitempty"`
	Extend  *string  `yaml:"extend,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

type ConfigFile struct {
	APIURL         *string                 `yaml:"api_url,omitempty"`
	AnalysisURL    *string                 `yaml:"analysis_url,omitempty"`
	StreamPath     *string                 `yaml:"stream_path,omitempty"`
	DefaultModel   string                  `yaml:"default_model,omitempty"`
	Timeout        *int                    `yaml:"timeout,omitempty"` // Seconds
	LogFile        *string                 `yaml:"log_file,omitempty"`
	RefreshMinutes *int                    `yaml:"refresh_minutes,omitempty"`
	Models         map[string]ModelProfile `yaml:"models,omitempty"`
}

type envConfig struct {
	APIURL      string `env:"ELISA_API_URL"`
	AnalysisURL string `env:"ELISA_ANALYSIS_URL"`
	Model       string `env:"ELISA_MODEL"`
	Timeout     int    `env:"ELISA_TIMEOUT"`
	LogFile     string `env:"ELISA_LOG_FILE"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".elisa"
	}
	return filepath.Join(home, ".elisa")
}

// loadConfig reads path. A missing file is an empty config; the directory
// is created so the log file and history have somewhere to go.
func loadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			os.MkdirAll(filepath.Dir(path), 0o755)
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	expandAliases(&cfg)
	return &cfg, nil
}

// expandAliases turns every alias into a profile extending its owner.
func expandAliases(cfg *ConfigFile) {
	if cfg.Models == nil {
		return
	}
	aliasMap := make(map[string]ModelProfile)
	for name, profile := range cfg.Models {
		for _, alias := range profile.Aliases {
			if _, exists := cfg.Models[alias]; exists {
				fmt.Fprintf(os.Stderr, "Warning: alias '%s' defined in model '%s' clashes with existing model. Ignoring alias.\n", alias, name)
				continue
			}
			if _, exists := aliasMap[alias]; exists {
				fmt.Fprintf(os.Stderr, "Warning: duplicate alias '%s' defined in model '%s'. Ignoring.\n", alias, name)
				continue
			}
			parent := name
			aliasMap[alias] = ModelProfile{Extend: &parent}
		}
	}
	for k, v := range aliasMap {
		cfg.Models[k] = v
	}
}

// resolveModel maps a profile name to the backend identifier. Names with
// no profile are passed through unchanged.
func resolveModel(cfg *ConfigFile, name string) (string, error) {
	if name == "" || cfg == nil || len(cfg.Models) == 0 {
		return name, nil
	}
	profile, err := resolveModelProfileRec(cfg, name, map[string]bool{})
	if err != nil {
		return "", err
	}
	if profile.Backend != nil {
		return *profile.Backend, nil
	}
	return name, nil
}

func resolveModelProfileRec(cfg *ConfigFile, name string, visited map[string]bool) (ModelProfile, error) {
	if visited[name] {
		return ModelProfile{}, fmt.Errorf("circular dependency detected for model: %s", name)
	}
	visited[name] = true

	profile, ok := cfg.Models[name]
	if !ok {
		return ModelProfile{}, nil
	}
	if profile.Extend == nil {
		return profile, nil
	}

	parent, err := resolveModelProfileRec(cfg, *profile.Extend, visited)
	if err != nil {
		return ModelProfile{}, err
	}
	merged := parent
	if profile.Backend != nil {
		merged.Backend = profile.Backend
	}
	// An extending profile that names no backend of its own still means
	// its parent's name when the parent has none either.
	if merged.Backend == nil {
		p := *profile.Extend
		merged.Backend = &p
	}
	merged.Extend = profile.Extend
	merged.Aliases = profile.Aliases
	return merged, nil
}

type RunConfig struct {
	APIURL      string
	AnalysisURL string
	StreamPath  string
	Model       string
	Timeout     time.Duration
	LogFile     string
	Refresh     time.Duration
	Verbose     bool
}

// getRunConfig merges flags, environment, file and defaults, in that order
// of precedence.
func getRunConfig(cmd *cobra.Command, cfg *ConfigFile) (RunConfig, error) {
	if cfg == nil {
		cfg = &ConfigFile{}
	}
	var ev envConfig
	if err := env.Parse(&ev); err != nil {
		return RunConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	rc := RunConfig{
		APIURL:      defaultAPIURL,
		AnalysisURL: defaultAnalysisURL,
		StreamPath:  analysis.DefaultStreamPath,
		Model:       analysis.ModelGemini,
		Timeout:     defaultTimeoutSec * time.Second,
		LogFile:     filepath.Join(configDir(), "elisa.log"),
		Refresh:     defaultRefreshMin * time.Minute,
	}

	// file
	if cfg.APIURL != nil {
		rc.APIURL = *cfg.APIURL
	}
	if cfg.AnalysisURL != nil {
		rc.AnalysisURL = *cfg.AnalysisURL
	}
	if cfg.StreamPath != nil {
		rc.StreamPath = *cfg.StreamPath
	}
	if cfg.DefaultModel != "" {
		rc.Model = cfg.DefaultModel
	}
	if cfg.Timeout != nil {
		rc.Timeout = time.Duration(*cfg.Timeout) * time.Second
	}
	if cfg.LogFile != nil {
		rc.LogFile = *cfg.LogFile
	}
	if cfg.RefreshMinutes != nil {
		rc.Refresh = time.Duration(*cfg.RefreshMinutes) * time.Minute
	}

	// env
	if ev.APIURL != "" {
		rc.APIURL = ev.APIURL
	}
	if ev.AnalysisURL != "" {
		rc.AnalysisURL = ev.AnalysisURL
	}
	if ev.Model != "" {
		rc.Model = ev.Model
	}
	if ev.Timeout > 0 {
		rc.Timeout = time.Duration(ev.Timeout) * time.Second
	}
	if ev.LogFile != "" {
		rc.LogFile = ev.LogFile
	}

	// flags
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		rc.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("analysis-url") {
		rc.AnalysisURL, _ = flags.GetString("analysis-url")
	}
	if flags.Changed("model") {
		rc.Model, _ = flags.GetString("model")
	}
	if flags.Changed("timeout") {
		sec, _ := flags.GetInt("timeout")
		rc.Timeout = time.Duration(sec) * time.Second
	}
	if flags.Changed("log-file") {
		rc.LogFile, _ = flags.GetString("log-file")
	}
	rc.Verbose, _ = flags.GetBool("verbose")

	model, err := resolveModel(cfg, strings.TrimSpace(rc.Model))
	if err != nil {
		return RunConfig{}, err
	}
	rc.Model = model

	return rc, nil
}
