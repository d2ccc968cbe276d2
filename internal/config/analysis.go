package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvAnalysisAPIKey  = "PARLEY_ANALYSIS_API_KEY"
	EnvAnalysisBaseURL = "PARLEY_ANALYSIS_BASE_URL"
	EnvAnalysisModel   = "PARLEY_ANALYSIS_MODEL"
	EnvAnalysisTimeout = "PARLEY_ANALYSIS_TIMEOUT"
)

// AnalysisConfig holds settings for the LLM analysis engine.
type AnalysisConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *AnalysisConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnalysisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AnalysisConfig) Merge(overlay *AnalysisConfig) {
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *AnalysisConfig) loadDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

func (c *AnalysisConfig) loadEnv() {
	if v := os.Getenv(EnvAnalysisAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvAnalysisBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAnalysisModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvAnalysisTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *AnalysisConfig) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
