package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvSpeechBaseURL         = "PARLEY_SPEECH_BASE_URL"
	EnvSpeechAPIKey          = "PARLEY_SPEECH_API_KEY"
	EnvSpeechCallbackBaseURL = "PARLEY_SPEECH_CALLBACK_BASE_URL"
	EnvSpeechTimeout         = "PARLEY_SPEECH_TIMEOUT"
)

// SpeechConfig holds settings for the speech-to-text provider client.
// CallbackBaseURL is the externally reachable base URL of this service;
// the provider posts transcription completion signals to it.
type SpeechConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	CallbackBaseURL string `toml:"callback_base_url"`
	Timeout         string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *SpeechConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SpeechConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SpeechConfig) Merge(overlay *SpeechConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.CallbackBaseURL != "" {
		c.CallbackBaseURL = overlay.CallbackBaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *SpeechConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.assemblyai.com"
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

func (c *SpeechConfig) loadEnv() {
	if v := os.Getenv(EnvSpeechBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvSpeechAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvSpeechCallbackBaseURL); v != "" {
		c.CallbackBaseURL = v
	}
	if v := os.Getenv(EnvSpeechTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *SpeechConfig) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key required")
	}
	if c.CallbackBaseURL == "" {
		return fmt.Errorf("callback_base_url required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
