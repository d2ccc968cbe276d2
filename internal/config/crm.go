package config

import (
	"fmt"
	"os"
	"time"

	"github.com/parleyhq/parley/pkg/formatting"
)

const (
	EnvCRMBaseURL          = "PARLEY_CRM_BASE_URL"
	EnvCRMAPIVersion       = "PARLEY_CRM_API_VERSION"
	EnvCRMMaxRecordingSize = "PARLEY_CRM_MAX_RECORDING_SIZE"
	EnvCRMTimeout          = "PARLEY_CRM_TIMEOUT"
)

// CRMConfig holds settings for the CRM gateway client.
type CRMConfig struct {
	BaseURL          string `toml:"base_url"`
	APIVersion       string `toml:"api_version"`
	MaxRecordingSize string `toml:"max_recording_size"`
	Timeout          string `toml:"timeout"`
}

// MaxRecordingSizeBytes returns MaxRecordingSize as a byte count.
func (c *CRMConfig) MaxRecordingSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxRecordingSize)
	return n
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *CRMConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CRMConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *CRMConfig) Merge(overlay *CRMConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.MaxRecordingSize != "" {
		c.MaxRecordingSize = overlay.MaxRecordingSize
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *CRMConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://services.leadconnectorhq.com"
	}
	if c.APIVersion == "" {
		c.APIVersion = "2021-04-15"
	}
	if c.MaxRecordingSize == "" {
		c.MaxRecordingSize = "50MB"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *CRMConfig) loadEnv() {
	if v := os.Getenv(EnvCRMBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvCRMAPIVersion); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv(EnvCRMMaxRecordingSize); v != "" {
		c.MaxRecordingSize = v
	}
	if v := os.Getenv(EnvCRMTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *CRMConfig) validate() error {
	if _, err := formatting.ParseBytes(c.MaxRecordingSize); err != nil {
		return fmt.Errorf("invalid max_recording_size: %w", err)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
