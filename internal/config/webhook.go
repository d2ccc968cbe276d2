package config

import (
	"fmt"
	"os"
)

const EnvWebhookInternalSecret = "PARLEY_WEBHOOK_INTERNAL_SECRET"

// WebhookConfig holds settings for inbound webhook handling.
type WebhookConfig struct {
	InternalSecret string `toml:"internal_secret"`
}

// Finalize applies environment variable overrides and validation.
func (c *WebhookConfig) Finalize() error {
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WebhookConfig) Merge(overlay *WebhookConfig) {
	if overlay.InternalSecret != "" {
		c.InternalSecret = overlay.InternalSecret
	}
}

func (c *WebhookConfig) loadEnv() {
	if v := os.Getenv(EnvWebhookInternalSecret); v != "" {
		c.InternalSecret = v
	}
}

func (c *WebhookConfig) validate() error {
	if c.InternalSecret == "" {
		return fmt.Errorf("internal_secret required")
	}
	return nil
}
