package config

import (
	"fmt"
	"os"
)

const (
	EnvAuthIssuer   = "PARLEY_AUTH_ISSUER"
	EnvAuthClientID = "PARLEY_AUTH_CLIENT_ID"
)

// AuthConfig holds OIDC bearer-token verification settings.
type AuthConfig struct {
	Issuer   string `toml:"issuer"`
	ClientID string `toml:"client_id"`
}

// Finalize applies environment variable overrides and validation.
func (c *AuthConfig) Finalize() error {
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AuthConfig) Merge(overlay *AuthConfig) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
}

func (c *AuthConfig) loadEnv() {
	if v := os.Getenv(EnvAuthIssuer); v != "" {
		c.Issuer = v
	}
	if v := os.Getenv(EnvAuthClientID); v != "" {
		c.ClientID = v
	}
}

func (c *AuthConfig) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required")
	}
	return nil
}
