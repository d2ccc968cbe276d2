package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/parleyhq/parley/pkg/database"
	"github.com/parleyhq/parley/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvParleyEnv             = "PARLEY_ENV"
	EnvParleyShutdownTimeout = "PARLEY_SHUTDOWN_TIMEOUT"
	EnvParleyVersion         = "PARLEY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PARLEY_DB_HOST",
	Port:            "PARLEY_DB_PORT",
	Name:            "PARLEY_DB_NAME",
	User:            "PARLEY_DB_USER",
	Password:        "PARLEY_DB_PASSWORD",
	SSLMode:         "PARLEY_DB_SSL_MODE",
	MaxOpenConns:    "PARLEY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PARLEY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PARLEY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PARLEY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "PARLEY_STORAGE_CONTAINER_NAME",
	ConnectionString: "PARLEY_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the Parley service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Auth            AuthConfig      `toml:"auth"`
	CRM             CRMConfig       `toml:"crm"`
	Speech          SpeechConfig    `toml:"speech"`
	Analysis        AnalysisConfig  `toml:"analysis"`
	Webhook         WebhookConfig   `toml:"webhook"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the PARLEY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvParleyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Auth.Merge(&overlay.Auth)
	c.CRM.Merge(&overlay.CRM)
	c.Speech.Merge(&overlay.Speech)
	c.Analysis.Merge(&overlay.Analysis)
	c.Webhook.Merge(&overlay.Webhook)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Auth.Finalize(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.CRM.Finalize(); err != nil {
		return fmt.Errorf("crm: %w", err)
	}
	if err := c.Speech.Finalize(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Analysis.Finalize(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Webhook.Finalize(); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvParleyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvParleyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvParleyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
