package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the console configuration
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// APIConfig holds settings for talking to the service
type APIConfig struct {
	ServerURL string        `env:"SERVER_URL"`
	Timeout   time.Duration `env:"TIMEOUT"`
}

// StorageConfig holds where the session is persisted
type StorageConfig struct {
	Path string `env:"STATE_PATH"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Verbose bool `env:"VERBOSE"`
}

// MetricsConfig holds where metrics are written after each command
type MetricsConfig struct {
	File string `env:"METRICS_FILE"`
}

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "SHORTCTL_"

// DefaultStatePath returns the state database under the user config directory
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "shortctl", "state.db")
}

// New creates a new config with the given parameters
func New(serverURL, statePath string, timeout time.Duration, verbose bool, metricsFile string) (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			ServerURL: serverURL,
			Timeout:   timeout,
		},
		Storage: StorageConfig{
			Path: statePath,
		},
		Logging: LoggingConfig{
			Verbose: verbose,
		},
		Metrics: MetricsConfig{
			File: metricsFile,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv builds a config from flag values and then lets SHORTCTL_*
// environment variables override them
func FromEnv(serverURL, statePath string, timeout time.Duration, verbose bool, metricsFile string) (*Config, error) {
	cfg := &Config{
		API:     APIConfig{ServerURL: serverURL, Timeout: timeout},
		Storage: StorageConfig{Path: statePath},
		Logging: LoggingConfig{Verbose: verbose},
		Metrics: MetricsConfig{File: metricsFile},
	}

	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func (c *Config) validate() error {
	if c.API.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	u, err := url.Parse(c.API.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server URL must be an absolute http(s) URL, got: %q", c.API.ServerURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.API.Timeout)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("state path cannot be empty")
	}

	return nil
}
