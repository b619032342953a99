package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.zpw/config.toml.
type Config struct {
	DefaultSession string        `toml:"default_session"`
	API            APIConfig     `toml:"api"`
	Metrics        MetricsConfig `toml:"metrics"`
}

// APIConfig controls how requests reach the messaging service.
type APIConfig struct {
	Version        int     `toml:"version"`
	Type           int     `toml:"type"`
	UserAgent      string  `toml:"user_agent"`
	Language       string  `toml:"language"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"` // requests per second, 0 = unlimited
	Burst          int     `toml:"burst"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Version:        665,
			Type:           30,
			TimeoutSeconds: 30,
			RateLimit:      5,
			Burst:          10,
		},
	}
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Load reads config from the given path. Returns nil config and error if file missing.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
