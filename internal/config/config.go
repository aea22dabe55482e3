package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Load when the file omits a field.
const (
	DefaultAPIURL                = "http://localhost:5000/api"
	DefaultPollIntervalMs        = 2000
	DefaultContactIntervalMs     = 10000
	DefaultStrangerSweepMs       = 5000
	DefaultRequestTimeoutSeconds = 10
)

// Config represents the global ~/.tchat/config.toml.
type Config struct {
	APIURL                string `toml:"api_url"`
	DefaultSession        string `toml:"default_session"`
	PollIntervalMs        int    `toml:"poll_interval_ms"`
	ContactIntervalMs     int    `toml:"contact_poll_interval_ms"`
	StrangerSweepMs       int    `toml:"stranger_sweep_interval_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers that tolerate a missing file should fall back to Default().
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
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

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.ContactIntervalMs <= 0 {
		c.ContactIntervalMs = DefaultContactIntervalMs
	}
	if c.StrangerSweepMs <= 0 {
		c.StrangerSweepMs = DefaultStrangerSweepMs
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
}

// PollInterval returns the conversation poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ContactInterval returns the contact reload interval as a duration.
func (c *Config) ContactInterval() time.Duration {
	return time.Duration(c.ContactIntervalMs) * time.Millisecond
}

// StrangerSweepInterval returns the stranger safety-net sweep interval.
func (c *Config) StrangerSweepInterval() time.Duration {
	return time.Duration(c.StrangerSweepMs) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
