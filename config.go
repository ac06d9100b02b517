package a2a

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultTimeout bounds each I/O step of a tool call when Config.Timeout is
// unset.
const DefaultTimeout = 10 * time.Second

// Config holds the tool transport parameters.
type Config struct {
	BaseURL string        // http(s)://host[:port][/base-path]
	Timeout time.Duration // per-I/O-step deadline; DefaultTimeout when zero
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("a2a: base_url not configured")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// fileConfig is the on-disk TOML shape of Config.
type fileConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"` // e.g. "10s", "500ms"
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads a TOML config file, applies defaults, and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("a2a: config load failed (%s): %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("a2a: config parse failed (%s): %w", path, err)
	}

	cfg := Config{BaseURL: fc.BaseURL, Timeout: fc.Timeout.Duration}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
