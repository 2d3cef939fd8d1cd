// Package config holds the server's own configuration and the workspace
// settings pushed by clients at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the server configuration, loadable from a TOML file.
type Config struct {
	// Addr is the TCP address the server listens on.
	Addr string `toml:"addr"`

	// RequestTimeout bounds each feature request, e.g. "2s".
	RequestTimeout string `toml:"request_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// LogFile receives log output in addition to stderr when set.
	LogFile string `toml:"log_file"`

	// CompileOnSave compiles a document and publishes diagnostics whenever
	// it is saved. Clients may override this via workspace settings.
	CompileOnSave bool `toml:"compile_on_save"`

	// WatchWorkspace republishes diagnostics when rule files change on disk.
	WatchWorkspace bool `toml:"watch_workspace"`
}

// Default returns the default server configuration.
func Default() Config {
	return Config{
		Addr:           "127.0.0.1:8471",
		RequestTimeout: "2s",
		LogLevel:       "info",
	}
}

// Load reads a TOML config file, filling unset fields with defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Timeout(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Timeout parses the configured request timeout.
func (c Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse request_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request_timeout must be positive, got %s", d)
	}
	return d, nil
}
