// Package config loads mapsync settings from a TOML file with environment
// overrides.
//
// Precedence, lowest first: built-in defaults, the TOML file, MAPSYNC_*
// environment variables. Command-line flags are applied by the CLI on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/mapsync/internal/namespace"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAPSYNC_"

// Config is the mapsync configuration.
type Config struct {
	Namespace string    `toml:"namespace" env:"NAMESPACE"`
	Database  string    `toml:"database" env:"DATABASE"`
	Log       LogConfig `toml:"log" envPrefix:"LOG_"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Namespace: namespace.DefaultPrefix,
		Database:  "mapsync.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error; an empty path skips
// the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config env parse failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Validate rejects settings mapsync cannot run with.
func (c Config) Validate() error {
	if _, err := namespace.New(c.Namespace); err != nil {
		return fmt.Errorf("config namespace invalid: %w", err)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("config missing database")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config log format %q invalid, must be text or json", c.Log.Format)
	}
	return nil
}

// NamespaceValue returns the validated namespace.
func (c Config) NamespaceValue() (namespace.Namespace, error) {
	return namespace.New(c.Namespace)
}

// Logger builds the slog logger described by c, writing to w.
// verbose forces debug level.
func (c Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config log level %q invalid, must be debug, info, warn or error", s)
	}
}
