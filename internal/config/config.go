// Package config loads server configuration from layered sources:
// built-in defaults, an optional YAML file, and STRATA_* environment
// variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Schema   SchemaConfig   `koanf:"schema"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `koanf:"addr"`

	// MaxBodyBytes caps the size of an atomic batch request body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file; the directory must exist.
	Path string `koanf:"path"`
}

// SchemaConfig locates the CUE resource definitions.
type SchemaConfig struct {
	// Dir holds the .cue files describing resource types.
	Dir string `koanf:"dir"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "text" or "json".
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 4 << 20,
		},
		Database: DatabaseConfig{
			Path: "strata.db",
		},
		Schema: SchemaConfig{
			Dir: "schema",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; when
// empty, only defaults and environment variables apply.
//
// Environment variables override everything: STRATA_SERVER_ADDR,
// STRATA_DATABASE_PATH, STRATA_SCHEMA_DIR, and so on, mapping each
// underscore-separated segment after the prefix onto the config tree.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("STRATA_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Schema.Dir == "" {
		return fmt.Errorf("schema.dir must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	return nil
}

// envTransform maps STRATA_SECTION_KEY_NAME to "section.key_name".
// Only the first segment becomes a tree level; the rest keep their
// underscores (STRATA_SERVER_MAX_BODY_BYTES -> server.max_body_bytes).
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "STRATA_"))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
