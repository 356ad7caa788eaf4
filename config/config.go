// Package config loads the TOML configuration of a session service and
// builds the factory chain it describes.
//
// Example:
//
//	[directory]
//	type = "passwd"
//	backend = "/etc/groupware/domains"
//	options = { default_domain = "example.com" }
//
//	[store]
//	type = "redis"
//	backend = "localhost:6379"
//	ttl = "4h"
//	codec = "token"
//	secret = "..."
//
//	[session]
//	"storage.tls" = "true"
//
//	[anonymous]
//	id = "anonymous"
//	password = "..."
//
//	[validation]
//	max_age = "1h"
//	directory = true
//
//	[metrics]
//	enabled = true
//
//	[log]
//	level = "debug"
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the configuration file structure.
type Config struct {
	Directory  DirectoryConfig   `toml:"directory"`
	Store      StoreConfig       `toml:"store"`
	Session    map[string]string `toml:"session"`
	Anonymous  AnonymousConfig   `toml:"anonymous"`
	Validation ValidationConfig  `toml:"validation"`
	Metrics    MetricsConfig     `toml:"metrics"`
	Log        LogConfig         `toml:"log"`
}

// DirectoryConfig selects the directory driver.
type DirectoryConfig struct {
	// Type is the driver name (e.g., "passwd", "ldap").
	Type string `toml:"type"`

	// Backend is the base path of a passwd tree or the URL of an LDAP server.
	Backend string `toml:"backend"`

	// Options contains driver-specific settings.
	Options map[string]string `toml:"options"`
}

// StoreConfig selects the session storage driver.
type StoreConfig struct {
	// Type is the driver name ("memory", "badger", "redis"), or "none" to
	// disable session caching.
	Type string `toml:"type"`

	// Backend is the database path or server address.
	Backend string `toml:"backend"`

	// TTL is how long cached sessions are kept, e.g. "4h".
	TTL string `toml:"ttl"`

	// Codec is "json" or "token".
	Codec string `toml:"codec"`

	// Secret is the signing key of the token codec.
	Secret string `toml:"secret"`

	// Options contains driver-specific settings.
	Options map[string]string `toml:"options"`
}

// AnonymousConfig enables the anonymous factory decorator when ID is set.
type AnonymousConfig struct {
	ID       string `toml:"id"`
	Password string `toml:"password"`
}

// ValidationConfig adds checks for restored sessions on top of the identity check.
type ValidationConfig struct {
	// MaxAge rejects cached attributes older than this, e.g. "1h".
	MaxAge string `toml:"max_age"`

	// Directory re-reads the directory entry and rejects changed ones.
	Directory bool `toml:"directory"`
}

// MetricsConfig enables Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig sets the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used for settings a file leaves out.
func Default() Config {
	return Config{
		Directory: DirectoryConfig{
			Type:    "passwd",
			Backend: "/etc/groupware/domains",
		},
		Store: StoreConfig{
			Type: "memory",
			TTL:  "4h",
		},
		Log: LogConfig{Level: "info"},
	}
}

// mergeConfig returns a new Config with base values overridden by
// non-zero values from override. Fields absent in override retain the base value.
func mergeConfig(base, override Config) Config {
	result := base
	if override.Directory.Type != "" {
		result.Directory.Type = override.Directory.Type
	}
	if override.Directory.Backend != "" {
		result.Directory.Backend = override.Directory.Backend
	}
	if len(override.Directory.Options) > 0 {
		result.Directory.Options = override.Directory.Options
	}
	if override.Store.Type != "" {
		result.Store.Type = override.Store.Type
	}
	if override.Store.Backend != "" {
		result.Store.Backend = override.Store.Backend
	}
	if override.Store.TTL != "" {
		result.Store.TTL = override.Store.TTL
	}
	if override.Store.Codec != "" {
		result.Store.Codec = override.Store.Codec
	}
	if override.Store.Secret != "" {
		result.Store.Secret = override.Store.Secret
	}
	if len(override.Store.Options) > 0 {
		result.Store.Options = override.Store.Options
	}
	if len(override.Session) > 0 {
		result.Session = override.Session
	}
	if override.Anonymous.ID != "" {
		result.Anonymous = override.Anonymous
	}
	if override.Validation.MaxAge != "" {
		result.Validation.MaxAge = override.Validation.MaxAge
	}
	if override.Validation.Directory {
		result.Validation.Directory = true
	}
	if override.Metrics.Enabled {
		result.Metrics.Enabled = true
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	return result
}

// Load reads and parses a configuration file, filling in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses TOML configuration data, filling in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	merged := mergeConfig(Default(), cfg)
	if err := merged.validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (c *Config) validate() error {
	if _, err := c.maxAge(); err != nil {
		return fmt.Errorf("validation.max_age: %w", err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Anonymous.ID != "" && c.Anonymous.Password == "" {
		return fmt.Errorf("anonymous.password is required when anonymous.id is set")
	}
	return nil
}

func (c *Config) maxAge() (time.Duration, error) {
	if c.Validation.MaxAge == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Validation.MaxAge)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// storeOptions folds the dedicated [store] keys into the driver options.
func (s StoreConfig) storeOptions() map[string]string {
	opts := make(map[string]string, len(s.Options)+3)
	for k, v := range s.Options {
		opts[k] = v
	}
	for k, v := range map[string]string{"ttl": s.TTL, "codec": s.Codec, "secret": s.Secret} {
		if v != "" {
			opts[k] = v
		}
	}
	return opts
}
