package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Store    StoreConfig    `toml:"store"`
	API      APIConfig      `toml:"api"`
	Log      LogConfig      `toml:"log"`
	Debounce DebounceConfig `toml:"debounce"`
}

type StoreConfig struct {
	// Namespace prefixes table keys; NormalizedNamespace prefixes the
	// per-record mirror keys. Both end up in persisted storage keys, so
	// changing them orphans existing data.
	Namespace           string `toml:"namespace"`
	NormalizedNamespace string `toml:"normalized_namespace"`
	DataDir             string `toml:"data_dir"`
	DumpDir             string `toml:"dump_dir"`
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	GraphQLURL     string `toml:"graphql_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DebounceConfig struct {
	IntervalMs int `toml:"interval_ms"`
}

// Timeout returns the API timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Interval returns the debounce interval as a duration.
func (d DebounceConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMs) * time.Millisecond
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Namespace:           "satchel",
			NormalizedNamespace: "normalized",
			DataDir:             "~/.satchel",
		},
		API: APIConfig{
			TimeoutSeconds: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Debounce: DebounceConfig{
			IntervalMs: 250,
		},
	}
}

// Load reads a TOML config file and returns the parsed Config.
// If path is empty, the default location is tried; a missing default file
// just yields Defaults().
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome("~/.satchel/config.toml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the rest of the module cannot work with.
func (c *Config) Validate() error {
	if c.Store.Namespace == "" {
		return fmt.Errorf("store.namespace must not be empty")
	}
	if strings.ContainsAny(c.Store.Namespace, "_.") {
		return fmt.Errorf("store.namespace must not contain '_' or '.'")
	}
	if c.Store.NormalizedNamespace == "" {
		return fmt.Errorf("store.normalized_namespace must not be empty")
	}
	if strings.Contains(c.Store.NormalizedNamespace, ".") {
		return fmt.Errorf("store.normalized_namespace must not contain '.'")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}
	if c.Debounce.IntervalMs < 0 {
		return fmt.Errorf("debounce.interval_ms must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
