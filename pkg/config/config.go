// Package config loads the sentinel configuration from YAML with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/electoral-watch/sentinel/pkg/rules"
)

// StoreConfig selects and parameterizes the snapshot store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
	// RedisAddr enables the latest-hash cache when non-empty.
	RedisAddr string `yaml:"redis_addr"`
	// CacheTTLSeconds bounds cached latest hashes; 0 keeps them forever.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// AnchorConfig parameterizes the external anchoring batcher.
type AnchorConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the anchoring gateway URL.
	Endpoint string `yaml:"endpoint"`
	// RatePerMinute caps anchoring transactions.
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

// ContentConfig selects the content-addressed mirror backend.
type ContentConfig struct {
	// Backend is "none", "file", or "s3".
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

// NormalizeConfig carries the election identity stamped on every snapshot.
type NormalizeConfig struct {
	Election           string `yaml:"election"`
	Year               int    `yaml:"year"`
	Source             string `yaml:"source"`
	CandidateCountHint int    `yaml:"candidate_count_hint"`
	// FieldMapPath points at a YAML field map; empty uses the built-in one.
	FieldMapPath string `yaml:"field_map_path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Config is the full sentinel configuration.
type Config struct {
	Store     StoreConfig        `yaml:"store"`
	Rules     rules.EngineConfig `yaml:"rules"`
	Anchor    AnchorConfig       `yaml:"anchor"`
	Content   ContentConfig      `yaml:"content"`
	Normalize NormalizeConfig    `yaml:"normalize"`
	Log       LogConfig          `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "sentinel.db",
		},
		Anchor: AnchorConfig{
			RatePerMinute: 6,
			Burst:         1,
		},
		Content: ContentConfig{
			Backend: "none",
		},
		Normalize: NormalizeConfig{
			Election:           "HN-PRESIDENTIAL",
			Year:               2025,
			Source:             "CNE",
			CandidateCountHint: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&c.Store.Driver, "SENTINEL_DB_DRIVER")
	setString(&c.Store.Path, "SENTINEL_DB_PATH")
	setString(&c.Store.DSN, "SENTINEL_DB_DSN")
	setString(&c.Store.RedisAddr, "SENTINEL_REDIS_ADDR")
	setString(&c.Content.Backend, "SENTINEL_CONTENT_BACKEND")
	setString(&c.Content.Dir, "SENTINEL_CONTENT_DIR")
	setString(&c.Content.Bucket, "SENTINEL_S3_BUCKET")
	setString(&c.Log.Level, "SENTINEL_LOG_LEVEL")
	if v, ok := os.LookupEnv("SENTINEL_ANCHOR_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Anchor.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Content.Backend {
	case "", "none":
	case "file":
		if c.Content.Dir == "" {
			return fmt.Errorf("config: content.dir is required for the file backend")
		}
	case "s3":
		if c.Content.Bucket == "" {
			return fmt.Errorf("config: content.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown content backend %q", c.Content.Backend)
	}
	if c.Anchor.Enabled && c.Anchor.Endpoint == "" {
		return fmt.Errorf("config: anchor.endpoint is required when anchoring is enabled")
	}
	return nil
}
