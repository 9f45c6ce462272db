package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sentinel.db", cfg.Store.Path)
	assert.Equal(t, "HN-PRESIDENTIAL", cfg.Normalize.Election)
	assert.False(t, cfg.Anchor.Enabled)
	assert.False(t, cfg.Rules.Disabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: postgres
  dsn: postgres://sentinel@localhost/sentinel?sslmode=disable
rules:
  rules:
    benford_first_digit:
      enabled: false
      min_samples: 25
anchor:
  enabled: true
  endpoint: https://anchor.example.org/roots
  rate_per_minute: 2
content:
  backend: file
  dir: /var/lib/sentinel/content
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.Anchor.Enabled)
	assert.Equal(t, 2.0, cfg.Anchor.RatePerMinute)
	assert.Equal(t, "file", cfg.Content.Backend)

	rule := cfg.Rules.Rules["benford_first_digit"]
	assert.Equal(t, false, rule.Bool("enabled", true))
	assert.Equal(t, 25, rule.Int("min_samples", 15))
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: sqlite\n  path: from-file.db\n")
	t.Setenv("SENTINEL_DB_PATH", "/data/override.db")
	t.Setenv("SENTINEL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/override.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  driver: oracle\n"))
	assert.ErrorContains(t, err, "unknown store driver")

	_, err = Load(writeConfig(t, "store:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "store.dsn")

	_, err = Load(writeConfig(t, "content:\n  backend: s3\n"))
	assert.ErrorContains(t, err, "content.bucket")

	_, err = Load(writeConfig(t, "anchor:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "anchor.endpoint")

	_, err = Load(writeConfig(t, "{{not yaml"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "load config")
}
