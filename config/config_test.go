package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "listings.db", cfg.Database.Path)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "listings.events", cfg.Messaging.Exchange)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  max_upload_mb: 10
cache:
  local_ttl: 1m
  memcached_host: cache:11211
auth:
  token_ttl: 2h
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, int64(10), cfg.Server.MaxUploadMB)
	assert.Equal(t, time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, "cache:11211", cfg.Cache.MemcachedHost)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	// untouched sections keep defaults
	assert.Equal(t, "uploads", cfg.Storage.ImageDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"mysql without dsn", func(c *Config) { c.Database.Driver = DriverMySQL }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"gridfs without uri", func(c *Config) { c.Storage.Backend = StorageGridFS }},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
