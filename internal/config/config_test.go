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
	path := filepath.Join(t.TempDir(), "rentaride.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when nothing is configured", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "rentctl", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "http://localhost:3000", cfg.Target.BaseURL)
		assert.Equal(t, "/api", cfg.Target.APIPrefix)
		assert.Equal(t, 20*time.Second, cfg.Target.Timeout)
		assert.Equal(t, 2, cfg.Target.RetryCount)
		assert.Equal(t, "/uploads/vehicles", cfg.Assets.StaticRoot)
		assert.Equal(t, ".jpg", cfg.Assets.DefaultExt)
		assert.Equal(t, 20*time.Second, cfg.Store.LoadTimeout)
		assert.Equal(t, "rentaride:refetch", cfg.Redis.Channel)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.False(t, cfg.Redis.Enabled)
	})

	t.Run("reads yaml file", func(t *testing.T) {
		path := writeConfig(t, `
app:
  env: staging
target:
  base_url: http://backend.internal:5000
  api_prefix: /v2
  timeout: 5s
  retry_count: 0
  headers:
    X-Client: cli
auth:
  token_file: /tmp/rentaride-token.json
  sign_out_on_unauthorized: true
assets:
  static_root: /static/cars
store:
  refetch_debounce: 150ms
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "staging", cfg.App.Env)
		assert.Equal(t, "http://backend.internal:5000", cfg.Target.BaseURL)
		assert.Equal(t, "/v2", cfg.Target.APIPrefix)
		assert.Equal(t, 5*time.Second, cfg.Target.Timeout)
		assert.Equal(t, 0, cfg.Target.RetryCount)
		assert.Equal(t, "cli", cfg.Target.Headers["x-client"])
		assert.Equal(t, "/tmp/rentaride-token.json", cfg.Auth.TokenFile)
		assert.True(t, cfg.Auth.SignOutOnUnauthorized)
		assert.Equal(t, "/static/cars", cfg.Assets.StaticRoot)
		assert.Equal(t, 150*time.Millisecond, cfg.Store.RefetchDebounce)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "target:\n  base_url: http://file.example\n")
		t.Setenv("RENTARIDE_TARGET_BASE_URL", "http://env.example")
		t.Setenv("RENTARIDE_LOG_LEVEL", "debug")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env.example", cfg.Target.BaseURL)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad base url", func(c *Config) { c.Target.BaseURL = "not a url" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true }},
		{"negative retry", func(c *Config) { c.Target.RetryCount = -1 }},
		{"extension without dot", func(c *Config) { c.Assets.DefaultExt = "jpg" }},
		{"max wait below wait", func(c *Config) { c.Target.RetryMaxWait = time.Millisecond }},
		{"prefix without slash", func(c *Config) { c.Target.APIPrefix = "api" }},
		{"plain http in production", func(c *Config) { c.App.Env = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("redis enabled with addr", func(t *testing.T) {
		cfg := Default()
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = "localhost:6379"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("https in production", func(t *testing.T) {
		cfg := Default()
		cfg.App.Env = "production"
		cfg.Target.BaseURL = "https://api.rentaride.example"
		assert.NoError(t, cfg.Validate())
	})
}
