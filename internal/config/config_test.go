package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m2tx/live_bridge/internal/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODEL", "HTTP_PORT", "GEMINI_API_KEY", "DISABLE_ENV_KEY", "GENAI_API_VERSION", "GENAI_BASE_URL",
		"MONGODB_URI", "MONGODB_DB", "MONGODB_COLLECTION", "DOCS_DIR", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, live.DefaultModel, cfg.Model)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL", "gemini-live-test")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("DISABLE_ENV_KEY", "true")
	t.Setenv("LOG_FORMAT", "json")

	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "gemini-live-test", cfg.Model)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.True(t, cfg.DisableEnvKey)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: \"7000\"\nlog_level: debug\ndocs_dir: /srv/docs\n"), 0o644))
	t.Setenv("LOG_LEVEL", "warn")

	v, err := New(path)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.HTTPPort)
	assert.Equal(t, "/srv/docs", cfg.DocsDir)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "empty port", mutate: func(c *Config) { c.HTTPPort = "" }, wantErr: "http_port"},
		{name: "bad base url", mutate: func(c *Config) { c.BaseURL = "ftp://x" }, wantErr: "genai_base_url"},
		{name: "ws base url", mutate: func(c *Config) { c.BaseURL = "ws://127.0.0.1:9000/" }},
		{name: "mongo without db", mutate: func(c *Config) { c.MongoURI = "mongodb://x"; c.MongoDB = "" }, wantErr: "mongodb_db"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
