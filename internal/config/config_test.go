package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"EPIDERMA_CONFIG",
	"EPIDERMA_API_URL",
	"EPIDERMA_TIMEOUT",
	"EPIDERMA_MAX_UPLOAD_BYTES",
	"EPIDERMA_THEME",
	"EPIDERMA_LOG_FILE",
	"EPIDERMA_LOG_LEVEL",
	"EPIDERMA_OTLP_ENDPOINT",
}

// isolate clears Epiderma variables and points the config dir and working
// directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)
	return dir
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, ThemeLight, cfg.Theme)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultPathFile(t *testing.T) {
	dir := isolate(t)
	writeYAML(t, filepath.Join(dir, "epiderma", "config.yaml"), `
api_url: http://analysis.internal:9000
request_timeout: 30s
max_upload_bytes: 1048576
theme: Dark
log_level: debug
otlp_endpoint: http://collector:4318
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.internal:9000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(1048576), cfg.MaxUploadBytes)
	assert.Equal(t, ThemeDark, cfg.Theme)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "http://collector:4318", cfg.OTLPEndpoint)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeYAML(t, path, "api_url: http://from-file:1\ntheme: dark\n")

	t.Setenv("EPIDERMA_API_URL", "http://from-env:2")
	t.Setenv("EPIDERMA_TIMEOUT", "5s")
	t.Setenv("EPIDERMA_MAX_UPLOAD_BYTES", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:2", cfg.APIURL)
	assert.Equal(t, ThemeDark, cfg.Theme, "file value kept when env is unset")
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(42), cfg.MaxUploadBytes)
}

func TestConfigEnvVarSelectsFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "via-env.yaml")
	writeYAML(t, path, "api_url: https://via-env.example\n")
	t.Setenv("EPIDERMA_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://via-env.example", cfg.APIURL)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	writeYAML(t, path, "api_url: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoadInvalidDurations(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "c.yaml")
	writeYAML(t, path, "request_timeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")

	writeYAML(t, path, "")
	t.Setenv("EPIDERMA_TIMEOUT", "later")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPIDERMA_TIMEOUT")
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EPIDERMA_THEME=dark\nEPIDERMA_API_URL=http://dotenv:1\n"), 0o644))

	// The real environment wins over .env.
	t.Setenv("EPIDERMA_API_URL", "http://real-env:1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, cfg.Theme)
	assert.Equal(t, "http://real-env:1", cfg.APIURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "https", mutate: func(c *Config) { c.APIURL = "https://example.com" }},
		{name: "bad scheme", mutate: func(c *Config) { c.APIURL = "ftp://example.com" }, wantErr: "scheme"},
		{name: "no host", mutate: func(c *Config) { c.APIURL = "http://" }, wantErr: "missing host"},
		{name: "zero upload", mutate: func(c *Config) { c.MaxUploadBytes = 0 }, wantErr: "max upload"},
		{name: "negative timeout", mutate: func(c *Config) { c.RequestTimeout = -time.Second }, wantErr: "timeout"},
		{name: "unknown theme", mutate: func(c *Config) { c.Theme = "sepia" }, wantErr: "theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
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

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("chatty"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, slog.LevelInfo)

	logger.Info("analysis complete", "severity", "Mild")
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "analysis complete")
	assert.Contains(t, file.String(), `"msg":"analysis complete"`)
	assert.NotContains(t, console.String(), "hidden")
}

func TestSetupLoggerFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epiderma.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo, nil)
	logger.Info("hello file")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
