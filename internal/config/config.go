// Package config loads client settings from defaults, a YAML file, a .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Theme names accepted by the TUI.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	APIURL         string
	RequestTimeout time.Duration
	MaxUploadBytes int64

	// Presentation
	Theme string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Tracing
	OTLPEndpoint string
}

// fileConfig mirrors the YAML file. Pointer fields distinguish "unset" from
// zero values.
type fileConfig struct {
	APIURL         *string `yaml:"api_url"`
	RequestTimeout *string `yaml:"request_timeout"`
	MaxUploadBytes *int64  `yaml:"max_upload_bytes"`
	Theme          *string `yaml:"theme"`
	LogFile        *string `yaml:"log_file"`
	LogLevel       *string `yaml:"log_level"`
	OTLPEndpoint   *string `yaml:"otlp_endpoint"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 2 * time.Minute,
		MaxUploadBytes: 5 * 1024 * 1024,
		Theme:          ThemeLight,
		LogFile:        filepath.Join(os.TempDir(), "epiderma.log"),
		LogLevel:       slog.LevelInfo,
	}
}

// DefaultPath returns the YAML config location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "epiderma", "config.yaml")
}

// Load builds the configuration. Precedence, lowest first: defaults, the YAML
// file at path (EPIDERMA_CONFIG or DefaultPath when path is empty), a .env
// file in the working directory, then the process environment. A missing
// file at any step is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv("EPIDERMA_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.applyFile(path, explicit); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFile merges the YAML file at path. A missing file is only an error
// when it was named explicitly.
func (c *Config) applyFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.APIURL != nil {
		c.APIURL = *fc.APIURL
	}
	if fc.RequestTimeout != nil {
		d, err := time.ParseDuration(*fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.Theme != nil {
		c.Theme = strings.ToLower(*fc.Theme)
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	if fc.LogLevel != nil {
		c.LogLevel = parseLogLevel(*fc.LogLevel)
	}
	if fc.OTLPEndpoint != nil {
		c.OTLPEndpoint = *fc.OTLPEndpoint
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIURL = getEnv("EPIDERMA_API_URL", c.APIURL)
	c.Theme = strings.ToLower(getEnv("EPIDERMA_THEME", c.Theme))
	c.LogFile = getEnv("EPIDERMA_LOG_FILE", c.LogFile)
	c.OTLPEndpoint = getEnv("EPIDERMA_OTLP_ENDPOINT", c.OTLPEndpoint)

	if v := os.Getenv("EPIDERMA_LOG_LEVEL"); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv("EPIDERMA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse EPIDERMA_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("EPIDERMA_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse EPIDERMA_MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks the values that would otherwise fail late.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api url %q: scheme must be http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api url %q: missing host", c.APIURL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.Theme != ThemeLight && c.Theme != ThemeDark {
		return fmt.Errorf("unknown theme %q (want %s or %s)", c.Theme, ThemeLight, ThemeDark)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
