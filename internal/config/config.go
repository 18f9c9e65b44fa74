// Package config loads client settings from an optional YAML file, an
// optional .env file and MOMENTIFY_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL            = "http://localhost:3001"
	DefaultWSURL             = "http://localhost:3001"
	DefaultMaxUploadBytes    = 50 << 20 // 50 MiB
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultReconnectDelayMax = 5 * time.Second
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config is the resolved client configuration.
type Config struct {
	APIURL            string        `yaml:"apiURL"`
	WSURL             string        `yaml:"wsURL"`
	DataDir           string        `yaml:"dataDir"`
	LogLevel          string        `yaml:"logLevel"`
	LogFormat         string        `yaml:"logFormat"`
	MaxUploadBytes    int64         `yaml:"maxUploadBytes"`
	ReconnectAttempts int           `yaml:"reconnectAttempts"`
	ReconnectDelay    time.Duration `yaml:"reconnectDelay"`
	ReconnectDelayMax time.Duration `yaml:"reconnectDelayMax"`
	HTTPTimeout       time.Duration `yaml:"httpTimeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:            DefaultAPIURL,
		WSURL:             DefaultWSURL,
		DataDir:           defaultDataDir(),
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		MaxUploadBytes:    DefaultMaxUploadBytes,
		ReconnectAttempts: DefaultReconnectAttempts,
		ReconnectDelay:    DefaultReconnectDelay,
		ReconnectDelayMax: DefaultReconnectDelayMax,
		HTTPTimeout:       DefaultHTTPTimeout,
	}
}

// Load resolves configuration. path may be empty; a missing file at path is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.APIURL = readEnv("MOMENTIFY_API_URL", cfg.APIURL)
	cfg.WSURL = readEnv("MOMENTIFY_WS_URL", cfg.WSURL)
	cfg.DataDir = readEnv("MOMENTIFY_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = readEnv("MOMENTIFY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = readEnv("MOMENTIFY_LOG_FORMAT", cfg.LogFormat)
	cfg.MaxUploadBytes = parseInt64("MOMENTIFY_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.ReconnectAttempts = parseInt("MOMENTIFY_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
	cfg.ReconnectDelay = parseDuration("MOMENTIFY_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.ReconnectDelayMax = parseDuration("MOMENTIFY_RECONNECT_DELAY_MAX", cfg.ReconnectDelayMax)
	cfg.HTTPTimeout = parseDuration("MOMENTIFY_HTTP_TIMEOUT", cfg.HTTPTimeout)

	cfg.applyFallbacks()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePath is the sqlite file holding durable client state.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "momentify.db")
}

func (c *Config) applyFallbacks() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.WSURL == "" {
		c.WSURL = DefaultWSURL
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.ReconnectDelayMax < c.ReconnectDelay {
		c.ReconnectDelayMax = c.ReconnectDelay
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

func (c *Config) validate() error {
	for name, raw := range map[string]string{"apiURL": c.APIURL, "wsURL": c.WSURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("config: %s %q is not an absolute URL", name, raw)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return fmt.Errorf("config: %s has unsupported scheme %q", name, u.Scheme)
		}
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "momentify")
	}
	return ".momentify"
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
