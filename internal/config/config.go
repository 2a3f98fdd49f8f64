package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Marketplace API
	APIURL     string
	SocketURL  string
	APITimeout time.Duration

	// Session (written by the marketplace login flow)
	SessionFile string

	// Transport
	Reconnect        bool
	ReconnectMaxWait time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for YAML decoding. Durations are strings so
// the file can say "30s" instead of nanosecond integers.
type fileConfig struct {
	APIURL           string `yaml:"api_url"`
	SocketURL        string `yaml:"socket_url"`
	APITimeout       string `yaml:"api_timeout"`
	SessionFile      string `yaml:"session_file"`
	Reconnect        *bool  `yaml:"reconnect"`
	ReconnectMaxWait string `yaml:"reconnect_max_wait"`
	LogFile          string `yaml:"log_file"`
	LogLevel         string `yaml:"log_level"`
}

// Load reads configuration from an optional YAML file, then overlays
// environment variables. Environment always wins so a config file never
// pins a value the user wants to override per invocation.
func Load() (Config, error) {
	cfg := defaults()
	levelName := "INFO"

	path := configPath()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
			if err := fc.apply(&cfg, &levelName); err != nil {
				return Config{}, fmt.Errorf("config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file is fine; env and defaults carry it.
		default:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.APIURL = getEnv("AGRICHAT_API_URL", cfg.APIURL)
	cfg.SocketURL = getEnv("AGRICHAT_SOCKET_URL", cfg.SocketURL)
	cfg.SessionFile = getEnv("AGRICHAT_SESSION_FILE", cfg.SessionFile)
	cfg.LogFile = getEnv("AGRICHAT_LOG_FILE", cfg.LogFile)
	levelName = getEnv("AGRICHAT_LOG_LEVEL", levelName)
	if v := os.Getenv("AGRICHAT_RECONNECT"); v != "" {
		cfg.Reconnect = v == "true" || v == "1"
	}
	if v := os.Getenv("AGRICHAT_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse AGRICHAT_API_TIMEOUT: %w", err)
		}
		cfg.APITimeout = d
	}

	cfg.LogLevel = parseLogLevel(levelName)
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config, levelName *string) error {
	if fc.APIURL != "" {
		cfg.APIURL = fc.APIURL
	}
	if fc.SocketURL != "" {
		cfg.SocketURL = fc.SocketURL
	}
	if fc.SessionFile != "" {
		cfg.SessionFile = fc.SessionFile
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		*levelName = fc.LogLevel
	}
	if fc.Reconnect != nil {
		cfg.Reconnect = *fc.Reconnect
	}
	if fc.APITimeout != "" {
		d, err := time.ParseDuration(fc.APITimeout)
		if err != nil {
			return fmt.Errorf("parse api_timeout: %w", err)
		}
		cfg.APITimeout = d
	}
	if fc.ReconnectMaxWait != "" {
		d, err := time.ParseDuration(fc.ReconnectMaxWait)
		if err != nil {
			return fmt.Errorf("parse reconnect_max_wait: %w", err)
		}
		cfg.ReconnectMaxWait = d
	}
	return nil
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		APIURL:           "https://agrilink.up.railway.app",
		SocketURL:        "wss://agrilink.up.railway.app/socket",
		APITimeout:       30 * time.Second,
		SessionFile:      filepath.Join(home, ".config", "agrichat", "session.json"),
		Reconnect:        false,
		ReconnectMaxWait: 30 * time.Second,
		LogFile:          filepath.Join(os.TempDir(), "agrichat.log"),
	}
}

func configPath() string {
	if p := os.Getenv("AGRICHAT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "agrichat", "config.yaml")
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
