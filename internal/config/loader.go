package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the booking service.
type Config struct {
	HTTPPort       int
	SQLiteDSN      string
	SessionTTL     time.Duration
	ExpiryInterval time.Duration
	LogLevel       string
}

// fileConfig mirrors the optional YAML configuration file. Environment
// variables override file values.
type fileConfig struct {
	HTTPPort       int    `yaml:"http_port"`
	SQLiteDSN      string `yaml:"sqlite_dsn"`
	SessionTTL     string `yaml:"session_ttl"`
	ExpiryInterval string `yaml:"expiry_interval"`
	LogLevel       string `yaml:"log_level"`
}

// Load reads configuration from an optional YAML file named by
// BOOKING_CONFIG_FILE, then overrides values from the process environment.
// Unset values fall back to defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		SQLiteDSN:      "file:booking.db?_foreign_keys=on",
		SessionTTL:     24 * time.Hour,
		ExpiryInterval: 30 * time.Second,
		LogLevel:       "info",
	}

	if path := strings.TrimSpace(os.Getenv("BOOKING_CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("BOOKING_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("BOOKING_EXPIRY_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "BOOKING_EXPIRY_INTERVAL")
		} else {
			cfg.ExpiryInterval = interval
		}
	}

	if level := strings.TrimSpace(os.Getenv("BOOKING_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.HTTPPort > 0 {
		cfg.HTTPPort = fc.HTTPPort
	}
	if dsn := strings.TrimSpace(fc.SQLiteDSN); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if ttlValue := strings.TrimSpace(fc.SessionTTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("invalid session_ttl in config file %s: %q", path, fc.SessionTTL)
		}
		cfg.SessionTTL = ttl
	}
	if intervalValue := strings.TrimSpace(fc.ExpiryInterval); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			return fmt.Errorf("invalid expiry_interval in config file %s: %q", path, fc.ExpiryInterval)
		}
		cfg.ExpiryInterval = interval
	}
	if level := strings.TrimSpace(fc.LogLevel); level != "" {
		cfg.LogLevel = level
	}

	return nil
}
