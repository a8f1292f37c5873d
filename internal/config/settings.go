package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override of Settings.
const EnvPrefix = "DASHBOARD_"

const maxSettingsFileSize = 1024 * 1024 // 1MB

// Settings configures the HTTP service. Project descriptors and credentials are
// not part of Settings; they are read from the environment on every request.
type Settings struct {
	Addr              string        `koanf:"addr"`
	LogLevel          string        `koanf:"log_level"`
	LogFormat         string        `koanf:"log_format"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	RefreshInterval   time.Duration `koanf:"refresh_interval"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	MaxConcurrency    int           `koanf:"max_concurrency"`
	GraphQLEndpoint   string        `koanf:"graphql_endpoint"`
	WebhookRateLimit  float64       `koanf:"webhook_rate_limit"`
	WebhookBurst      int           `koanf:"webhook_burst"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Addr:              ":3000",
		LogLevel:          "info",
		LogFormat:         "json",
		HeartbeatInterval: 30 * time.Second,
		RefreshInterval:   60 * time.Second,
		RequestTimeout:    30 * time.Second,
		GraphQLEndpoint:   "https://api.github.com/graphql",
		WebhookRateLimit:  1,
		WebhookBurst:      10,
	}
}

// LoadSettings loads settings from an optional YAML file, then overrides them
// with DASHBOARD_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (DASHBOARD_ADDR, DASHBOARD_LOG_LEVEL, ...)
//  2. YAML file at configPath, when configPath is not empty
//  3. DefaultSettings
func LoadSettings(configPath string) (*Settings, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readSettingsFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// DASHBOARD_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultSettings()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readSettingsFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxSettingsFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxSettingsFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks that settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch s.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", s.LogFormat))
	}
	if s.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat_interval must be positive"))
	}
	if s.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh_interval must be positive"))
	}
	if s.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if s.MaxConcurrency < 0 {
		errs = append(errs, errors.New("max_concurrency must not be negative"))
	}
	if s.GraphQLEndpoint == "" {
		errs = append(errs, errors.New("graphql_endpoint must not be empty"))
	}
	if s.WebhookRateLimit <= 0 {
		errs = append(errs, errors.New("webhook_rate_limit must be positive"))
	}
	if s.WebhookBurst < 1 {
		errs = append(errs, errors.New("webhook_burst must be at least 1"))
	}
	return errors.Join(errs...)
}
