// Package config loads focusguard configuration from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/focusguard/internal/matcher"
)

// EnvPrefix prefixes environment overrides, e.g. FOCUSGUARD_LOG_LEVEL.
const EnvPrefix = "FOCUSGUARD"

// LogConfig holds log settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ClassifierConfig holds the optional content classifier settings.
type ClassifierConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether a classifier should be constructed.
func (c ClassifierConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Config holds host configuration.
type Config struct {
	BlockedPageURL     string           `mapstructure:"blocked_page_url"`     // Where blocked tabs are sent
	ExtensionIDs       []string         `mapstructure:"extension_ids"`        // Allowed to connect to the host
	ParseFailurePolicy string           `mapstructure:"parse_failure_policy"` // fail-open or fail-closed
	RequestTimeout     time.Duration    `mapstructure:"request_timeout"`      // Host-to-browser request deadline
	Ephemeral          bool             `mapstructure:"ephemeral"`            // In-memory store, nothing persisted
	Log                LogConfig        `mapstructure:"log"`
	Classifier         ClassifierConfig `mapstructure:"classifier"`
}

// DefaultConfig returns default host configuration.
func DefaultConfig() Config {
	return Config{
		BlockedPageURL:     "",
		ExtensionIDs:       []string{},
		ParseFailurePolicy: matcher.DefaultParseFailurePolicy.String(),
		RequestTimeout:     5 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Classifier: ClassifierConfig{
			Endpoint:  "",
			CacheSize: 256,
			CacheTTL:  60 * time.Second,
		},
	}
}

// newViper returns a viper instance with defaults and env binding.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("blocked_page_url", d.BlockedPageURL)
	v.SetDefault("extension_ids", d.ExtensionIDs)
	v.SetDefault("parse_failure_policy", d.ParseFailurePolicy)
	v.SetDefault("request_timeout", d.RequestTimeout.String())
	v.SetDefault("ephemeral", d.Ephemeral)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("classifier.api_key", d.Classifier.APIKey)
	v.SetDefault("classifier.endpoint", d.Classifier.Endpoint)
	v.SetDefault("classifier.cache_size", d.Classifier.CacheSize)
	v.SetDefault("classifier.cache_ttl", d.Classifier.CacheTTL.String())
	return v
}

// Load reads path (missing is fine), applies FOCUSGUARD_* overrides and validates.
func Load(path string) (Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	if _, ok := matcher.ParseParseFailurePolicy(c.ParseFailurePolicy); !ok {
		return fmt.Errorf("invalid parse_failure_policy %q: want fail-open or fail-closed", c.ParseFailurePolicy)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// MatcherPolicy returns the parsed parse-failure policy.
func (c Config) MatcherPolicy() matcher.ParseFailurePolicy {
	p, _ := matcher.ParseParseFailurePolicy(c.ParseFailurePolicy)
	return p
}

// WriteDefault writes a config file with defaults and the given extension ids,
// unless one already exists. Reports whether a file was written.
func WriteDefault(path string, extensionIDs []string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	v := newViper(path)
	v.Set("extension_ids", extensionIDs)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
