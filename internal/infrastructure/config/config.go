// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Tolerance     ToleranceConfig     `yaml:"tolerance"`
	Matching      MatchingConfig      `yaml:"matching"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration. DatabasePath selects the
// tenant database; each legal entity keeps its own SQLite file.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ToleranceConfig locates the tolerance configuration file.
type ToleranceConfig struct {
	ConfigPath string `yaml:"config_path"`
}

// MatchingConfig holds the reconciliation matching tunables.
// The tolerance itself lives in its own JSON file (see ToleranceConfig)
// because administrators edit it independently of deployments.
type MatchingConfig struct {
	LookbackDays       int `yaml:"lookback_days"`
	ForwardSlackDays   int `yaml:"forward_slack_days"`
	NearWindowDays     int `yaml:"near_window_days"`
	MaxSplitInvoices   int `yaml:"max_split_invoices"`
	MaxSplitCandidates int `yaml:"max_split_candidates"`
	PaymentTermDays    int `yaml:"payment_term_days"`
}

// ServerConfig holds the admin API server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${ALEPH70_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("ALEPH70_DB_PATH", "aleph70.db"),
		},
		Tolerance: ToleranceConfig{
			ConfigPath: getEnv("ALEPH70_TOLERANCE_PATH", "config_conciliacion.json"),
		},
		Matching: MatchingConfig{
			LookbackDays:       getEnvInt("RECONCILE_LOOKBACK_DAYS", 30),
			NearWindowDays:     getEnvInt("RECONCILE_NEAR_WINDOW_DAYS", 7),
			MaxSplitInvoices:   getEnvInt("RECONCILE_MAX_SPLIT_INVOICES", 5),
			MaxSplitCandidates: getEnvInt("RECONCILE_MAX_SPLIT_CANDIDATES", 12),
			PaymentTermDays:    getEnvInt("RECONCILE_PAYMENT_TERM_DAYS", 30),
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills fields a partial YAML file left at zero.
// ForwardSlackDays legitimately defaults to zero (invoices are not
// expected to post before being issued).
func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "aleph70.db"
	}
	if c.Tolerance.ConfigPath == "" {
		c.Tolerance.ConfigPath = "config_conciliacion.json"
	}
	if c.Matching.LookbackDays == 0 {
		c.Matching.LookbackDays = 30
	}
	if c.Matching.NearWindowDays == 0 {
		c.Matching.NearWindowDays = 7
	}
	if c.Matching.MaxSplitInvoices == 0 {
		c.Matching.MaxSplitInvoices = 5
	}
	if c.Matching.MaxSplitCandidates == 0 {
		c.Matching.MaxSplitCandidates = 12
	}
	if c.Matching.PaymentTermDays == 0 {
		c.Matching.PaymentTermDays = 30
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
