// Package config loads the extractor configuration from a YAML file and
// the environment.
//
// Values are resolved in this order, later ones winning:
//
//  1. built-in defaults
//  2. the YAML file, when given
//  3. a .env file in the working directory, when present
//  4. process environment variables (EXTRACT_*)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-extractor/internal/convert"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig             `yaml:"log"`
	Server    ServerConfig          `yaml:"server"`
	Extract   ExtractConfig         `yaml:"extract"`
	Reconcile ReconcileConfig       `yaml:"reconcile"`
	Banks     map[string]BankConfig `yaml:"banks"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BodyLimitMB caps uploaded statements.
	BodyLimitMB int `yaml:"body_limit_mb"`
}

type ExtractConfig struct {
	// Concurrency is the number of documents extracted in parallel.
	Concurrency int `yaml:"concurrency"`
	// Verify records unit forex mismatches as item failures.
	Verify bool `yaml:"verify"`
}

type ReconcileConfig struct {
	// ToleranceMinorUnits is the accepted difference between stated and
	// converted amounts, in hundredths.
	ToleranceMinorUnits int64 `yaml:"tolerance_minor_units"`
}

// BankConfig overrides one rule set. A nil Enabled keeps the rule set on.
type BankConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Locale  string `yaml:"locale"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: "info", Format: "text"},
		Server:    ServerConfig{Addr: ":8080", BodyLimitMB: 20},
		Extract:   ExtractConfig{Concurrency: 4},
		Reconcile: ReconcileConfig{ToleranceMinorUnits: 1},
		Banks:     map[string]BankConfig{},
	}
}

// Load reads path (optional) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
		if cfg.Banks == nil {
			cfg.Banks = map[string]BankConfig{}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Log.Level = getEnv("EXTRACT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("EXTRACT_LOG_FORMAT", cfg.Log.Format)
	cfg.Server.Addr = getEnv("EXTRACT_ADDR", cfg.Server.Addr)
	cfg.Server.BodyLimitMB = getEnvAsInt("EXTRACT_BODY_LIMIT_MB", cfg.Server.BodyLimitMB)
	cfg.Extract.Concurrency = getEnvAsInt("EXTRACT_CONCURRENCY", cfg.Extract.Concurrency)
	cfg.Extract.Verify = getEnvAsBool("EXTRACT_VERIFY", cfg.Extract.Verify)
	cfg.Reconcile.ToleranceMinorUnits = int64(getEnvAsInt("EXTRACT_TOLERANCE", int(cfg.Reconcile.ToleranceMinorUnits)))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.BodyLimitMB <= 0 {
		return errors.New("server.body_limit_mb must be positive")
	}
	if c.Extract.Concurrency < 1 {
		return errors.New("extract.concurrency must be at least 1")
	}
	if c.Reconcile.ToleranceMinorUnits < 0 {
		return errors.New("reconcile.tolerance_minor_units must not be negative")
	}
	for name, b := range c.Banks {
		if b.Locale == "" {
			continue
		}
		if _, err := convert.ParseLocale(b.Locale); err != nil {
			return fmt.Errorf("banks.%s.locale: %w", name, err)
		}
	}
	return nil
}

// Enabled reports whether the named rule set is switched on.
func (c *Config) Enabled(bank string) bool {
	b, ok := c.Banks[bank]
	return !ok || b.Enabled == nil || *b.Enabled
}

// Locales returns the configured locale overrides by rule set name.
func (c *Config) Locales() map[string]convert.Locale {
	out := make(map[string]convert.Locale)
	for name, b := range c.Banks {
		if b.Locale == "" {
			continue
		}
		if l, err := convert.ParseLocale(b.Locale); err == nil {
			out[name] = l
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
