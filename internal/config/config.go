// Package config loads server and CLI settings with viper: built-in defaults,
// an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devSecret is accepted only when Env is "development".
const devSecret = "dev-secret-change-me"

// Config holds all configuration for the application.
type Config struct {
	// Env is "development" or "production".
	Env string `mapstructure:"env"`

	// Port is the HTTP listen port.
	Port int `mapstructure:"port"`

	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// JWTSecret signs session tokens.
	JWTSecret string `mapstructure:"jwt_secret"`

	// TokenTTL is how long a session token stays valid.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`

	// Currency is the ISO 4217 code used to display amounts. The ledger
	// itself is single-currency and stores smallest units only.
	Currency string `mapstructure:"currency"`
}

// Load reads configuration. configPath may be empty, in which case only
// defaults and environment variables apply. CONFIG_FILE in the environment
// takes effect when configPath is empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "./data/ledger.db")
	v.SetDefault("jwt_secret", devSecret)
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("currency", "IDR")

	// PORT, DB_PATH, JWT_SECRET, ... map onto the keys above.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = v.GetString("config_file")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would make the server unusable or unsafe.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.Env != "development" && c.JWTSecret == devSecret {
		errs = append(errs, errors.New("jwt_secret must be set outside development"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency %q is not an ISO 4217 code", c.Currency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
