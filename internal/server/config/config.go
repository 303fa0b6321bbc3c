// Package config loads the reference server's settings from defaults, an
// optional config file and TALLYBOOKD_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Address  string
	LogLevel string

	JWTSecret string
	TokenTTL  time.Duration

	// DatabaseDSN selects the storage backend: empty means in-memory,
	// anything else is a postgres connection string.
	DatabaseDSN string

	// Workers sizes the validation pool for incoming writes.
	Workers int

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("database_dsn", "")
	v.SetDefault("workers", 8)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetConfigName("tallybookd")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tallybook")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("TALLYBOOKD")
	v.AutomaticEnv()

	cfg := &Config{
		Address:         v.GetString("address"),
		LogLevel:        v.GetString("log_level"),
		JWTSecret:       v.GetString("jwt_secret"),
		TokenTTL:        v.GetDuration("token_ttl"),
		DatabaseDSN:     v.GetString("database_dsn"),
		Workers:         v.GetInt("workers"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.Address == "" {
		problems = append(problems, "address is required")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "jwt_secret is required")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "token_ttl must be positive")
	}
	if c.Workers <= 0 {
		problems = append(problems, "workers must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}
