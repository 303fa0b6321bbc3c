// Package config loads client settings: defaults first, then an optional
// config file, then TALLYBOOK_-prefixed environment variables. The auth
// token lives in its own file next to the database so a login survives
// restarts without touching the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the tallybook client.
type Config struct {
	ServerURL string
	DBPath    string
	DataDir   string
	LogLevel  string

	// NetworkProfile is "reliable" or "constrained" and sizes sync
	// timeouts and retry budgets.
	NetworkProfile string

	AutoSync      bool
	MinInterval   time.Duration
	DebounceDelay time.Duration
	PostSyncQuiet time.Duration
	StaleAfter    time.Duration
}

// Load builds the config. A missing config file is not an error; defaults
// and environment variables carry the day.
func Load() (*Config, error) {
	v := viper.New()

	dataDir := defaultDataDir()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("db_path", filepath.Join(dataDir, "tallybook.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("network_profile", "reliable")
	v.SetDefault("auto_sync", true)
	v.SetDefault("min_interval", 5*time.Second)
	v.SetDefault("debounce_delay", 3*time.Second)
	v.SetDefault("post_sync_quiet", 10*time.Second)
	v.SetDefault("stale_after", 12*time.Hour)

	v.SetConfigName("tallybook")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("TALLYBOOK")
	v.AutomaticEnv()

	cfg := &Config{
		ServerURL:      v.GetString("server_url"),
		DataDir:        v.GetString("data_dir"),
		DBPath:         v.GetString("db_path"),
		LogLevel:       v.GetString("log_level"),
		NetworkProfile: v.GetString("network_profile"),
		AutoSync:       v.GetBool("auto_sync"),
		MinInterval:    v.GetDuration("min_interval"),
		DebounceDelay:  v.GetDuration("debounce_delay"),
		PostSyncQuiet:  v.GetDuration("post_sync_quiet"),
		StaleAfter:     v.GetDuration("stale_after"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.ServerURL == "" {
		problems = append(problems, "server_url is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if p := c.NetworkProfile; p != "reliable" && p != "constrained" {
		problems = append(problems, fmt.Sprintf("unknown network_profile %q", p))
	}
	if c.MinInterval <= 0 || c.DebounceDelay <= 0 || c.PostSyncQuiet <= 0 || c.StaleAfter <= 0 {
		problems = append(problems, "sync intervals must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

func (c *Config) tokenPath() string {
	return filepath.Join(c.DataDir, "token")
}

// Token returns the stored auth token, or empty when not logged in.
func (c *Config) Token() string {
	b, err := os.ReadFile(c.tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// SaveToken persists the token from a successful login.
func (c *Config) SaveToken(token string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return os.WriteFile(c.tokenPath(), []byte(token), 0o600)
}

// ClearToken removes the stored token. A missing file is fine.
func (c *Config) ClearToken() error {
	err := os.Remove(c.tokenPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func defaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "tallybook")
	}
	return ".tallybook"
}
