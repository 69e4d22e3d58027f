// Package config loads praxis configuration from file, environment, and
// defaults, and constructs the prefixed loggers used across the daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full daemon configuration.
type Config struct {
	// UserID is the owning user/device identifier all queue operations are
	// scoped by.
	UserID string

	// DBPath is the local store location.
	DBPath string

	// LogFile enables rotating file logs when non-empty; empty logs to
	// stderr.
	LogFile string

	Remote RemoteConfig
	Sync   SyncConfig
	Net    NetConfig
	Status StatusConfig
}

// RemoteConfig configures the remote service client.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SyncConfig configures the sync engine's background tasks.
type SyncConfig struct {
	Interval      time.Duration
	PruneInterval time.Duration
	RetentionDays int
}

// NetConfig configures the connectivity monitor.
type NetConfig struct {
	ProbeInterval     time.Duration
	ReconnectDebounce time.Duration
	StateFile         string
}

// StatusConfig configures the local status server.
type StatusConfig struct {
	Port int
}

// Retention returns the queue retention window as a duration.
func (c SyncConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load reads configuration from ~/.praxis/config.yaml (or the current
// directory), overlaid by PRAXIS_* environment variables, with defaults for
// everything not set.
//
// A missing config file is not an error; defaults plus environment are
// enough to run against a configured remote.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".praxis"))
	}

	v.SetEnvPrefix("praxis")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		UserID:  v.GetString("user_id"),
		DBPath:  v.GetString("db_path"),
		LogFile: v.GetString("log_file"),
		Remote: RemoteConfig{
			BaseURL: v.GetString("remote.base_url"),
			APIKey:  v.GetString("remote.api_key"),
			Timeout: v.GetDuration("remote.timeout"),
		},
		Sync: SyncConfig{
			Interval:      v.GetDuration("sync.interval"),
			PruneInterval: v.GetDuration("sync.prune_interval"),
			RetentionDays: v.GetInt("sync.retention_days"),
		},
		Net: NetConfig{
			ProbeInterval:     v.GetDuration("net.probe_interval"),
			ReconnectDebounce: v.GetDuration("net.reconnect_debounce"),
			StateFile:         v.GetString("net.state_file"),
		},
		Status: StatusConfig{
			Port: v.GetInt("status.port"),
		},
	}

	if cfg.UserID == "" {
		return nil, fmt.Errorf("user_id is required (set user_id in config or PRAXIS_USER_ID)")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dbPath := "praxis.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".praxis", "praxis.db")
	}

	v.SetDefault("db_path", dbPath)
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.prune_interval", 24*time.Hour)
	v.SetDefault("sync.retention_days", 7)
	v.SetDefault("net.probe_interval", 30*time.Second)
	v.SetDefault("net.reconnect_debounce", 2*time.Second)
	v.SetDefault("status.port", 8719)
}
