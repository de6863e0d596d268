package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the outpost agent and CLI.
type Config struct {
	// Service identifies the owning service on events the agent records.
	// Name is required explicit configuration — it is never discovered from
	// the runtime. NodeID defaults to the hostname.
	Service struct {
		Name   string `mapstructure:"name"`
		NodeID string `mapstructure:"node_id"`
	} `mapstructure:"service"`

	// DataPaths holds data directory configuration, overridable via
	// OUTPOST_DATA_DIR / OUTPOST_SQLITE_PATH.
	DataPaths struct {
		DataDir    string `mapstructure:"data_dir"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"data_paths"`

	Retention struct {
		Days                int           `mapstructure:"days"`
		CheckInterval       time.Duration `mapstructure:"check_interval"`
		CompactAfterCleanup bool          `mapstructure:"compact_after_cleanup"`
	} `mapstructure:"retention"`

	Forward struct {
		Enabled   bool          `mapstructure:"enabled"`
		BatchSize int           `mapstructure:"batch_size"`
		Interval  time.Duration `mapstructure:"interval"`
	} `mapstructure:"forward"`

	Storage struct {
		BusyTimeout       time.Duration `mapstructure:"busy_timeout"`
		CacheKB           int           `mapstructure:"cache_kb"`
		MmapBytes         int64         `mapstructure:"mmap_bytes"`
		WALAutoCheckpoint int           `mapstructure:"wal_autocheckpoint"`
	} `mapstructure:"storage"`
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("service.name", "")
	viper.SetDefault("service.node_id", "") // empty = hostname

	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // empty = derive from data_dir

	viper.SetDefault("retention.days", 7)
	viper.SetDefault("retention.check_interval", 1*time.Hour)
	viper.SetDefault("retention.compact_after_cleanup", true)

	viper.SetDefault("forward.enabled", false)
	viper.SetDefault("forward.batch_size", 500)
	viper.SetDefault("forward.interval", 30*time.Second)

	viper.SetDefault("storage.busy_timeout", 5*time.Second)
	viper.SetDefault("storage.cache_kb", 8192)
	viper.SetDefault("storage.mmap_bytes", int64(64*1024*1024))
	viper.SetDefault("storage.wal_autocheckpoint", 1000)
}

// loadFromEnv sets up environment variable loading.
func loadFromEnv() {
	viper.SetEnvPrefix("OUTPOST")
	viper.AutomaticEnv()

	_ = viper.BindEnv("service.name", "OUTPOST_SERVICE_NAME")
	_ = viper.BindEnv("service.node_id", "OUTPOST_NODE_ID")
	_ = viper.BindEnv("data_paths.data_dir", "OUTPOST_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "OUTPOST_SQLITE_PATH")
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()
	config.resolveNodeID()

	return &config, nil
}

// ResolveDataPaths resolves data paths, deriving from DataDir when not
// explicitly set.
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "outpost.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

func (c *Config) resolveNodeID() {
	if c.Service.NodeID != "" {
		return
	}
	if hostname, err := os.Hostname(); err == nil {
		c.Service.NodeID = hostname
	} else {
		c.Service.NodeID = "unknown"
	}
}

// GetDataDir returns the resolved base data directory.
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path.
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "outpost.db")
	}
	return c.DataPaths.SQLitePath
}

// RetentionWindow returns the retention period as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

// validateConfig validates the configuration for correctness. The service
// name is deliberately not checked here: read-only CLI commands work without
// one, and the recorder enforces it at construction.
func validateConfig(config *Config) error {
	if config.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be positive, got %d", config.Retention.Days)
	}
	if config.Retention.CheckInterval < time.Minute {
		return fmt.Errorf("retention.check_interval must be at least 1 minute, got %v", config.Retention.CheckInterval)
	}
	if config.Forward.BatchSize < 1 || config.Forward.BatchSize > 100000 {
		return fmt.Errorf("forward.batch_size must be between 1 and 100000, got %d", config.Forward.BatchSize)
	}
	if config.Forward.Interval < time.Second {
		return fmt.Errorf("forward.interval must be at least 1 second, got %v", config.Forward.Interval)
	}
	if config.Storage.BusyTimeout < 100*time.Millisecond || config.Storage.BusyTimeout > time.Minute {
		return fmt.Errorf("storage.busy_timeout must be between 100ms and 1m, got %v", config.Storage.BusyTimeout)
	}
	if config.Storage.CacheKB < 1 {
		return fmt.Errorf("storage.cache_kb must be positive, got %d", config.Storage.CacheKB)
	}
	if config.Storage.MmapBytes < 0 {
		return fmt.Errorf("storage.mmap_bytes must not be negative, got %d", config.Storage.MmapBytes)
	}
	return nil
}
