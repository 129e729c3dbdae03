package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Logging   LoggingConfig            `mapstructure:"logging"`
	Sync      SyncConfig               `mapstructure:"sync"`
	Solverr   SolverrConfig            `mapstructure:"solverr"`
	Trackers  map[string]TrackerConfig `mapstructure:"trackers"`
	Scheduler SchedulerConfig          `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SyncConfig holds cache freshness and politeness settings shared by all trackers.
type SyncConfig struct {
	CatalogTTLDays  int           `mapstructure:"catalog_ttl_days"`
	ItemsTTLDays    int           `mapstructure:"items_ttl_days"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

// SolverrConfig holds the optional FlareSolverr endpoint used to pass
// anti-bot challenges on protected trackers.
type SolverrConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TrackerConfig holds per-tracker credentials and options.
type TrackerConfig struct {
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	SerialTab string `mapstructure:"serial_tab"` // baibako: all/hd720/hd1080/x264/xvid
}

// SchedulerConfig holds background refresh settings.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8097,
		},
		Database: DatabaseConfig{
			Path: "./data/trackersync.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sync: SyncConfig{
			CatalogTTLDays:  3,
			ItemsTTLDays:    1,
			RequestInterval: 3 * time.Second,
			FetchTimeout:    30 * time.Second,
		},
		Solverr: SolverrConfig{
			Timeout: 80 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         false,
			RefreshInterval: 24 * time.Hour,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.trackersync")
	}

	v.SetEnvPrefix("TRACKERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Tracker returns the configuration for a named tracker, if present.
func (c *Config) Tracker(name string) (TrackerConfig, bool) {
	tc, ok := c.Trackers[strings.ToLower(name)]
	return tc, ok
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)

	v.SetDefault("database.path", def.Database.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("sync.catalog_ttl_days", def.Sync.CatalogTTLDays)
	v.SetDefault("sync.items_ttl_days", def.Sync.ItemsTTLDays)
	v.SetDefault("sync.request_interval", def.Sync.RequestInterval)
	v.SetDefault("sync.fetch_timeout", def.Sync.FetchTimeout)

	v.SetDefault("solverr.timeout", def.Solverr.Timeout)

	v.SetDefault("scheduler.enabled", def.Scheduler.Enabled)
	v.SetDefault("scheduler.refresh_interval", def.Scheduler.RefreshInterval)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
