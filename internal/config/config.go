package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/sigsift/internal/logger"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/internal/scheduler"
)

// FileConfig represents the top-level TOML structure for the daemon.
type FileConfig struct {
	// Scheduler cadence: one pass every EveryTicks ticks, one tick per
	// TickInterval of wall clock.
	EveryTicks   int           `toml:"every_ticks" mapstructure:"every_ticks"`
	TickInterval time.Duration `toml:"tick_interval" mapstructure:"tick_interval"`

	Listen        string `toml:"listen" mapstructure:"listen"`
	MetricsListen string `toml:"metrics_listen" mapstructure:"metrics_listen"`
	BasePath      string `toml:"base_path" mapstructure:"base_path"`

	Store    *StoreConfig    `toml:"store" mapstructure:"store"`
	History  *HistoryConfig  `toml:"history" mapstructure:"history"`
	Log      *LogConfig      `toml:"log" mapstructure:"log"`
	Defaults *DefaultsConfig `toml:"defaults" mapstructure:"defaults"`
}

// StoreConfig configures the config snapshot store.
type StoreConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

// HistoryConfig configures lifecycle event export sinks.
type HistoryConfig struct {
	PostgresDSN     string `toml:"postgres_dsn" mapstructure:"postgres_dsn"`
	ClickhouseAddr  string `toml:"clickhouse_addr" mapstructure:"clickhouse_addr"`
	ClickhouseTable string `toml:"clickhouse_table" mapstructure:"clickhouse_table"`
}

// LogConfig mirrors logger.Config in the file format.
type LogConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Color      bool   `toml:"color" mapstructure:"color"`
}

// DefaultsConfig is the template payload applied to nodes materialized
// without one of their own.
type DefaultsConfig struct {
	Mode             string `toml:"mode" mapstructure:"mode"`
	QualitySensitive *bool  `toml:"quality_sensitive" mapstructure:"quality_sensitive"`
}

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate checks field ranges and fills zero values with defaults.
func (fc *FileConfig) Validate() error {
	if fc.EveryTicks < 0 {
		return fmt.Errorf("every_ticks must be >= 0, got %d", fc.EveryTicks)
	}
	if fc.EveryTicks == 0 {
		fc.EveryTicks = scheduler.DefaultEveryTicks
	}
	if fc.TickInterval < 0 {
		return fmt.Errorf("tick_interval must be >= 0, got %s", fc.TickInterval)
	}
	if fc.TickInterval == 0 {
		fc.TickInterval = 500 * time.Millisecond
	}
	if fc.BasePath == "" {
		fc.BasePath = "/api"
	}
	if fc.History != nil && fc.History.ClickhouseAddr != "" && fc.History.ClickhouseTable == "" {
		fc.History.ClickhouseTable = "node_history"
	}
	if fc.Defaults != nil && fc.Defaults.Mode != "" {
		if !registry.Mode(fc.Defaults.Mode).Known() {
			return fmt.Errorf("unknown default mode %q", fc.Defaults.Mode)
		}
	}
	return nil
}

// LoggerConfig converts the file log section into a logger.Config.
func (fc *FileConfig) LoggerConfig() logger.Config {
	if fc.Log == nil {
		return logger.Config{}
	}
	return logger.Config{
		Path:       fc.Log.Path,
		Level:      fc.Log.Level,
		MaxSizeMB:  fc.Log.MaxSizeMB,
		MaxBackups: fc.Log.MaxBackups,
		MaxAgeDays: fc.Log.MaxAgeDays,
		Compress:   fc.Log.Compress,
		Color:      fc.Log.Color,
	}
}

// DefaultPatch converts the defaults section into a registry patch.
func (fc *FileConfig) DefaultPatch() registry.Patch {
	var p registry.Patch
	if fc.Defaults == nil {
		return p
	}
	if m := registry.Mode(fc.Defaults.Mode); m.Known() {
		p.Mode = &m
	}
	if fc.Defaults.QualitySensitive != nil {
		qs := *fc.Defaults.QualitySensitive
		p.QualitySensitive = &qs
	}
	return p
}
