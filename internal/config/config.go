// Package config loads audioprobe settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultScanDistance = 4096
	DefaultLookahead    = 64 << 10
	DefaultMaxTableSize = "64MiB"
)

// EnvPrefix prefixes every environment variable, with dots in keys replaced
// by underscores: AUDIOPROBE_PROBE_SCAN_DISTANCE.
const EnvPrefix = "AUDIOPROBE"

// Config is the full configuration.
type Config struct {
	Probe   ProbeConfig   `mapstructure:"probe"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ProbeConfig holds detection and playback limits.
type ProbeConfig struct {
	// MaxTableSize bounds any single decoded box, as a human-readable size.
	MaxTableSize   string `mapstructure:"max_table_size"`
	ScanDistance   int    `mapstructure:"scan_distance"`
	Lookahead      int    `mapstructure:"lookahead"`
	SeekAllSamples bool   `mapstructure:"seek_all_samples"`
}

// MaxTableBytes parses MaxTableSize.
func (p ProbeConfig) MaxTableBytes() (int64, error) {
	n, err := humanize.ParseBytes(p.MaxTableSize)
	if err != nil {
		return 0, fmt.Errorf("probe.max_table_size: %w", err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("probe.max_table_size %q out of range", p.MaxTableSize)
	}
	return int64(n), nil
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
	AddSource  bool   `mapstructure:"add_source"`
}

// Load reads configuration from file and environment variables. When
// configPath is empty, audioprobe.yaml is looked up in the working directory
// and $HOME/.audioprobe; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("audioprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.audioprobe")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("probe.scan_distance", DefaultScanDistance)
	v.SetDefault("probe.lookahead", DefaultLookahead)
	v.SetDefault("probe.max_table_size", DefaultMaxTableSize)
	v.SetDefault("probe.seek_all_samples", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.time_format", "")
	v.SetDefault("logging.add_source", false)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Probe.ScanDistance < 1 {
		return fmt.Errorf("probe.scan_distance must be at least 1")
	}
	if c.Probe.Lookahead < 1 {
		return fmt.Errorf("probe.lookahead must be at least 1")
	}
	if _, err := c.Probe.MaxTableBytes(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}
