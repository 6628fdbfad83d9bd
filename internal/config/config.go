// Package config loads callmap settings from defaults, an optional YAML
// file and CALLMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidMaxFileSize = errors.New("max file size must not be negative")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrInvalidLogFormat   = errors.New("unknown log format")
)

// Default configuration values.
const (
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	envPrefix          = "CALLMAP"
)

// Config holds all callmap settings. A zero Workers means one worker per CPU.
type Config struct {
	Workers     int       `mapstructure:"workers"`
	DB          string    `mapstructure:"db"`
	Script      string    `mapstructure:"script"`
	MaxFileSize int64     `mapstructure:"max_file_size"`
	MetricsOut  string    `mapstructure:"metrics_out"`
	Log         LogConfig `mapstructure:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration. An empty configPath looks for
// .callmap.yaml in the working directory and tolerates its absence; an
// explicit path must exist.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".callmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	if err := normalizeSize(v, "max_file_size"); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("db", "")
	v.SetDefault("script", "")
	v.SetDefault("max_file_size", DefaultMaxFileSize)
	v.SetDefault("metrics_out", "")
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// normalizeSize rewrites a human-readable size under key ("10MiB", set from
// a file or the environment) as a byte count.
func normalizeSize(v *viper.Viper, key string) error {
	raw, ok := v.Get(key).(string)
	if !ok {
		return nil
	}
	n, err := ParseSize(raw)
	if err != nil {
		return err
	}
	v.Set(key, n)
	return nil
}

// ParseSize parses a byte count: a plain integer ("2048") or a size with a
// unit ("512KiB", "10MB").
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, s)
	}
	return int64(n), nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFileSize, c.MaxFileSize)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
}
