// Package config loads server settings from flags, environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DINING_PHILOSOPHERS=7.
const EnvPrefix = "DINING"

// Keys shared by viper, cobra flags and the config file.
const (
	KeyPhilosophers     = "philosophers"
	KeyPickUpMs         = "timing.pickup_ms"
	KeyPutDownMs        = "timing.putdown_ms"
	KeyEatingMs         = "timing.eating_ms"
	KeyThinkingMs       = "timing.thinking_ms"
	KeyListen           = "listen"
	KeyDatabase         = "database"
	KeySnapshotInterval = "snapshot_interval"
	KeyWaitTimeout      = "wait_timeout"
	KeySeed             = "seed"
	KeyTuning           = "tuning"
	KeyDebug            = "log.debug"
	KeyNoColour         = "log.no_colour"
)

// Timing holds the four table delays in milliseconds.
type Timing struct {
	PickUpMs   int64 `mapstructure:"pickup_ms"`
	PutDownMs  int64 `mapstructure:"putdown_ms"`
	EatingMs   int64 `mapstructure:"eating_ms"`
	ThinkingMs int64 `mapstructure:"thinking_ms"`
}

// Log holds logging switches.
type Log struct {
	Debug    bool `mapstructure:"debug"`
	NoColour bool `mapstructure:"no_colour"`
}

// Config is the full server configuration.
type Config struct {
	Philosophers     int           `mapstructure:"philosophers"`
	Timing           Timing        `mapstructure:"timing"`
	Listen           string        `mapstructure:"listen"`
	Database         string        `mapstructure:"database"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	WaitTimeout      time.Duration `mapstructure:"wait_timeout"`
	Seed             uint64        `mapstructure:"seed"`
	Tuning           string        `mapstructure:"tuning"`
	Log              Log           `mapstructure:"log"`
}

var (
	ErrTooFewPhilosophers = errors.New("config: at least 2 philosophers are required")
	ErrInvalidTiming      = errors.New("config: timings must be positive milliseconds")
	ErrInvalidInterval    = errors.New("config: intervals must be positive")
)

// SetDefaults registers the defaults on v. The delays match engine.DefaultDurations.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPhilosophers, 5)
	v.SetDefault(KeyPickUpMs, 1000)
	v.SetDefault(KeyPutDownMs, 1000)
	v.SetDefault(KeyEatingMs, 5000)
	v.SetDefault(KeyThinkingMs, 5000)
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyDatabase, "dining.db")
	v.SetDefault(KeySnapshotInterval, 250*time.Millisecond)
	v.SetDefault(KeyWaitTimeout, 100*time.Millisecond)
	v.SetDefault(KeySeed, 0)
	v.SetDefault(KeyTuning, "default")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyNoColour, false)
}

// NewViper returns a viper instance with defaults, env overrides and,
// when cfgFile is non-empty, the given file. Without a file it looks for
// .dining-philosophers.{yaml,toml,json} in the working and home directories.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName(".dining-philosophers")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the invariants the engine relies on.
func (c Config) Validate() error {
	if c.Philosophers < 2 {
		return fmt.Errorf("%w (got %d)", ErrTooFewPhilosophers, c.Philosophers)
	}
	for name, ms := range map[string]int64{
		"pickup":   c.Timing.PickUpMs,
		"putdown":  c.Timing.PutDownMs,
		"eating":   c.Timing.EatingMs,
		"thinking": c.Timing.ThinkingMs,
	} {
		if ms <= 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidTiming, name, ms)
		}
	}
	if c.SnapshotInterval <= 0 || c.WaitTimeout <= 0 {
		return ErrInvalidInterval
	}
	return nil
}
