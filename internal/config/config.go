// Package config provides configuration management for streamshot using Viper.
// It supports configuration from files, environment variables, flags and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/streamshot/internal/imaging"
)

// Default and boundary configuration values.
const (
	DefaultTimeout  = 10 * time.Second
	MinTimeout      = 1 * time.Second
	MaxTimeout      = 300 * time.Second
	DefaultExposure = 0
	MaxExposure     = 24 * time.Hour

	DefaultScaleFactor = 1.0
	MinScaleFactor     = 0.1
	MaxScaleFactor     = 10.0
	MinResizeWidth     = 192
	MaxResizeWidth     = 19200
	MinResizeHeight    = 108
	MaxResizeHeight    = 10800

	DefaultOutputFormat = "jpg"
	DefaultQuality      = 95
	MinQuality          = 0
	MaxQuality          = 100
	MinOutputFD         = 3
	NoOutputFD          = -1
	minPathLength       = 3

	DefaultDebugStep = 100
	DefaultDebugDir  = "./debug_files"

	DefaultInterpolator = "catmullrom"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "STREAMSHOT"

// Config holds all configuration for the application.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Scale   ScaleConfig   `mapstructure:"scale"`
	Output  OutputConfig  `mapstructure:"output"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CaptureConfig holds the stream source and exposure settings.
type CaptureConfig struct {
	URL string `mapstructure:"url"`
	// Timeout bounds every blocking transport call (connect, read).
	Timeout time.Duration `mapstructure:"timeout"`
	// Exposure is the averaging window. Zero grabs the first key frame.
	Exposure time.Duration `mapstructure:"exposure"`
}

// ScaleConfig holds post-capture resize settings.
// A non-default Factor takes precedence over Width and Height.
type ScaleConfig struct {
	Factor       float64 `mapstructure:"factor"`
	Width        int     `mapstructure:"width"`  // 0 = unset
	Height       int     `mapstructure:"height"` // 0 = unset
	Interpolator string  `mapstructure:"interpolator"`
}

// OutputConfig holds encoding and destination settings.
type OutputConfig struct {
	Path    string `mapstructure:"path"`
	FD      int    `mapstructure:"fd"` // -1 = unset, takes precedence over Path
	Format  string `mapstructure:"format"`
	Quality int    `mapstructure:"quality"`
}

// DebugConfig holds diagnostic settings.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Step    int    `mapstructure:"step"` // save every Nth accepted frame
	Dir     string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Read prepares v with defaults, the config file location and environment
// overrides, then reads the config file. A missing file is only an error when
// configPath names it explicitly.
// Environment variables are prefixed with STREAMSHOT_ and use underscores for nesting.
// Example: STREAMSHOT_CAPTURE_URL=rtsp://camera/stream.
func Read(v *viper.Viper, configPath string) error {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".streamshot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/streamshot")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}
	return nil
}

// Load decodes and validates the configuration held by v.
// Flags bound to v take precedence over environment and file values.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// FromViper decodes a populated viper instance into a Config without validating it.
// Durations accept Go syntax ("2m30s") or bare seconds ("10").
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		SecondsDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault("capture.url", "")
	v.SetDefault("capture.timeout", DefaultTimeout)
	v.SetDefault("capture.exposure", time.Duration(DefaultExposure))

	// Scale defaults
	v.SetDefault("scale.factor", DefaultScaleFactor)
	v.SetDefault("scale.width", 0)
	v.SetDefault("scale.height", 0)
	v.SetDefault("scale.interpolator", DefaultInterpolator)

	// Output defaults
	v.SetDefault("output.path", "")
	v.SetDefault("output.fd", NoOutputFD)
	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("output.quality", DefaultQuality)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.step", DefaultDebugStep)
	v.SetDefault("debug.dir", DefaultDebugDir)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, NewValidationError(field, fmt.Sprintf(format, args...)))
	}

	// Capture validation
	if err := ValidateStreamURL(c.Capture.URL); err != nil {
		add("capture.url", "%v", err)
	}
	if c.Capture.Timeout < MinTimeout || c.Capture.Timeout > MaxTimeout {
		add("capture.timeout", "must be between %s and %s", MinTimeout, MaxTimeout)
	}
	if c.Capture.Exposure < 0 || c.Capture.Exposure > MaxExposure {
		add("capture.exposure", "must be between 0 and %s", MaxExposure)
	}

	// Scale validation
	if c.Scale.Factor < MinScaleFactor || c.Scale.Factor > MaxScaleFactor {
		add("scale.factor", "must be between %.1f and %.1f", MinScaleFactor, MaxScaleFactor)
	}
	if c.Scale.Width != 0 && (c.Scale.Width < MinResizeWidth || c.Scale.Width > MaxResizeWidth) {
		add("scale.width", "must be 0 or between %d and %d", MinResizeWidth, MaxResizeWidth)
	}
	if c.Scale.Height != 0 && (c.Scale.Height < MinResizeHeight || c.Scale.Height > MaxResizeHeight) {
		add("scale.height", "must be 0 or between %d and %d", MinResizeHeight, MaxResizeHeight)
	}
	validInterpolators := map[string]bool{"catmullrom": true, "bilinear": true, "approxbilinear": true, "nearest": true}
	if !validInterpolators[c.Scale.Interpolator] {
		add("scale.interpolator", "must be one of: catmullrom, bilinear, approxbilinear, nearest")
	}

	// Output validation
	if c.Output.Path != "" && len(c.Output.Path) < minPathLength {
		add("output.path", "must be at least %d characters", minPathLength)
	}
	if c.Output.FD != NoOutputFD && c.Output.FD < MinOutputFD {
		add("output.fd", "must be %d (unset) or at least %d", NoOutputFD, MinOutputFD)
	}
	if _, err := imaging.ParseFormat(c.Output.Format); err != nil {
		add("output.format", "%v", err)
	}
	if c.Output.Quality < MinQuality || c.Output.Quality > MaxQuality {
		add("output.quality", "must be between %d and %d", MinQuality, MaxQuality)
	}

	// Debug validation
	if c.Debug.Enabled {
		if c.Debug.Step < 1 {
			add("debug.step", "must be at least 1")
		}
		if len(c.Debug.Dir) < minPathLength {
			add("debug.dir", "must be at least %d characters", minPathLength)
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		add("logging.level", "must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		add("logging.format", "must be one of: json, text")
	}

	return errors.Join(errs...)
}

// ValidateStreamURL checks that raw is an RTSP URL with a host.
func ValidateStreamURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return fmt.Errorf("scheme must be rtsp or rtsps, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// ExplicitFactor reports whether a non-default scale factor was configured,
// in which case resize dimensions are ignored.
func (c *ScaleConfig) ExplicitFactor() bool {
	return c.Factor != DefaultScaleFactor
}
