// Package cmd implements the CLI commands for streamshot.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/streamshot/internal/config"
	"github.com/jmylchreest/streamshot/internal/observability"
	"github.com/jmylchreest/streamshot/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd captures a snapshot when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "streamshot",
	Short:   "Capture a still image from an RTSP stream",
	Version: version.Short(),
	Long: `streamshot connects to an RTSP camera or encoder, decodes its first video
stream and writes one still image.

With an exposure of zero the first key frame is captured. A longer exposure
averages every decoded frame in the window into one image, which smooths
sensor noise and blurs moving objects the way a long photographic exposure
does.

Examples:
  streamshot -i rtsp://camera.local/stream -o snapshot.jpg
  streamshot -i rtsp://camera.local/stream -e 30 -w 1280 -f png -o dusk.png
  streamshot -i rtsp://camera.local/stream -O 3 3>snapshot.jpg`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runCapture,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.streamshot.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Capture flags
	flags := rootCmd.Flags()
	flags.StringP("input", "i", "", "RTSP stream URL (rtsp://...)")
	flags.StringP("timeout", "t", "10", "network timeout in seconds or Go duration (1s..300s)")
	flags.StringP("exposure", "e", "0", "exposure time in seconds or Go duration, 0 grabs the first key frame")

	// Scale flags
	flags.Float64P("scale", "s", config.DefaultScaleFactor, "scale factor (0.1..10), wins over resize dimensions")
	flags.IntP("resize-width", "w", 0, "target width (192..19200)")
	flags.IntP("resize-height", "H", 0, "target height (108..10800)")
	flags.String("interpolator", config.DefaultInterpolator, "resampler (catmullrom, bilinear, approxbilinear, nearest)")

	// Output flags
	flags.StringP("output-file", "o", "", "output file path")
	flags.IntP("output-fd", "O", config.NoOutputFD, "write to an inherited file descriptor (>= 3), wins over --output-file")
	flags.StringP("output-format", "f", config.DefaultOutputFormat, "image format (jpg, png, ppm, bmp, tiff)")
	flags.IntP("image-quality", "q", config.DefaultQuality, "image quality (0..100)")

	// Debug flags
	flags.BoolP("debug", "d", false, "save diagnostic images and log at debug level")
	flags.Int("debug-step", config.DefaultDebugStep, "save every Nth accepted frame in debug mode")
	flags.String("debug-dir", config.DefaultDebugDir, "directory for diagnostic images")

	// Bind flags to viper
	mustBindPFlag("capture.url", flags.Lookup("input"))
	mustBindPFlag("capture.timeout", flags.Lookup("timeout"))
	mustBindPFlag("capture.exposure", flags.Lookup("exposure"))
	mustBindPFlag("scale.factor", flags.Lookup("scale"))
	mustBindPFlag("scale.width", flags.Lookup("resize-width"))
	mustBindPFlag("scale.height", flags.Lookup("resize-height"))
	mustBindPFlag("scale.interpolator", flags.Lookup("interpolator"))
	mustBindPFlag("output.path", flags.Lookup("output-file"))
	mustBindPFlag("output.fd", flags.Lookup("output-fd"))
	mustBindPFlag("output.format", flags.Lookup("output-format"))
	mustBindPFlag("output.quality", flags.Lookup("image-quality"))
	mustBindPFlag("debug.enabled", flags.Lookup("debug"))
	mustBindPFlag("debug.step", flags.Lookup("debug-step"))
	mustBindPFlag("debug.dir", flags.Lookup("debug-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	cobra.CheckErr(config.Read(v, cfgFile))

	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// initLogging configures the slog logger based on configuration.
//
// Priority order (highest to lowest):
//  1. --debug, which forces the debug level
//  2. CLI flags (--log-level, --log-format) - only if explicitly provided
//  3. Environment variables (STREAMSHOT_LOGGING_LEVEL, STREAMSHOT_LOGGING_FORMAT)
//  4. Config file values
//  5. Built-in defaults (info, text)
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	// Flags are not bound to viper: its flag layer would override env/config
	// even when the flag still holds its default value.
	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	if viper.GetBool("debug.enabled") {
		level = "debug"
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}

	logCfg := config.LoggingConfig{
		Level:      strings.ToLower(level),
		Format:     strings.ToLower(format),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
// This helper ensures lint-compliant error handling for viper.BindPFlag.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
