package cmd

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/streamshot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing streamshot configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  streamshot config dump > .streamshot.yaml

Configuration can be set via:
  - Config file (.streamshot.yaml in the current directory, $HOME or /etc/streamshot)
  - Environment variables (STREAMSHOT_CAPTURE_URL, STREAMSHOT_OUTPUT_PATH, etc.)
  - Command-line flags

Environment variables use the STREAMSHOT_ prefix and underscores for nesting.
Example: capture.exposure -> STREAMSHOT_CAPTURE_EXPOSURE`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

// defaultConfig returns the built-in defaults. Validation is skipped since
// there is no default stream URL.
func defaultConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	return config.FromViper(v)
}

func writeConfigDump(w io.Writer, cfg *config.Config) error {
	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	header := `# streamshot Configuration File
# ==============================
#
# All values shown below are defaults.
# Duration format: 10 (seconds), 2m30s, 1h
#
# Environment variable overrides:
#   STREAMSHOT_CAPTURE_URL, STREAMSHOT_CAPTURE_EXPOSURE
#   STREAMSHOT_OUTPUT_PATH, STREAMSHOT_OUTPUT_FORMAT
#   STREAMSHOT_LOGGING_LEVEL, STREAMSHOT_LOGGING_FORMAT
#   etc.
#

`
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := defaultConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return writeConfigDump(cmd.OutOrStdout(), cfg)
}
