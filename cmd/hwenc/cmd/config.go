package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hwenc/internal/config"
	"github.com/jmylchreest/hwenc/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing hwenc configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  hwenc config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .hwenc.yaml, /etc/hwenc/config.yaml)
  - Environment variables (HWENC_ENCODER_BITRATE, HWENC_LOGGING_LEVEL, etc.)
  - Command-line flags (for some options)

Environment variables use the HWENC_ prefix and underscores for nesting.
Example: encoder.gop_size -> HWENC_ENCODER_GOP_SIZE`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and bit rates for
// human readability.
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
			result[key] = duration.Format(v)
		case config.BitRate:
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

const dumpHeader = `# hwenc configuration file
#
# All values shown below are defaults.
# Duration format: 30s, 5m, "2 minutes"
# Bit rate format: 800k, 6mbps, 2.5Mbps
#
# Every key can be overridden with a HWENC_ environment variable,
# replacing dots with underscores:
#   encoder.gop_size -> HWENC_ENCODER_GOP_SIZE

`

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, dumpHeader)
	fmt.Fprint(out, string(yamlData))
	return nil
}
