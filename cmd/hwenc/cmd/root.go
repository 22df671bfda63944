// Package cmd implements the CLI commands for hwenc.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hwenc/internal/config"
	"github.com/jmylchreest/hwenc/internal/observability"
	"github.com/jmylchreest/hwenc/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "hwenc",
	Short:   "Hardware video encoder session manager",
	Version: version.Short(),
	Long: `hwenc manages hardware encode sessions: it probes device capabilities,
negotiates an output profile against a downstream offer, builds session
parameters from runtime-tunable properties, and packages the resulting
bitstream for byte-stream or packetized consumers.

Parameter changes on a live session are applied at frame boundaries,
using an in-place update when only the bitrate changed and the device
supports dynamic updates, or a transparent session rebuild otherwise.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Assigned here rather than in the literal above: initLogging reads
	// rootCmd.PersistentFlags.
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// The logging flags are deliberately not bound to viper; initLogging
	// consults Changed() so an untouched flag default never shadows an env
	// or config value.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hwenc.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig seeds defaults, then layers the config file and HWENC_*
// environment variables on top.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/hwenc")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".hwenc")
	}

	viper.SetEnvPrefix("HWENC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging builds the process logger. Explicitly set CLI flags win,
// then HWENC_LOGGING_* environment variables, then the config file, then
// the built-in defaults.
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}

	// "warning" is accepted as an alias.
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	logger = observability.WithApp(logger, "hwenc")
	observability.SetDefault(logger)

	return nil
}
