// Package cmd provides the appgen command-line interface.
//
// Configuration is resolved from, highest priority first:
//
//  1. Command-line flags (--config, --log-level, ...)
//  2. APPGEN_CONFIG_FILE: path to a custom configuration file
//  3. APPGEN_<SECTION>_<OPTION> environment variables
//  4. .appgen.yml in the working directory
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "appgen",
	Short: "Generate plugin registries and type declarations for a web app",
	Long: `appgen scans a project's plugins, layouts and middleware and writes the
generated sources the application imports at build time: ordered client and
server plugin registries, layout and middleware maps, runtime-config accessors
and TypeScript declarations.

Plugins are ordered so that every plugin runs after the plugins it depends
on. A dependency cycle aborts generation and names the plugins involved.

Quick Start:
  appgen generate                 Write generated files to .appgen/
  appgen plugins                  Show the resolved plugin order
  appgen watch                    Regenerate on every change
  appgen config                   Print the effective configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .appgen.yml, can also use APPGEN_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points Viper at the configuration file and enables APPGEN_
// environment overrides. A missing default file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("APPGEN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".appgen")
	}

	viper.SetEnvPrefix("APPGEN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// loadProject loads and validates the configuration and builds the logger
// it asks for.
func loadProject() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid log_level %q, must be debug, info, warn or error", cfg.LogLevel)).
			WithFile(cfg.ConfigFile)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
		Component: "appgen",
	})
	if file := cfg.ConfigFile; file != "" {
		logger.Debug(context.Background(), "Using config file", "file", file)
	}
	return cfg, logger, nil
}

// commandContext returns the command's context, falling back to Background
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
