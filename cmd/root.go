// Package cmd provides the command-line interface for assetpipe.
//
// Configuration System:
//
//	Configuration is read from several sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. ASSETPIPE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (ASSETPIPE_SERVER_PORT, etc.)
//	4. Configuration files (.assetpipe.yml) - lowest priority
//
// Environment Variables:
//
//	ASSETPIPE_CONFIG_FILE: Path to custom configuration file
//	ASSETPIPE_SERVER_PORT: Override server port
//	ASSETPIPE_SERVER_HOST: Override server host
//	ASSETPIPE_DEVELOPMENT_ENABLED: Serve in development mode
//	And every other key following the ASSETPIPE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Asset pipeline server for scripts, stylesheets and static content",
	Long: `assetpipe resolves named assets from an application and its packages,
orders them by their declared dependencies, combines them according to
combination policies and serves the results with cache headers and ETags.

Quick Start:
  assetpipe init                  Initialize a new project
  assetpipe serve --dev           Serve assets with live reload
  assetpipe list sets             Show declared sets and how they compiled
  assetpipe check                 Fail when a set or asset name is broken

Command Aliases:
  init (i), serve (s), list (l), check (c)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetpipe.yml, can also use ASSETPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// initConfig points viper at the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. ASSETPIPE_CONFIG_FILE environment variable
//  3. Default: .assetpipe.yml in the current directory
//
// Every key can also be set from the environment with the ASSETPIPE_ prefix,
// e.g. ASSETPIPE_SERVER_PORT=9090.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ASSETPIPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".assetpipe")
	}

	viper.SetEnvPrefix("ASSETPIPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bound here rather than in init so a viper reset between runs keeps it.
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the command's flags and loads the configuration.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	if err := SetViperBindings(cmd, bindings); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}), nil
}
