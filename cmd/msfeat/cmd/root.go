// Package cmd provides CLI command implementations
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/msfeat/pkg/config"
)

var (
	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	strict     bool

	// v holds the layered configuration: flags, environment, file, defaults.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "msfeat",
	Short: "msfeat - mass spectrometry signal processing and feature detection",
	Long: `msfeat processes profile mass spectra: smoothing, noise estimation,
peak picking, isotope pattern generation, feature detection and
retention time alignment of feature maps.

Settings are read from a YAML file (--config), MSFEAT_* environment
variables and command line flags, in increasing order of precedence.
Run "msfeat config" to print the effective configuration.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(isotopesCmd)
	rootCmd.AddCommand(alignCmd)
	rootCmd.AddCommand(configCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVar(&strict, "strict", false, "Reject unknown configuration keys")

	mustBind("log.level", pf.Lookup("log-level"))
	mustBind("log.format", pf.Lookup("log-format"))
	mustBind("strict", pf.Lookup("strict"))

	v.SetEnvPrefix("MSFEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig reads the configuration file, if any, and decodes the layered
// settings.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return config.Load(v)
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// mustBind binds a flag to a configuration key. Binding only fails for a nil
// flag, which is a programming error.
func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

// configYAML renders cfg for storage alongside results.
func configYAML(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := cfg.Dump(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
