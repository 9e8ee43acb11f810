// Blescan discovers nearby Bluetooth Low Energy peripherals.
//
// It runs bounded scan sessions on the host's first Bluetooth adapter and
// reports every peripheral seen as a name/address pair. Results can be
// printed as a table, JSON or YAML, watched live in the terminal, or served
// over HTTP and WebSocket to other tools on the network.
//
// Usage:
//
//	blescan [command] [flags]
//
// See 'blescan --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/blescan/internal/config"
	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/version"
)

// reportedError marks a failure the command already showed the user
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	simulate   bool
)

// cfg is the effective configuration, loaded before any command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blescan",
	Short: "Bluetooth Low Energy peripheral scanner",
	Long: `Discover nearby Bluetooth Low Energy peripherals.

Each scan is a bounded session on the first Bluetooth adapter: the scan is
started, advertisements are collected until the duration elapses, and the
scan is always stopped again, even on failure or Ctrl+C.

Defaults come from the config file (see 'blescan config path'); flags
override them.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use a simulated adapter with demo peripherals instead of real hardware")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and initializes logging. Level
// precedence: --log-level, then BLESCAN_LOG_LEVEL, then the file.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if errors.Is(err, os.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = cfg.LogLevel
	}
	if level != "" {
		if _, err := logging.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	return logging.Initialize(level)
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := newPrinter(cmd, versionFormat)
		if err != nil {
			return err
		}
		info := version.Get()
		return printer.PrintValue(info, func() string {
			return fmt.Sprintf("blescan %s (commit: %s, %s, %s)", info.Version, info.Commit, info.GoVersion, info.Platform)
		})
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "table", "Output format (table, json, yaml)")
}
