// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sakura/springbreak/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "springbreak",
	Short: "Shake your phone, get a spring break destination",
	Long: `springbreak turns device motion into travel picks.

Devices stream accelerometer samples; a sufficiently hard shake picks a
random attraction in the country of the device's destination language and
publishes it as a map pin. Spoken phrases are translated into the
destination language.

Configuration is read from --config, springbreak.yaml, or
/etc/springbreak/config.yaml, with SPRINGBREAK_* environment overrides.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: springbreak.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// loadConfig loads the configuration and builds the logger it asks for.
func loadConfig() (*config.Config, string, *slog.Logger, error) {
	cfg, path, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, "", nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, "", nil, err
	}

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	if path != "" {
		log.Debug("config loaded", "path", path)
	}
	return cfg, path, log, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
