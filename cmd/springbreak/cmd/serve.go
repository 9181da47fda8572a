// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sakura/springbreak/config"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the service",
	Long: `Runs the service until interrupted.

MQTT connection settings are read from the AIO_* environment (see the Azure
IoT Operations SDK). Motion settings are reloaded when the config file
changes.

Examples:
  springbreak serve
  springbreak serve --config ./springbreak.yaml --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, log, err := loadConfig()
	if err != nil {
		printError("failed to load config", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApplication(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Error("failed to start application", "error", err)
		return err
	}

	if path != "" {
		loader := config.Loader{Logger: log}
		go func() {
			err := loader.Watch(ctx, path, func(c *config.Config) {
				if err := a.Reconfigure(c); err != nil {
					log.Warn("motion settings not applied", "error", err)
				}
			})
			if err != nil && !errors.Is(err, errors.Cancellation) {
				log.Warn("config watch stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down...")
	return nil
}
