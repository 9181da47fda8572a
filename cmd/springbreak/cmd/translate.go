// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakura/springbreak/translate"
	"github.com/spf13/cobra"
)

var (
	translateFrom string
	translateTo   string
)

var translateCmd = &cobra.Command{
	Use:   "translate <text>",
	Short: "Translate a phrase",
	Long: `Translates a phrase with the configured translation backend.

Examples:
  springbreak translate "where is the beach"
  springbreak translate --to ja-JP "two tickets please"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().StringVar(&translateFrom, "from", "", "source language tag (default: configured source)")
	translateCmd.Flags().StringVar(&translateTo, "to", "", "destination language tag (default: configured destination)")
	rootCmd.AddCommand(translateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		printError("failed to load config", err)
		return err
	}

	sel := cfg.Languages.DefaultSelection()
	if translateFrom != "" {
		sel.Source = translateFrom
	}
	if translateTo != "" {
		sel.Destination = translateTo
	}
	if err := cfg.Languages.Check(sel); err != nil {
		printError("unsupported languages", err)
		return err
	}

	ctx := cmd.Context()
	backend, err := translate.NewGoogle(ctx, cfg.Translate.APIKey,
		translate.WithEndpoint(cfg.Translate.Endpoint),
		translate.WithLogger(log),
	)
	if err != nil {
		printError("translation unavailable", err)
		return err
	}
	defer backend.Close()

	svc, err := translate.NewService(backend, sel.Source, sel.Destination,
		translate.WithReadyTimeout(time.Duration(cfg.Translate.ReadyTimeout)),
		translate.WithLogger(log),
	)
	if err != nil {
		printError("translation unavailable", err)
		return err
	}
	defer svc.Close()

	if err := svc.WaitReady(ctx); err != nil {
		printError("translator not ready", err)
		return err
	}
	res, err := svc.Translate(ctx, strings.Join(args, " "))
	if err != nil {
		printError("translation failed", err)
		return err
	}

	src, dst := svc.Pair()
	fmt.Fprintf(cmd.OutOrStdout(), "%s → %s: %s\n",
		cfg.Languages.Name(src), cfg.Languages.Name(dst), res)
	return nil
}
