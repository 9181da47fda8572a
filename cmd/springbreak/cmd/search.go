// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sakura/springbreak/places"
	"github.com/spf13/cobra"
)

var searchAll bool

var searchCmd = &cobra.Command{
	Use:   "search [language-tag]",
	Short: "Pick an attraction for a destination language",
	Long: `Searches for attractions in the country of the destination language
and prints one at random, with its geo: URI. Without an argument the
configured default destination is used.

Examples:
  springbreak search
  springbreak search ja-JP
  springbreak search --all fr-FR`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "print every result instead of picking one")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		printError("failed to load config", err)
		return err
	}

	tag := cfg.Languages.DefaultSelection().Destination
	if len(args) == 1 {
		tag = args[0]
	}
	q, err := places.AttractionsQuery(tag)
	if err != nil {
		printError("invalid destination", err)
		return err
	}

	ctx := cmd.Context()
	searcher, err := places.NewGoogle(ctx, cfg.Places.APIKey,
		places.WithEndpoint(cfg.Places.Endpoint),
		places.WithLogger(log),
	)
	if err != nil {
		printError("places search unavailable", err)
		return err
	}
	defer searcher.Close()

	if d := time.Duration(cfg.Places.SearchTimeout); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	found, err := searcher.SearchText(ctx, q)
	if err != nil {
		printError("search failed", err)
		return err
	}

	out := cmd.OutOrStdout()
	if searchAll {
		for _, p := range found {
			fmt.Fprintf(out, "%s\t%s\n", p.Name, places.GeoURI(p.Location))
		}
		return nil
	}

	p, err := places.Pick(nil, found)
	if err != nil {
		printError(q.Text, err)
		return err
	}
	fmt.Fprintf(out, "%s\t%s\n", p.Name, places.GeoURI(p.Location))
	return nil
}
