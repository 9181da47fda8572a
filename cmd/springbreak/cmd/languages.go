// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sakura/springbreak/language"
	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the configured languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, _, err := loadConfig()
		if err != nil {
			printError("failed to load config", err)
			return err
		}
		t := cfg.Languages
		def := t.DefaultSelection()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tTAG\tNAME\tCOUNTRY\t")
		row := func(role, tag string) {
			if tag == def.Source || tag == def.Destination {
				role += "*"
			}
			country, err := language.Country(tag)
			if err != nil {
				country = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", role, tag, t.Name(tag), country)
		}
		for _, tag := range t.Sources {
			row("source", tag)
		}
		for _, tag := range t.Destinations {
			row("destination", tag)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
