package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"lyrik/internal/app"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List lyric sources with their priority rank",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		engine, err := app.NewEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		enabled := engine.Resolver.Sources()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tNAME\tRANK\tENABLED")
		for i, name := range engine.Registry.Names() {
			fmt.Fprintf(w, "%d\t%s\t%d\t%t\n", i, name, engine.Resolver.Rank(name), slices.Contains(enabled, name))
		}
		return w.Flush()
	},
}
