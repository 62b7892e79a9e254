/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// viewsCmd represents the views command
var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "List the configured views",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalogFrom(cmd)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "VIEW\tRECORDS\tORDER\tFIELDS")
		for _, view := range c.Views() {
			store, _ := c.Store(view.Name)
			n, err := store.Count(cmd.Context(), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", view.Name, n, view.OrderBy, view.Fields.Len())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewsCmd)
}
