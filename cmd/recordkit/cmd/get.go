/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/schema"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <view> <id>",
	Short: "Show a record by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}
		id, err := ksuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[1], err)
		}
		rec, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return outputRecords(cmd.OutOrStdout(), format, store.View(), []*schema.Record{rec})
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <view> <id>",
	Short: "Delete a record by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}
		id, err := ksuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[1], err)
		}
		if err := store.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	getCmd.Flags().StringP("format", "f", "table", "Output format (table or json)")
}
