/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/schema"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <view> <json>",
	Short: "Insert a record, or replace one with --id",
	Long: `Insert a record given as a JSON object keyed by field alias.

Examples:
  recordkit put records '{"id": 1, "name": "ann"}'
  recordkit put records '{"id": 1, "name": "anne"}' --id 2Ym8vOOsVzfDMBL8wFGuLAdzsLq`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}
		rec, err := parseRecord(store.View(), []byte(args[1]))
		if err != nil {
			return err
		}

		if raw, _ := cmd.Flags().GetString("id"); raw != "" {
			id, err := ksuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", raw, err)
			}
			if err := store.Update(cmd.Context(), id, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", id)
			return nil
		}

		id, err := store.Insert(cmd.Context(), rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().String("id", "", "Replace the record stored under this id")
}

// parseRecord decodes a JSON object into a record of view, keeping
// numbers exact
func parseRecord(view *schema.View, data []byte) (*schema.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON record: %w", err)
	}
	return schema.DecodeRecord(view.Fields, fields)
}
