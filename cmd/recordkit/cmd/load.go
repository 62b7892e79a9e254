/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const maxLineBytes = 1 << 20

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load <view> [file]",
	Short: "Insert records from newline delimited JSON",
	Long: `Insert one record per line of a newline delimited JSON file, or of
standard input when no file is given. Blank lines are skipped. Loading
stops at the first record that fails.

Example:
  recordkit load records people.ndjson`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		var line, loaded int
		for scanner.Scan() {
			line++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			rec, err := parseRecord(store.View(), data)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if _, err := store.Insert(cmd.Context(), rec); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			loaded++
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d records into %s\n", loaded, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
