/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starting configuration",
	Long: `Write a configuration file with a generated API key and a sample
"records" view. Edit the views section to declare your own.

Examples:
  recordkit init
  recordkit init --config=./recordkit.yaml --data-dir=./data`,
	// init runs before any configuration exists
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if config.ConfigExists(path) && !force {
			return fmt.Errorf("configuration already exists at %s, use --force to overwrite", path)
		}

		cfg, err := config.BootstrapConfig(path, dataDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration written to %s\n", path)
		fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
		fmt.Fprintf(out, "API key: %s\n", cfg.Security.APIKey)
		fmt.Fprintf(out, "\nYou can now start the server with:\n")
		fmt.Fprintf(out, "  recordkit serve --config=%s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
