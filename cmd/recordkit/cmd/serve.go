/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/api"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve the configured views over HTTP. Requests under /api/v1 need the
X-API-Key header; Prometheus metrics are served on /metrics.

Examples:
  recordkit serve
  recordkit serve --port=9200 --bind=0.0.0.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		c, err := catalogFrom(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}

		apiKey := cfg.Security.APIKey
		if apiKey == "" || apiKey == "auto" {
			if apiKey, err = config.GenerateSecureKey(32); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated API key for this run: %s\n", apiKey)
		}

		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.GetLogger("serve").Info().Str("data_dir", cfg.DataDir).Str("engine", cfg.Storage.Engine).Msg("serving views")
		return container.GetServerFactory().CreateServerStarter().StartServer(ctx, c, api.ServerConfig{
			Bind:   cfg.Bind,
			Port:   cfg.Port,
			APIKey: apiKey,
			Paging: cfg.Paging,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on, overrides the configuration")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind, overrides the configuration")
}
