/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/catalog"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/di"
	"github.com/ssargent/recordkit/pkg/logger"
	"go.uber.org/multierr"
)

var container *di.Container

// SetContainer injects the dependencies the commands use
func SetContainer(c *di.Container) {
	container = c
}

type contextKey string

const (
	catalogKey contextKey = "catalog"
	configKey  contextKey = "config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recordkit",
	Short: "recordkit - paged record sets over typed views",
	Long: `recordkit stores records of declared views and pages through them
in view order, over pebble or an in-memory journaled store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Logging); err != nil {
			return fmt.Errorf("failed to init logging: %w", err)
		}

		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}
		c, err := container.GetCatalogOpener()(cfg)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		opened = c

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = context.WithValue(ctx, configKey, cfg)
		cmd.SetContext(context.WithValue(ctx, catalogKey, c))
		return nil
	},
}

// opened is closed once the command finishes, whether it failed or not
var opened *catalog.Catalog

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := execute(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if opened != nil {
		err = multierr.Append(err, opened.Close())
		opened = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory, overrides the configuration")
	rootCmd.PersistentFlags().String("engine", "", "Storage engine (pebble or memory), overrides the configuration")
}

// loadConfig reads the configuration file and applies the flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'recordkit init' first)", err)
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if engine, _ := cmd.Flags().GetString("engine"); engine != "" {
		cfg.Storage.Engine = engine
	}
	return cfg, nil
}

func catalogFrom(cmd *cobra.Command) (*catalog.Catalog, error) {
	c, ok := cmd.Context().Value(catalogKey).(*catalog.Catalog)
	if !ok {
		return nil, fmt.Errorf("catalog not found in context")
	}
	return c, nil
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("config not found in context")
	}
	return cfg, nil
}

// storeFor returns the store of the named view
func storeFor(cmd *cobra.Command, view string) (catalog.Store, error) {
	c, err := catalogFrom(cmd)
	if err != nil {
		return nil, err
	}
	s, ok := c.Store(view)
	if !ok {
		return nil, fmt.Errorf("view %q not found", view)
	}
	return s, nil
}
