package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/passbi/corridor_router/internal/config"
	"github.com/passbi/corridor_router/internal/db"
	"github.com/passbi/corridor_router/internal/models"
	"github.com/passbi/corridor_router/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	bundlePath string
	source     string
	asJSON     bool

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "routectl",
		Short: "Query and manage the corridor route dataset",
		Long: `routectl runs route and carrier searches against a dataset bundle
and moves bundles between JSON files and Postgres.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if source != "" {
				cfg.Dataset.Source = source
			}
			if bundlePath != "" {
				cfg.Dataset.Path = bundlePath
			}
			return nil
		},
	}
)

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&bundlePath, "bundle", "", "Dataset bundle JSON file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "", "Dataset source: file or postgres (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(routesCmd, carriersCmd, statsCmd, validateCmd, importCmd, exportCmd)
}

// loadBundle reads the dataset from the configured source
func loadBundle(ctx context.Context) (models.Bundle, error) {
	if cfg.Dataset.Source != "postgres" {
		return store.LoadBundleFile(cfg.Dataset.Path)
	}

	pool, err := db.GetDB()
	if err != nil {
		return models.Bundle{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store.NewPostgresSource(pool).LoadBundle(ctx)
}
