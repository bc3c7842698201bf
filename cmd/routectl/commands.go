package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/passbi/corridor_router/internal/coverage"
	"github.com/passbi/corridor_router/internal/db"
	"github.com/passbi/corridor_router/internal/graph"
	"github.com/passbi/corridor_router/internal/models"
	"github.com/passbi/corridor_router/internal/routing"
	"github.com/passbi/corridor_router/internal/store"
	"github.com/spf13/cobra"
)

var (
	routeK      int
	maxSegments int
	importFile  string
	exportFile  string
	assumeYes   bool

	routesCmd = &cobra.Command{
		Use:   "routes FROM TO",
		Short: "Find the K best line itineraries between two cities",
		Args:  cobra.ExactArgs(2),
		RunE:  runRoutes,
	}

	carriersCmd = &cobra.Command{
		Use:   "carriers FROM TO",
		Short: "Find carriers covering a city pair (exact, geozone, composite)",
		Args:  cobra.ExactArgs(2),
		RunE:  runCarriers,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print graph and carrier index statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check that the dataset builds a graph and a carrier index",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Load a JSON bundle into Postgres, replacing the stored dataset",
		Args:  cobra.NoArgs,
		RunE:  runImport,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the dataset to a JSON bundle",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
)

func init() {
	routesCmd.Flags().IntVarP(&routeK, "k", "k", 0, "Number of itineraries (default from config)")
	carriersCmd.Flags().IntVar(&maxSegments, "max-segments", 0, "Carrier segments per composite route (default from config)")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Bundle JSON file to import")
	importCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	_ = importCmd.MarkFlagRequired("file")
	exportCmd.Flags().StringVarP(&exportFile, "out", "o", "bundle.json", "Output file")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	g, err := graph.Build(bundle)
	if err != nil {
		return err
	}

	k := routeK
	if k <= 0 {
		k = cfg.Routing.DefaultK
	}
	start := time.Now()
	itineraries, err := routing.FindRoutes(g, args[0], args[1], k)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(itineraries)
	}

	log.Printf("🔎 %d itineraries %s → %s in %v", len(itineraries), args[0], args[1], time.Since(start).Round(time.Microsecond))
	for i, it := range itineraries {
		fmt.Printf("\n#%d  transfers=%d  hops=%d\n", i+1, it.Transfers, it.Hops)
		for _, step := range routing.BuildSteps(it.Segments) {
			if step.Type == models.SegmentTransfer {
				fmt.Printf("   ⇄ transfer at %s to %s\n", step.FromCity, step.Line)
				continue
			}
			fmt.Printf("   %s: %s\n", step.Line, strings.Join(step.Cities, " → "))
		}
	}
	return nil
}

func runCarriers(cmd *cobra.Command, args []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	idx, err := buildIndex(bundle)
	if err != nil {
		return err
	}

	segments := maxSegments
	if segments <= 0 {
		segments = cfg.Carrier.MaxSegments
	}
	result, err := coverage.Search(idx, args[0], args[1], coverage.SearchOptions{
		MaxSegments:     segments,
		MaxPaths:        cfg.Carrier.MaxPaths,
		MaxCombinations: cfg.Carrier.MaxCombinations,
	})
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(result)
	}

	fmt.Printf("Exact (%d)\n", len(result.Exact))
	for _, c := range result.Exact {
		fmt.Printf("   %s  %s\n", carrierLabel(c), formatChains(c.Routes))
	}
	fmt.Printf("Geozone (%d)\n", len(result.Geozone))
	for _, c := range result.Geozone {
		fmt.Printf("   %s  %s\n", carrierLabel(c), formatChains(c.Routes))
	}
	fmt.Printf("Composite (%d)\n", len(result.Composite))
	for _, r := range result.Composite {
		legs := make([]string, 0, len(r.Legs))
		for _, leg := range r.Legs {
			legs = append(legs, carrierLabel(leg))
		}
		fmt.Printf("   %s  via %s\n", strings.Join(r.Path, " → "), strings.Join(legs, " + "))
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	g, err := graph.Build(bundle)
	if err != nil {
		return err
	}
	idx, err := buildIndex(bundle)
	if err != nil {
		return err
	}

	hubs := 0
	for _, c := range bundle.Cities {
		if c.IsCorridorHub {
			hubs++
		}
	}

	log.Printf("📊 Dataset statistics:")
	log.Printf("   Cities: %d (%d corridor hubs)", len(bundle.Cities), hubs)
	log.Printf("   Corridors: %d", len(bundle.Corridors))
	log.Printf("   Lines: %d", len(bundle.Lines))
	log.Printf("📊 Graph statistics:")
	log.Printf("   Nodes: %d", g.NodeCount())
	log.Printf("   Edges: %d", g.EdgeCount())
	log.Printf("   Hash: %.12s", g.Hash)
	log.Printf("📊 Carrier index statistics:")
	log.Printf("   Carriers: %d", idx.CarrierCount())
	log.Printf("   Unique routes: %d", len(idx.Catalog()))
	log.Printf("   Hash: %.12s", idx.Hash)
	return nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}

	var failed bool
	if _, err := graph.Build(bundle); err != nil {
		log.Printf("❌ Network: %v", err)
		failed = true
	} else {
		log.Println("✅ Network builds a routing graph")
	}

	if _, err := buildIndex(bundle); err != nil {
		var verr *coverage.ValidationError
		if errors.As(err, &verr) {
			log.Printf("❌ Carrier %q variant %d: %s", verr.Carrier, verr.Variant, verr.Reason)
		} else {
			log.Printf("❌ Carriers: %v", err)
		}
		failed = true
	} else {
		log.Println("✅ Carriers build a coverage index")
	}

	if failed {
		return errors.New("dataset is invalid")
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	bundle, err := store.LoadBundleFile(importFile)
	if err != nil {
		return err
	}
	// refuse to store what the server could not load
	if _, err := graph.Build(bundle); err != nil {
		return err
	}
	if _, err := buildIndex(bundle); err != nil {
		return err
	}

	if !assumeYes {
		fmt.Println()
		fmt.Println("⚠️  This will DELETE the dataset stored in the database!")
		fmt.Print("Continue? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			log.Println("❌ Import cancelled")
			return nil
		}
	}

	log.Println("📡 Connecting to database...")
	pool, err := db.GetDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	start := time.Now()
	if err := store.NewPostgresSource(pool).SaveBundle(ctx, bundle); err != nil {
		return err
	}
	log.Printf("✅ Imported %d cities, %d lines, %d carriers in %v",
		len(bundle.Cities), len(bundle.Lines), len(bundle.Carriers), time.Since(start).Round(time.Millisecond))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	if err := store.WriteBundleFile(exportFile, bundle); err != nil {
		return err
	}
	log.Printf("✅ Wrote %s", exportFile)
	return nil
}

func buildIndex(bundle models.Bundle) (*coverage.Index, error) {
	cities := make([]string, 0, len(bundle.Cities))
	for _, c := range bundle.Cities {
		cities = append(cities, c.ID)
	}
	return coverage.BuildIndex(bundle.Carriers, coverage.Options{
		MaxIndexedChain: cfg.Carrier.MaxIndexedChain,
		KnownCities:     cities,
	})
}

func carrierLabel(c models.CarrierInfo) string {
	if c.Label != "" && c.Label != c.ID {
		return fmt.Sprintf("%s (%s)", c.Label, c.ID)
	}
	return c.ID
}

func formatChains(chains [][]string) string {
	parts := make([]string, 0, len(chains))
	for _, chain := range chains {
		parts = append(parts, strings.Join(chain, "-"))
	}
	return strings.Join(parts, ", ")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
