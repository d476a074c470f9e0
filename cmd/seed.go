package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/fetchcache"
	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/ingest/source"
	"github.com/macromap/econsync/internal/registry"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the country registry and indicator catalog",
	Long: `Seed reference data: the country registry from the provider's country
list and the compiled-in indicator catalog.

The country list fetch is conditional on the stored ETag; use --force to
re-download and re-upsert regardless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		force, _ := cmd.Flags().GetBool("force")

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := ingest.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "seed: migrate")
		}

		indicators, err := ingest.SeedCatalog(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "seed: indicator catalog")
		}

		etags, err := fetchcache.Open(cfg.Sources.ETagCachePath)
		if err != nil {
			return err
		}
		defer etags.Close() //nolint:errcheck

		wb := &source.WorldBank{BaseURL: cfg.Sources.WorldBankBaseURL}
		seeder := registry.NewSeeder(pool, newFetcher(), etags, wb)
		countries, err := seeder.Seed(ctx, force)
		if err != nil {
			return eris.Wrap(err, "seed: countries")
		}

		zap.L().Info("seed complete",
			zap.Int64("indicators", indicators),
			zap.Int64("countries", countries),
		)
		if countries == 0 && !force {
			fmt.Println("Country list unchanged; indicator catalog refreshed")
		} else {
			fmt.Printf("Seeded %d countries and %d indicators\n", countries, indicators)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("force", false, "re-download the country list even if unchanged")
	rootCmd.AddCommand(seedCmd)
}
