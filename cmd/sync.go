package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/cache"
	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/ingest/source"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync indicators from their providers",
	Long: `Incrementally sync economic indicators into the versioned store.

By default, syncs every catalog indicator that is due under its cadence.
Use --indicators for a subset, --force to ignore cadence gating, and
--parallel to sync distinct indicators concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		// Ensure migrations are current.
		if err := ingest.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "sync: migrate")
		}

		opts := parseSyncOpts(cmd)
		sources := source.NewRegistry(cfg)
		c := cache.New(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
		engine := ingest.NewEngine(pool, newFetcher(), sources, c,
			cfg.Ingest.ErrorCapCount, cfg.Ingest.ErrorCapBytes)

		log.Info("starting sync",
			zap.Strings("indicators", opts.Indicators),
			zap.Strings("providers", sources.AllNames()),
			zap.Bool("force", opts.Force),
			zap.Int("parallel", opts.Parallel),
		)

		summary, err := engine.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Printf("Sync complete: %d synced, %d skipped, %d failed\n",
			summary.Synced, summary.Skipped, summary.Failed)
		if summary.Failed > 0 {
			return eris.Errorf("sync: %d indicator(s) failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("indicators", "", "comma-separated indicator IDs (e.g., inflation_yoy,gdp_usd)")
	syncCmd.Flags().Bool("force", false, "ignore cadence gating and sync regardless")
	syncCmd.Flags().Int("parallel", 0, "concurrent indicators (default from config)")
	rootCmd.AddCommand(syncCmd)
}

// parseSyncOpts extracts ingest.RunOpts from the cobra command flags.
func parseSyncOpts(cmd *cobra.Command) ingest.RunOpts {
	indicatorsStr, _ := cmd.Flags().GetString("indicators")
	force, _ := cmd.Flags().GetBool("force")
	parallel, _ := cmd.Flags().GetInt("parallel")

	if parallel == 0 {
		parallel = cfg.Ingest.Parallel
	}

	opts := ingest.RunOpts{
		Force:    force,
		Parallel: parallel,
	}
	if indicatorsStr != "" {
		opts.Indicators = strings.Split(indicatorsStr, ",")
		for i := range opts.Indicators {
			opts.Indicators[i] = strings.TrimSpace(opts.Indicators[i])
		}
	}
	return opts
}
