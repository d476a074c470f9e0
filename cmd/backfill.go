package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/ingest/source"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Load full indicator history",
	Long: `Walk a provider's full paginated history and load it in independently
committed batches. Values already captured by incremental syncs are never
rewritten: backfill only fills gaps.

Indicators are processed one at a time; a failure stops the remaining ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "backfill"))

		indicators, err := parseBackfillIndicators(cmd)
		if err != nil {
			return err
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := ingest.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "backfill: migrate")
		}

		sources := source.NewRegistry(cfg)
		ledger := ingest.NewLedger(pool)
		b := ingest.NewBackfiller(pool, newFetcher(), sources, ledger, ingest.BackfillOptions{
			BatchSize:     cfg.Backfill.BatchSize,
			PageDelay:     time.Duration(cfg.Backfill.PageDelayMS) * time.Millisecond,
			PerPage:       cfg.Backfill.PerPage,
			MaxPages:      cfg.Backfill.MaxPages,
			ErrorCapCount: cfg.Ingest.ErrorCapCount,
			ErrorCapBytes: cfg.Ingest.ErrorCapBytes,
		})

		for _, ind := range indicators {
			log.Info("backfilling indicator", zap.String("indicator", ind.ID))
			res, err := b.Run(ctx, ind)
			if err != nil {
				return eris.Wrapf(err, "backfill %s", ind.ID)
			}
			fmt.Printf("%s: %d inserted, %d skipped, %d errors\n",
				ind.ID, res.Inserted, res.Skipped, len(res.Errors))
		}
		return nil
	},
}

func init() {
	backfillCmd.Flags().String("indicators", "", "comma-separated indicator IDs (default: all)")
	rootCmd.AddCommand(backfillCmd)
}

func parseBackfillIndicators(cmd *cobra.Command) ([]ingest.Indicator, error) {
	raw, _ := cmd.Flags().GetString("indicators")
	var names []string
	if raw != "" {
		names = strings.Split(raw, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
	}
	return ingest.SelectIndicators(names)
}
