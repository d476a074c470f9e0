package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/query"
	"github.com/macromap/econsync/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("runs")

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		counts, err := query.New(pool).CountByIndicator(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		nCountries, err := registry.New(pool).Count(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		ledger := ingest.NewLedger(pool)
		updated, err := ledger.LastUpdated(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		runs, err := ledger.List(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatStatus(os.Stdout, nCountries, counts, updated, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("runs", 15, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes the indicator summary and run history tables to out.
func formatStatus(out io.Writer, nCountries int, counts map[string]int64, updated map[string]time.Time, runs []ingest.RunEntry) {
	p := message.NewPrinter(language.English)

	_, _ = p.Fprintf(out, "Countries registered: %d\n\n", nCountries)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INDICATOR\tROWS\tLAST UPDATED")
	_, _ = fmt.Fprintln(w, "---------\t----\t------------")
	for _, ind := range ingest.Catalog {
		last := "-"
		if t, ok := updated[ind.JobName()]; ok {
			last = t.Format("2006-01-02 15:04")
		}
		_, _ = p.Fprintf(w, "%s\t%d\t%s\n", ind.ID, counts[ind.ID], last)
	}
	_ = w.Flush()

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo ingestion runs recorded; run 'econsync sync' to start.")
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tSTARTED\tDURATION\tINS\tUPD\tSKIP\tERROR")
	_, _ = fmt.Fprintln(w, "---\t------\t-------\t--------\t---\t---\t----\t-----")
	for _, e := range runs {
		dur := e.FinishedAt.Sub(e.StartedAt).Round(time.Second)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.JobName,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur.String(),
			e.Inserted,
			e.Updated,
			e.Skipped,
			truncate(e.ErrorSummary, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
