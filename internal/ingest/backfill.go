package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/db"
	"github.com/macromap/econsync/internal/fetcher"
	"github.com/macromap/econsync/internal/ingest/source"
)

// BackfillOptions tunes the historical loader. Zero values fall back to
// conservative defaults.
type BackfillOptions struct {
	BatchSize     int           // rows per independently committed batch
	PageDelay     time.Duration // pause between provider page fetches
	PerPage       int           // observations requested per page
	MaxPages      int           // hard cap on pages fetched per run
	ErrorCapCount int           // max error messages kept in the ledger
	ErrorCapBytes int           // max bytes of error summary kept in the ledger
}

func (o BackfillOptions) withDefaults() BackfillOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.PerPage <= 0 {
		o.PerPage = 1000
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 200
	}
	if o.ErrorCapCount <= 0 {
		o.ErrorCapCount = 5
	}
	if o.ErrorCapBytes <= 0 {
		o.ErrorCapBytes = 500
	}
	return o
}

// Backfiller loads an indicator's full history from its provider in
// independently committed batches. It only fills gaps: every row is written
// as data version 1 with conflicts skipped, so values already captured by
// incremental ingestion are never touched.
type Backfiller struct {
	pool    db.Pool
	fetch   fetcher.Fetcher
	sources *source.Registry
	ledger  *Ledger
	opts    BackfillOptions
}

// NewBackfiller creates a Backfiller.
func NewBackfiller(pool db.Pool, f fetcher.Fetcher, sources *source.Registry, ledger *Ledger, opts BackfillOptions) *Backfiller {
	return &Backfiller{
		pool:    pool,
		fetch:   f,
		sources: sources,
		ledger:  ledger,
		opts:    opts.withDefaults(),
	}
}

// Run backfills one indicator and records exactly one ledger entry under the
// indicator's backfill job name. Batches committed before a mid-run failure
// stay committed; the ledger entry then carries the counts achieved so far
// and a failure status.
func (b *Backfiller) Run(ctx context.Context, ind Indicator) (*Result, error) {
	startedAt := time.Now().UTC()
	res := &Result{}

	runErr := b.run(ctx, ind, res)

	status := StatusFor(res)
	summary := TruncateErrors(res.Errors, b.opts.ErrorCapCount, b.opts.ErrorCapBytes)
	if runErr != nil {
		status = StatusFailure
		summary = TruncateErrors([]string{runErr.Error()}, 1, b.opts.ErrorCapBytes)
	}

	entry := RunEntry{
		JobName:      ind.BackfillJobName(),
		Status:       status,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Inserted:     res.Inserted,
		Updated:      res.Updated,
		Skipped:      res.Skipped,
		ErrorSummary: summary,
	}
	// The ledger write must land even when the run itself was canceled.
	if err := b.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("backfill: ledger record failed",
			zap.String("job", ind.BackfillJobName()),
			zap.Error(err),
		)
	}

	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func (b *Backfiller) run(ctx context.Context, ind Indicator, res *Result) error {
	log := zap.L().With(
		zap.String("component", "ingest.backfill"),
		zap.String("indicator", ind.ID),
	)

	src, err := b.sources.Get(ind.Source)
	if err != nil {
		return eris.Wrapf(err, "backfill: %s", ind.ID)
	}

	known, err := b.knownCountries(ctx)
	if err != nil {
		return err
	}

	fetchedAt := time.Now().UTC()
	observations, pages, err := b.fetchAll(ctx, src, ind, log)
	if err != nil {
		return err
	}

	rows := b.prepareRows(ind, observations, known, fetchedAt, res, log)

	for start := 0; start < len(rows); start += b.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "backfill: canceled between batches")
		}
		end := start + b.opts.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		inserted, err := db.BulkInsertSkipConflicts(ctx, b.pool, db.UpsertConfig{
			Table:        "econ.indicator_values",
			Columns:      []string{"country_code", "indicator_id", "effective_date", "value", "fetched_at", "data_version"},
			ConflictKeys: []string{"country_code", "indicator_id", "effective_date", "data_version"},
		}, batch)
		if err != nil {
			return eris.Wrapf(err, "backfill: write batch %d-%d for %s", start, end, ind.ID)
		}
		res.Inserted += int(inserted)
		res.Skipped += len(batch) - int(inserted)
	}

	log.Info("backfill complete",
		zap.Int("pages", pages),
		zap.Int("fetched", len(observations)),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return nil
}

// fetchAll walks the provider's pagination until the reported page count or
// the configured cap, pausing between pages to stay polite.
func (b *Backfiller) fetchAll(ctx context.Context, src source.Source, ind Indicator, log *zap.Logger) ([]source.Observation, int, error) {
	var all []source.Observation
	page, totalPages := 1, 1
	for page <= totalPages && page <= b.opts.MaxPages {
		obs, pages, err := src.Historical(ctx, b.fetch, ind.SourceCode, page, b.opts.PerPage)
		if err != nil {
			return nil, page, eris.Wrapf(err, "backfill: fetch page %d for %s", page, ind.ID)
		}
		if pages > 0 {
			totalPages = pages
		}
		all = append(all, obs...)
		log.Debug("fetched history page",
			zap.Int("page", page),
			zap.Int("of", totalPages),
			zap.Int("observations", len(obs)),
		)
		page++
		if page <= totalPages && page <= b.opts.MaxPages {
			if err := sleepCtx(ctx, b.opts.PageDelay); err != nil {
				return nil, page, eris.Wrap(err, "backfill: canceled between pages")
			}
		}
	}
	if totalPages > b.opts.MaxPages {
		log.Warn("page cap reached, history truncated",
			zap.Int("cap", b.opts.MaxPages),
			zap.Int("reported_pages", totalPages),
		)
	}
	return all, page - 1, nil
}

// prepareRows validates and filters observations, deduplicates keys with the
// later occurrence winning, and shapes the survivors into COPY rows with
// data version 1.
func (b *Backfiller) prepareRows(ind Indicator, observations []source.Observation, known map[string]bool, fetchedAt time.Time, res *Result, log *zap.Logger) [][]any {
	type key struct{ country, date string }
	order := make([]key, 0, len(observations))
	byKey := make(map[key]source.Observation, len(observations))

	for _, obs := range observations {
		if err := ValidateObservation(obs); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if !known[obs.CountryCode] {
			log.Warn("skipping observation for unknown country",
				zap.String("country", obs.CountryCode),
			)
			res.Skipped++
			continue
		}
		k := key{obs.CountryCode, obs.Date}
		if _, dup := byKey[k]; !dup {
			order = append(order, k)
		} else {
			res.Skipped++
		}
		byKey[k] = obs
	}

	rows := make([][]any, 0, len(order))
	for _, k := range order {
		obs := byKey[k]
		rows = append(rows, []any{obs.CountryCode, ind.ID, obs.Date, obs.Value, fetchedAt, 1})
	}
	return rows
}

func (b *Backfiller) knownCountries(ctx context.Context) (map[string]bool, error) {
	rows, err := b.pool.Query(ctx, `SELECT code FROM econ.countries`)
	if err != nil {
		return nil, eris.Wrap(err, "backfill: load country codes")
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, eris.Wrap(err, "backfill: scan country code")
		}
		known[code] = true
	}
	return known, rows.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
