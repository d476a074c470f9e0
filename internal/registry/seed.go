package registry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/db"
	"github.com/macromap/econsync/internal/fetchcache"
	"github.com/macromap/econsync/internal/fetcher"
	"github.com/macromap/econsync/internal/ingest/source"
)

// Seeder refreshes the country reference table from the provider's country
// list. Conditional fetches keyed on the stored ETag keep repeat seeding
// cheap; the list changes a few times a year at most.
type Seeder struct {
	pool  db.Pool
	fetch fetcher.Fetcher
	etags *fetchcache.Store // nil disables conditional fetching
	wb    *source.WorldBank
}

// NewSeeder creates a Seeder.
func NewSeeder(pool db.Pool, f fetcher.Fetcher, etags *fetchcache.Store, wb *source.WorldBank) *Seeder {
	return &Seeder{pool: pool, fetch: f, etags: etags, wb: wb}
}

// Seed fetches the country list and upserts it. Returns the number of rows
// written; zero with a nil error means the list was unchanged upstream.
// force bypasses the ETag check.
func (s *Seeder) Seed(ctx context.Context, force bool) (int64, error) {
	log := zap.L().With(zap.String("component", "registry.seed"))
	url := s.wb.CountriesURL()

	var etag string
	if s.etags != nil && !force {
		var err error
		etag, err = s.etags.Get(ctx, url)
		if err != nil {
			return 0, err
		}
	}

	body, newETag, changed, err := s.fetch.DownloadIfChanged(ctx, url, etag)
	if err != nil {
		return 0, eris.Wrap(err, "registry: download country list")
	}
	if !changed {
		log.Info("country list unchanged, skipping seed")
		return 0, nil
	}
	defer body.Close() //nolint:errcheck

	records, err := s.wb.ParseCountries(body)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, eris.New("registry: provider returned no countries")
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		var currency any
		if c := source.CurrencyFor(rec.Alpha2); c != "" {
			currency = c
		}
		rows = append(rows, []any{rec.Alpha2, rec.Name, rec.Region, rec.IncomeLevel, currency, now})
	}

	written, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "econ.countries",
		Columns:      []string{"code", "name", "region", "income_level", "currency", "updated_at"},
		ConflictKeys: []string{"code"},
	}, rows)
	if err != nil {
		return 0, err
	}

	if s.etags != nil && newETag != "" {
		if err := s.etags.Set(ctx, url, newETag); err != nil {
			log.Warn("failed to store country list etag", zap.Error(err))
		}
	}

	log.Info("country registry seeded", zap.Int64("rows", written))
	return written, nil
}
