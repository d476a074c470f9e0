package ingest

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/db"
	"github.com/macromap/econsync/internal/ingest/source"
)

// ValueTolerance is the absolute difference within which a candidate value is
// considered unchanged from the stored latest version. Differences at or
// below the tolerance are dedup skips; anything beyond opens a new version.
// This absorbs floating-point noise from provider-side recomputation without
// hiding real restatements.
const ValueTolerance = 1e-4

// Result holds per-outcome counts for one upsert batch.
type Result struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Upserter reconciles candidate observations against the stored version
// history for one indicator.
type Upserter struct {
	pool db.Pool
}

// NewUpserter creates an Upserter backed by the given connection pool.
func NewUpserter(pool db.Pool) *Upserter {
	return &Upserter{pool: pool}
}

// Upsert reconciles a batch of candidate observations for one indicator
// inside a single transaction: all rows commit or none do.
//
// Per record, in input order: structural validation failures join the error
// list and the run continues; unknown countries count as skipped; a first
// value for a key inserts data version 1; a value within ValueTolerance of
// the current latest is a dedup skip; a differing value inserts version
// latest+1, leaving prior rows untouched.
//
// If one batch carries two candidates for the same (country, effective date)
// key, the later record wins: it sees the earlier record's uncommitted
// insert as the current latest and versions on top of it. Any storage error
// rolls back the whole batch and propagates.
func (u *Upserter) Upsert(ctx context.Context, indicatorID string, records []source.Observation, fetchedAt time.Time) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "ingest.upsert"),
		zap.String("indicator", indicatorID),
	)

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	res := &Result{}
	countryKnown := make(map[string]bool)

	for _, rec := range records {
		if err := ValidateObservation(rec); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}

		known, seen := countryKnown[rec.CountryCode]
		if !seen {
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM econ.countries WHERE code = $1)`,
				rec.CountryCode,
			).Scan(&known)
			if err != nil {
				return nil, eris.Wrapf(err, "upsert: country lookup %s", rec.CountryCode)
			}
			countryKnown[rec.CountryCode] = known
		}
		if !known {
			// Counted silently, but logged: a provider introducing a new
			// territory code should not vanish without trace.
			log.Warn("skipping observation for unknown country",
				zap.String("country", rec.CountryCode),
			)
			res.Skipped++
			continue
		}

		var latestVersion int
		var latestValue float64
		err := tx.QueryRow(ctx,
			`SELECT data_version, value FROM econ.indicator_values
			 WHERE country_code = $1 AND indicator_id = $2 AND effective_date = $3
			 ORDER BY data_version DESC LIMIT 1`,
			rec.CountryCode, indicatorID, rec.Date,
		).Scan(&latestVersion, &latestValue)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if err := insertValue(ctx, tx, indicatorID, rec, fetchedAt, 1); err != nil {
				return nil, err
			}
			res.Inserted++

		case err != nil:
			return nil, eris.Wrapf(err, "upsert: read latest version for %s/%s@%s",
				rec.CountryCode, indicatorID, rec.Date)

		case math.Abs(latestValue-rec.Value) <= ValueTolerance:
			// Unchanged: no new row, the version history stays flat across
			// re-ingestion of identical data.
			res.Skipped++

		default:
			if err := insertValue(ctx, tx, indicatorID, rec, fetchedAt, latestVersion+1); err != nil {
				return nil, err
			}
			res.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "upsert: commit tx")
	}

	log.Info("upsert batch committed",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func insertValue(ctx context.Context, tx pgx.Tx, indicatorID string, rec source.Observation, fetchedAt time.Time, version int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO econ.indicator_values
		 (country_code, indicator_id, effective_date, value, fetched_at, data_version)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.CountryCode, indicatorID, rec.Date, rec.Value, fetchedAt, version,
	)
	if err != nil {
		return eris.Wrapf(err, "upsert: insert version %d for %s/%s@%s",
			version, rec.CountryCode, indicatorID, rec.Date)
	}
	return nil
}
