// Package query reads stored observations, always resolving each
// (country, date) key to its highest data version.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/macromap/econsync/internal/db"
)

// Point is the current value for one (country, effective date) key: the row
// with the highest data version.
type Point struct {
	CountryCode   string    `json:"country_code"`
	EffectiveDate string    `json:"effective_date"`
	Value         float64   `json:"value"`
	DataVersion   int       `json:"data_version"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Version is one row of a key's full version history.
type Version struct {
	DataVersion int       `json:"data_version"`
	Value       float64   `json:"value"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ValuesFilter narrows a Values query. Zero fields are ignored.
type ValuesFilter struct {
	CountryCode string
	From        string // effective date lower bound, inclusive, YYYY-MM-DD
	To          string // effective date upper bound, inclusive, YYYY-MM-DD
	Limit       int
}

// Service reads the observation store.
type Service struct {
	pool db.Pool
}

// New creates a query Service.
func New(pool db.Pool) *Service {
	return &Service{pool: pool}
}

// Values returns current values for an indicator, one point per (country,
// effective date) key. Superseded versions never appear: DISTINCT ON with a
// descending version sort keeps only the latest row per key.
func (s *Service) Values(ctx context.Context, indicatorID string, filter ValuesFilter) ([]Point, error) {
	sql := `SELECT DISTINCT ON (country_code, effective_date)
	        country_code, effective_date, value, data_version, fetched_at
	        FROM econ.indicator_values WHERE indicator_id = $1`
	args := []any{indicatorID}

	if filter.CountryCode != "" {
		args = append(args, filter.CountryCode)
		sql += fmt.Sprintf(" AND country_code = $%d", len(args))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		sql += fmt.Sprintf(" AND effective_date >= $%d", len(args))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		sql += fmt.Sprintf(" AND effective_date <= $%d", len(args))
	}

	sql += " ORDER BY country_code, effective_date DESC, data_version DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "query: values for %s", indicatorID)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		var date time.Time
		if err := rows.Scan(&p.CountryCode, &date, &p.Value, &p.DataVersion, &p.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "query: scan value point")
		}
		p.EffectiveDate = date.Format("2006-01-02")
		out = append(out, p)
	}
	return out, rows.Err()
}

// History returns the full version trail for one key, oldest version first.
func (s *Service) History(ctx context.Context, indicatorID, countryCode, effectiveDate string) ([]Version, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data_version, value, fetched_at FROM econ.indicator_values
		 WHERE indicator_id = $1 AND country_code = $2 AND effective_date = $3
		 ORDER BY data_version ASC`,
		indicatorID, countryCode, effectiveDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "query: history for %s/%s@%s", countryCode, indicatorID, effectiveDate)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.DataVersion, &v.Value, &v.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "query: scan version")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByIndicator returns stored row counts per indicator, all versions
// included. Backs the status reporting surface.
func (s *Service) CountByIndicator(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT indicator_id, COUNT(*) FROM econ.indicator_values GROUP BY indicator_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "query: count by indicator")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "query: scan count")
		}
		out[id] = n
	}
	return out, rows.Err()
}
