// Package registry manages the country reference table that anchors
// referential integrity for stored observations.
package registry

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/macromap/econsync/internal/db"
)

// Country is one row of econ.countries.
type Country struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Region      string `json:"region,omitempty"`
	IncomeLevel string `json:"income_level,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Registry reads the country reference table.
type Registry struct {
	pool db.Pool
}

// New creates a Registry backed by the given connection pool.
func New(pool db.Pool) *Registry {
	return &Registry{pool: pool}
}

// Lookup returns the country with the given alpha-2 code.
func (r *Registry) Lookup(ctx context.Context, code string) (*Country, error) {
	var c Country
	var region, income, currency *string
	err := r.pool.QueryRow(ctx,
		`SELECT code, name, region, income_level, currency
		 FROM econ.countries WHERE code = $1`,
		code,
	).Scan(&c.Code, &c.Name, &region, &income, &currency)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: lookup %s", code)
	}
	if region != nil {
		c.Region = *region
	}
	if income != nil {
		c.IncomeLevel = *income
	}
	if currency != nil {
		c.Currency = *currency
	}
	return &c, nil
}

// List returns all countries ordered by code.
func (r *Registry) List(ctx context.Context) ([]Country, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, region, income_level, currency
		 FROM econ.countries ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "registry: list countries")
	}
	defer rows.Close()

	var out []Country
	for rows.Next() {
		var c Country
		var region, income, currency *string
		if err := rows.Scan(&c.Code, &c.Name, &region, &income, &currency); err != nil {
			return nil, eris.Wrap(err, "registry: scan country")
		}
		if region != nil {
			c.Region = *region
		}
		if income != nil {
			c.IncomeLevel = *income
		}
		if currency != nil {
			c.Currency = *currency
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of registered countries.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM econ.countries`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "registry: count countries")
	}
	return n, nil
}
