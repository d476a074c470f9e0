// Package source adapts external statistical providers to a normalized
// observation stream.
package source

import (
	"context"

	"github.com/macromap/econsync/internal/fetcher"
)

// Observation is a candidate observation: a normalized (country, value,
// effective date) triple produced by an adapter, not yet validated or
// persisted.
type Observation struct {
	CountryCode string // ISO-3166 alpha-2
	Value       float64
	Date        string // effective date, YYYY-MM-DD
}

// Source defines the interface each external provider adapter must implement.
//
// Adapters normalize the provider's country identifier scheme to canonical
// alpha-2 codes, drop observations whose country cannot be mapped, and drop
// observations with a null value. Adapters perform network I/O only; they
// never touch stored state.
type Source interface {
	// Name returns the unique identifier for this provider (e.g., "worldbank").
	Name() string

	// Latest fetches current observations for one indicator source code and
	// reduces them to at most one observation per country, keeping the
	// most recent by effective date.
	//
	// A structurally unrecognized provider response is an error; a provider
	// that legitimately has no data returns an empty slice and nil error.
	Latest(ctx context.Context, f fetcher.Fetcher, sourceCode string) ([]Observation, error)

	// Historical fetches one page of the full unreduced observation set.
	// Returns the page's observations and the total page count so callers
	// can drive a pagination loop.
	Historical(ctx context.Context, f fetcher.Fetcher, sourceCode string, page, perPage int) ([]Observation, int, error)
}
