package ingest

import (
	"context"
	"time"

	"github.com/macromap/econsync/internal/db"
)

// SeedCatalog upserts the compiled-in indicator catalog into econ.indicators.
// Run after migration so observation rows always have their catalog FK.
func SeedCatalog(ctx context.Context, pool db.Pool) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(Catalog))
	for _, ind := range Catalog {
		rows = append(rows, []any{ind.ID, string(ind.Type), ind.Source, ind.SourceCode, ind.Name, ind.Unit, now})
	}
	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "econ.indicators",
		Columns:      []string{"id", "type", "source", "source_code", "name", "unit", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
}
