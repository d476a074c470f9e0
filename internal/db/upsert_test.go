package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "econ.countries",
		Columns:      []string{"code", "name"},
		ConflictKeys: []string{"code"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "econ.countries",
		ConflictKeys: []string{"code"},
	}, [][]any{{"US", "United States"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "econ.countries",
		Columns: []string{"code", "name"},
	}, [][]any{{"US", "United States"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkInsertSkipConflicts_EmptyRows(t *testing.T) {
	n, err := BulkInsertSkipConflicts(nil, nil, UpsertConfig{
		Table:        "econ.indicator_values",
		Columns:      []string{"country_code", "indicator_id"},
		ConflictKeys: []string{"country_code", "indicator_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkInsertSkipConflicts_SQLShape(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"US", "gdp", "2020-12-31", 5.0},
		{"DE", "gdp", "2020-12-31", 3.1},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_econ_indicator_values"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_econ_indicator_values"}, []string{"country_code", "indicator_id", "effective_date", "value"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "econ"."indicator_values" .* ON CONFLICT .* DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkInsertSkipConflicts(context.Background(), mock, UpsertConfig{
		Table:        "econ.indicator_values",
		Columns:      []string{"country_code", "indicator_id", "effective_date", "value"},
		ConflictKeys: []string{"country_code", "indicator_id", "effective_date", "data_version"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"econ.indicator_values", `"econ"."indicator_values"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"code", "name", "region"})
	assert.Equal(t, `"code", "name", "region"`, result)
}
