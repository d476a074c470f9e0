package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macromap/econsync/internal/ingest/source"
)

var testFetchedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func expectCountryExists(mock pgxmock.PgxPoolIface, code string, exists bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(code).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectLatestVersion(mock pgxmock.PgxPoolIface, code, indicator, date string, version int, value float64) {
	mock.ExpectQuery("SELECT data_version, value FROM econ.indicator_values").
		WithArgs(code, indicator, date).
		WillReturnRows(pgxmock.NewRows([]string{"data_version", "value"}).AddRow(version, value))
}

func expectNoVersions(mock pgxmock.PgxPoolIface, code, indicator, date string) {
	mock.ExpectQuery("SELECT data_version, value FROM econ.indicator_values").
		WithArgs(code, indicator, date).
		WillReturnError(pgx.ErrNoRows)
}

func expectInsertValue(mock pgxmock.PgxPoolIface, code, indicator, date string, value float64, version int) {
	mock.ExpectExec("INSERT INTO econ.indicator_values").
		WithArgs(code, indicator, date, value, testFetchedAt, version).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestUpsert_FirstValueInsertsVersionOne(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectCountryExists(mock, "US", true)
	expectNoVersions(mock, "US", "inflation_yoy", "2024-12-31")
	expectInsertValue(mock, "US", "inflation_yoy", "2024-12-31", 3.2, 1)
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "inflation_yoy",
		[]source.Observation{{CountryCode: "US", Value: 3.2, Date: "2024-12-31"}},
		testFetchedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, &Result{Inserted: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ChangedValueOpensNewVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Provider restated 5.0 as 5.2: version 1 stays, version 2 is added.
	mock.ExpectBegin()
	expectCountryExists(mock, "DE", true)
	expectLatestVersion(mock, "DE", "inflation_yoy", "2024-12-31", 1, 5.0)
	expectInsertValue(mock, "DE", "inflation_yoy", "2024-12-31", 5.2, 2)
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "inflation_yoy",
		[]source.Observation{{CountryCode: "DE", Value: 5.2, Date: "2024-12-31"}},
		testFetchedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, &Result{Updated: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ToleranceBoundary(t *testing.T) {
	t.Run("difference equal to tolerance is a skip", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		expectCountryExists(mock, "FR", true)
		expectLatestVersion(mock, "FR", "gdp_usd", "2024-12-31", 3, 5.0)
		mock.ExpectCommit()

		res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
			[]source.Observation{{CountryCode: "FR", Value: 5.0001, Date: "2024-12-31"}},
			testFetchedAt,
		)
		require.NoError(t, err)
		assert.Equal(t, &Result{Skipped: 1}, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("difference beyond tolerance opens a new version", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		expectCountryExists(mock, "FR", true)
		expectLatestVersion(mock, "FR", "gdp_usd", "2024-12-31", 3, 5.0)
		expectInsertValue(mock, "FR", "gdp_usd", "2024-12-31", 5.0002, 4)
		mock.ExpectCommit()

		res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
			[]source.Observation{{CountryCode: "FR", Value: 5.0002, Date: "2024-12-31"}},
			testFetchedAt,
		)
		require.NoError(t, err)
		assert.Equal(t, &Result{Updated: 1}, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsert_UnknownCountrySkipped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectCountryExists(mock, "XK", false)
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
		[]source.Observation{{CountryCode: "XK", Value: 1.0, Date: "2024-12-31"}},
		testFetchedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, &Result{Skipped: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_StructuralErrorContinuesBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The malformed record joins the error list; the valid one still lands.
	mock.ExpectBegin()
	expectCountryExists(mock, "GB", true)
	expectNoVersions(mock, "GB", "gdp_usd", "2024-12-31")
	expectInsertValue(mock, "GB", "gdp_usd", "2024-12-31", 2.1, 1)
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
		[]source.Observation{
			{CountryCode: "USA", Value: 1.0, Date: "2024-12-31"},
			{CountryCode: "GB", Value: 2.1, Date: "2024-12-31"},
		},
		testFetchedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "USA")
	assert.Equal(t, StatusPartial, StatusFor(res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_StorageErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectCountryExists(mock, "US", true)
	mock.ExpectQuery("SELECT data_version, value FROM econ.indicator_values").
		WithArgs("US", "gdp_usd", "2024-12-31").
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
		[]source.Observation{{CountryCode: "US", Value: 1.0, Date: "2024-12-31"}},
		testFetchedAt,
	)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_InBatchDuplicateLastWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Second record for the same key sees the first record's uncommitted
	// insert as latest and versions on top of it.
	mock.ExpectBegin()
	expectCountryExists(mock, "JP", true)
	expectNoVersions(mock, "JP", "gdp_usd", "2024-12-31")
	expectInsertValue(mock, "JP", "gdp_usd", "2024-12-31", 4.0, 1)
	expectLatestVersion(mock, "JP", "gdp_usd", "2024-12-31", 1, 4.0)
	expectInsertValue(mock, "JP", "gdp_usd", "2024-12-31", 4.5, 2)
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd",
		[]source.Observation{
			{CountryCode: "JP", Value: 4.0, Date: "2024-12-31"},
			{CountryCode: "JP", Value: 4.5, Date: "2024-12-31"},
		},
		testFetchedAt,
	)
	require.NoError(t, err)
	assert.Equal(t, &Result{Inserted: 1, Updated: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_EmptyBatchCommitsClean(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	res, err := NewUpserter(mock).Upsert(context.Background(), "gdp_usd", nil, testFetchedAt)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Equal(t, StatusSuccess, StatusFor(res))
	assert.NoError(t, mock.ExpectationsWereMet())
}
