package registry

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRegistry_Lookup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	region := "North America"
	income := "High income"
	currency := "USD"
	mock.ExpectQuery("SELECT code, name, region, income_level, currency").
		WithArgs("US").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "region", "income_level", "currency"}).
			AddRow("US", "United States", &region, &income, &currency))

	c, err := New(mock).Lookup(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, &Country{
		Code:        "US",
		Name:        "United States",
		Region:      "North America",
		IncomeLevel: "High income",
		Currency:    "USD",
	}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_ListHandlesNulls(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	region := "Europe & Central Asia"
	mock.ExpectQuery("SELECT code, name, region, income_level, currency").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "region", "income_level", "currency"}).
			AddRow("DE", "Germany", &region, nil, nil))

	countries, err := New(mock).List(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "DE", countries[0].Code)
	assert.Equal(t, "", countries[0].Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(217))

	n, err := New(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 217, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
