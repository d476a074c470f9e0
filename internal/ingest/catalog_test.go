package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogByID(t *testing.T) {
	ind, err := CatalogByID("gdp_usd")
	require.NoError(t, err)
	assert.Equal(t, GDP, ind.Type)
	assert.Equal(t, "worldbank", ind.Source)
	assert.Equal(t, "NY.GDP.MKTP.CD", ind.SourceCode)

	_, err = CatalogByID("bitcoin_price")
	assert.ErrorContains(t, err, "unknown indicator")
}

func TestSelectIndicators(t *testing.T) {
	all, err := SelectIndicators(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(Catalog))

	some, err := SelectIndicators([]string{"inflation_yoy", "usd_exchange_rate"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "inflation_yoy", some[0].ID)
	assert.Equal(t, "usd_exchange_rate", some[1].ID)

	_, err = SelectIndicators([]string{"nope"})
	assert.Error(t, err)
}

func TestIndicatorJobNames(t *testing.T) {
	ind := Indicator{ID: "gdp_usd"}
	assert.Equal(t, "ingest.gdp_usd", ind.JobName())
	assert.Equal(t, "backfill.gdp_usd", ind.BackfillJobName())
}

func TestIndicatorTypeCadence(t *testing.T) {
	assert.Equal(t, Daily, ExchangeRate.Cadence())
	assert.Equal(t, Monthly, Inflation.Cadence())
	assert.Equal(t, Monthly, GDP.Cadence())
	assert.Equal(t, Monthly, GDPPerCapita.Cadence())
	assert.Equal(t, Monthly, Unemployment.Cadence())
}

func TestIndicatorShouldRun(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	rate := Indicator{ID: "usd_exchange_rate", Type: ExchangeRate}
	assert.True(t, rate.ShouldRun(now, nil))

	yesterday := now.Add(-24 * time.Hour)
	assert.True(t, rate.ShouldRun(now, &yesterday))

	thisMorning := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	assert.False(t, rate.ShouldRun(now, &thisMorning))

	gdp := Indicator{ID: "gdp_usd", Type: GDP}
	lastMonth := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	assert.True(t, gdp.ShouldRun(now, &lastMonth))

	earlierThisMonth := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	assert.False(t, gdp.ShouldRun(now, &earlierThisMonth))
}
