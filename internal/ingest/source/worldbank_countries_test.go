package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountries(t *testing.T) {
	body := `[
	  {"page": 1, "pages": 1, "total": 3},
	  [
	    {"id": "USA", "iso2Code": "US", "name": "United States",
	     "region": {"value": "North America"}, "incomeLevel": {"value": "High income"}},
	    {"id": "WLD", "iso2Code": "1W", "name": "World",
	     "region": {"value": "Aggregates"}, "incomeLevel": {"value": "Aggregates"}},
	    {"id": "XKX", "iso2Code": "XK", "name": "Kosovo",
	     "region": {"value": "Europe & Central Asia"}, "incomeLevel": {"value": "Upper middle income"}}
	  ]
	]`

	records, err := (&WorldBank{}).ParseCountries(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, CountryRecord{
		Alpha2:      "US",
		Name:        "United States",
		Region:      "North America",
		IncomeLevel: "High income",
	}, records[0])
	assert.Equal(t, "XK", records[1].Alpha2)
}

func TestParseCountries_DropsNonAlpha2(t *testing.T) {
	body := `[
	  {"page": 1, "pages": 1, "total": 1},
	  [
	    {"id": "CHI", "iso2Code": "JG", "name": "Channel Islands",
	     "region": {"value": "Europe & Central Asia"}, "incomeLevel": {"value": "High income"}},
	    {"id": "ZZZ", "iso2Code": "z9", "name": "Bogus",
	     "region": {"value": "Somewhere"}, "incomeLevel": {"value": "High income"}}
	  ]
	]`

	records, err := (&WorldBank{}).ParseCountries(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "JG", records[0].Alpha2)
}

func TestParseCountries_BadShapes(t *testing.T) {
	_, err := (&WorldBank{}).ParseCountries(strings.NewReader(`{"not": "an array"}`))
	assert.ErrorContains(t, err, "unrecognized country list shape")

	_, err = (&WorldBank{}).ParseCountries(strings.NewReader(`[{"page": 1}]`))
	assert.ErrorContains(t, err, "missing rows")

	_, err = (&WorldBank{}).ParseCountries(strings.NewReader(`[{"message": [{"id": "120", "value": "Invalid format"}]}]`))
	assert.ErrorContains(t, err, "provider error")
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "USD", CurrencyFor("US"))
	assert.Equal(t, "JPY", CurrencyFor("JP"))
	// Eurozone members have no single-country currency.
	assert.Equal(t, "", CurrencyFor("DE"))
	assert.Equal(t, "", CurrencyFor("FR"))
}
