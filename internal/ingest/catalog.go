package ingest

import (
	"time"

	"github.com/rotisserie/eris"
)

// IndicatorType is the closed set of trackable metric kinds.
type IndicatorType string

const (
	Inflation    IndicatorType = "inflation"
	GDP          IndicatorType = "gdp"
	GDPPerCapita IndicatorType = "gdp_per_capita"
	Unemployment IndicatorType = "unemployment"
	ExchangeRate IndicatorType = "exchange_rate"
)

// Cadence describes how often an indicator should be synced.
type Cadence string

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
	Annual  Cadence = "annual"
)

// Cadence returns the sync cadence for an indicator type. Annual statistical
// series still get a monthly check because providers restate recent years.
func (t IndicatorType) Cadence() Cadence {
	switch t {
	case ExchangeRate:
		return Daily
	case Inflation, Unemployment:
		return Monthly
	case GDP, GDPPerCapita:
		return Monthly
	default:
		return Weekly
	}
}

// Indicator is one catalog entry describing a trackable metric.
type Indicator struct {
	ID         string        // stable identifier, also the values FK
	Type       IndicatorType // closed enumeration
	Source     string        // provider adapter name
	SourceCode string        // provider-specific series code
	Name       string
	Unit       string
}

// JobName returns the ledger job name for this indicator's incremental runs.
func (i Indicator) JobName() string { return "ingest." + i.ID }

// BackfillJobName returns the ledger job name for this indicator's backfills.
func (i Indicator) BackfillJobName() string { return "backfill." + i.ID }

// ShouldRun decides if this indicator is due for syncing given the current
// time and the time of the last successful run (nil if never synced).
func (i Indicator) ShouldRun(now time.Time, lastSync *time.Time) bool {
	switch i.Type.Cadence() {
	case Daily:
		return DailySchedule(now, lastSync)
	case Weekly:
		return WeeklySchedule(now, lastSync)
	case Monthly:
		return MonthlySchedule(now, lastSync)
	case Annual:
		return AnnualAfter(now, lastSync, time.July)
	default:
		return lastSync == nil
	}
}

// Catalog is the fixed indicator catalog, seeded into econ.indicators and
// extended only by adding entries here.
var Catalog = []Indicator{
	{
		ID:         "inflation_yoy",
		Type:       Inflation,
		Source:     "worldbank",
		SourceCode: "FP.CPI.TOTL.ZG",
		Name:       "Inflation, consumer prices (annual %)",
		Unit:       "%",
	},
	{
		ID:         "gdp_usd",
		Type:       GDP,
		Source:     "worldbank",
		SourceCode: "NY.GDP.MKTP.CD",
		Name:       "GDP (current US$)",
		Unit:       "USD",
	},
	{
		ID:         "gdp_per_capita_usd",
		Type:       GDPPerCapita,
		Source:     "worldbank",
		SourceCode: "NY.GDP.PCAP.CD",
		Name:       "GDP per capita (current US$)",
		Unit:       "USD",
	},
	{
		ID:         "unemployment_rate",
		Type:       Unemployment,
		Source:     "worldbank",
		SourceCode: "SL.UEM.TOTL.ZS",
		Name:       "Unemployment, total (% of labor force)",
		Unit:       "%",
	},
	{
		ID:         "usd_exchange_rate",
		Type:       ExchangeRate,
		Source:     "exchangerate",
		SourceCode: "USD",
		Name:       "Local currency units per USD",
		Unit:       "LCU/USD",
	},
}

// CatalogByID returns the catalog entry with the given identifier.
func CatalogByID(id string) (Indicator, error) {
	for _, ind := range Catalog {
		if ind.ID == id {
			return ind, nil
		}
	}
	return Indicator{}, eris.Errorf("catalog: unknown indicator %q", id)
}

// SelectIndicators returns catalog entries matching the given names, or the
// whole catalog when names is empty.
func SelectIndicators(names []string) ([]Indicator, error) {
	if len(names) == 0 {
		out := make([]Indicator, len(Catalog))
		copy(out, Catalog)
		return out, nil
	}
	out := make([]Indicator, 0, len(names))
	for _, name := range names {
		ind, err := CatalogByID(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, nil
}
