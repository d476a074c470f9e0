package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/fetcher"
)

// DefaultWorldBankBaseURL is the fixed, versionless World Bank API endpoint.
const DefaultWorldBankBaseURL = "https://api.worldbank.org/v2"

// latestWindowYears bounds the date range of a latest-mode fetch. Annual
// indicators publish with up to a two-year lag, so a five-year window always
// contains the newest value without pulling the full history.
const latestWindowYears = 5

// WorldBank adapts the World Bank indicator API. Responses are two-element
// JSON arrays: pagination metadata followed by observation rows keyed by
// alpha-3 country codes.
type WorldBank struct {
	BaseURL string
}

func (s *WorldBank) Name() string { return "worldbank" }

// wbMeta is the first element of a World Bank response. Error documents come
// back as a one-element array whose meta carries a message list instead.
type wbMeta struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Message []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"message"`
}

// wbRow is one observation row. Value is a pointer: the API reports missing
// data as an explicit null.
type wbRow struct {
	CountryISO3 string `json:"countryiso3code"`
	Country     struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (s *WorldBank) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return DefaultWorldBankBaseURL
}

// Latest fetches the recent window for all countries and reduces to the
// most-recent observation per country.
func (s *WorldBank) Latest(ctx context.Context, f fetcher.Fetcher, sourceCode string) ([]Observation, error) {
	year := time.Now().UTC().Year()
	url := fmt.Sprintf("%s/country/all/indicator/%s?format=json&per_page=20000&date=%d:%d",
		s.baseURL(), sourceCode, year-latestWindowYears, year)

	rows, _, err := s.fetchPage(ctx, f, url)
	if err != nil {
		return nil, err
	}

	// Most-recent-by-effective-date wins per country; rows arrive newest
	// first but the reduction does not rely on that.
	latest := make(map[string]Observation)
	for _, obs := range normalizeRows(rows) {
		if prev, ok := latest[obs.CountryCode]; !ok || obs.Date > prev.Date {
			latest[obs.CountryCode] = obs
		}
	}

	out := make([]Observation, 0, len(latest))
	for _, obs := range latest {
		out = append(out, obs)
	}
	return out, nil
}

// Historical fetches one page of the full observation history, unreduced.
func (s *WorldBank) Historical(ctx context.Context, f fetcher.Fetcher, sourceCode string, page, perPage int) ([]Observation, int, error) {
	url := fmt.Sprintf("%s/country/all/indicator/%s?format=json&per_page=%d&page=%d",
		s.baseURL(), sourceCode, perPage, page)

	rows, pages, err := s.fetchPage(ctx, f, url)
	if err != nil {
		return nil, 0, err
	}
	return normalizeRows(rows), pages, nil
}

// fetchPage downloads and decodes one response document. A response that is
// not the expected [meta, rows] shape is fatal; a null rows element means the
// provider has no data and yields an empty slice.
func (s *WorldBank) fetchPage(ctx context.Context, f fetcher.Fetcher, url string) ([]wbRow, int, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, 0, eris.Wrap(err, "worldbank: download")
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, 0, eris.Wrap(err, "worldbank: read body")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, eris.Wrap(err, "worldbank: unrecognized response shape")
	}
	if len(raw) == 0 {
		return nil, 0, eris.New("worldbank: unrecognized response shape: empty document")
	}

	var meta wbMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, 0, eris.Wrap(err, "worldbank: unrecognized response shape: metadata")
	}
	if len(meta.Message) > 0 {
		return nil, 0, eris.Errorf("worldbank: provider error: %s", meta.Message[0].Value)
	}
	if len(raw) < 2 {
		return nil, 0, eris.New("worldbank: unrecognized response shape: missing observation element")
	}

	// "null" rows = no data for this request; not an error.
	var rows []wbRow
	if string(raw[1]) != "null" {
		if err := json.Unmarshal(raw[1], &rows); err != nil {
			return nil, 0, eris.Wrap(err, "worldbank: unrecognized response shape: observations")
		}
	}

	return rows, meta.Pages, nil
}

// normalizeRows maps provider rows to canonical observations, dropping null
// values and rows whose country cannot be mapped to an alpha-2 code.
func normalizeRows(rows []wbRow) []Observation {
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		a2, ok := Alpha2FromAlpha3(row.CountryISO3)
		if !ok {
			// Aggregates (WLD, EUU, income groups) land here.
			zap.L().Debug("worldbank: dropping unmappable country",
				zap.String("iso3", row.CountryISO3),
				zap.String("name", row.Country.Value),
			)
			continue
		}
		date, ok := effectiveDate(row.Date)
		if !ok {
			continue
		}
		out = append(out, Observation{
			CountryCode: a2,
			Value:       *row.Value,
			Date:        date,
		})
	}
	return out
}

// effectiveDate converts a provider period string to an effective calendar
// date. Annual indicators report bare years, mapped to year-end.
func effectiveDate(period string) (string, bool) {
	if len(period) == 4 {
		if _, err := time.Parse("2006", period); err != nil {
			return "", false
		}
		return period + "-12-31", true
	}
	if _, err := time.Parse("2006-01-02", period); err != nil {
		return "", false
	}
	return period, true
}
