package source

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CountryRecord is one reference-data row from the provider's country list.
type CountryRecord struct {
	Alpha2      string
	Name        string
	Region      string
	IncomeLevel string
}

// wbCountry is one row of the /country endpoint. Aggregates (regions, income
// groups) share the endpoint with real countries and are tagged by region.
type wbCountry struct {
	ID       string `json:"id"`
	Iso2Code string `json:"iso2Code"`
	Name     string `json:"name"`
	Region   struct {
		Value string `json:"value"`
	} `json:"region"`
	IncomeLevel struct {
		Value string `json:"value"`
	} `json:"incomeLevel"`
}

// CountriesURL returns the provider URL for the full country list. Exposed so
// callers can key conditional-fetch state on it.
func (s *WorldBank) CountriesURL() string {
	return fmt.Sprintf("%s/country?format=json&per_page=400", s.baseURL())
}

// ParseCountries decodes a country-list document, dropping aggregate rows and
// rows without a usable alpha-2 code.
func (s *WorldBank) ParseCountries(body io.Reader) ([]CountryRecord, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "worldbank: read country list")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "worldbank: unrecognized country list shape")
	}

	var meta wbMeta
	if len(raw) > 0 {
		if err := json.Unmarshal(raw[0], &meta); err != nil {
			return nil, eris.Wrap(err, "worldbank: unrecognized country list shape: metadata")
		}
	}
	if len(meta.Message) > 0 {
		return nil, eris.Errorf("worldbank: provider error: %s", meta.Message[0].Value)
	}
	if len(raw) < 2 {
		return nil, eris.New("worldbank: unrecognized country list shape: missing rows")
	}

	var rows []wbCountry
	if err := json.Unmarshal(raw[1], &rows); err != nil {
		return nil, eris.Wrap(err, "worldbank: unrecognized country list shape: rows")
	}

	out := make([]CountryRecord, 0, len(rows))
	for _, row := range rows {
		if row.Region.Value == "" || row.Region.Value == "Aggregates" {
			continue
		}
		if !isAlpha2(row.Iso2Code) {
			zap.L().Debug("worldbank: dropping country with unusable code",
				zap.String("iso2", row.Iso2Code),
				zap.String("name", row.Name),
			)
			continue
		}
		out = append(out, CountryRecord{
			Alpha2:      row.Iso2Code,
			Name:        row.Name,
			Region:      row.Region.Value,
			IncomeLevel: row.IncomeLevel.Value,
		})
	}
	return out, nil
}

func isAlpha2(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
