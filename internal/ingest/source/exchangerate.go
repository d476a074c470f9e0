package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/fetcher"
)

// DefaultRatesBaseURL is the fixed endpoint of the currency-rate feed.
const DefaultRatesBaseURL = "https://open.er-api.com/v6"

// ExchangeRate adapts the currency-rate feed: a single flat JSON document
// mapping currency codes to rates against a base currency.
type ExchangeRate struct {
	BaseURL string
}

func (s *ExchangeRate) Name() string { return "exchangerate" }

type ratesResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	Rates              map[string]float64 `json:"rates"`
}

func (s *ExchangeRate) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return DefaultRatesBaseURL
}

// Latest fetches the current rate table for the given base currency. Each
// rate is attributed to the currency's issuing country; currencies shared by
// several countries (EUR, XOF, XCD) have no single home and are dropped.
func (s *ExchangeRate) Latest(ctx context.Context, f fetcher.Fetcher, sourceCode string) ([]Observation, error) {
	url := fmt.Sprintf("%s/latest/%s", s.baseURL(), sourceCode)

	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "exchangerate: download")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[ratesResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "exchangerate: unrecognized response shape")
	}
	if resp.Result != "success" {
		return nil, eris.Errorf("exchangerate: unrecognized response shape: result %q", resp.Result)
	}
	if len(resp.Rates) == 0 {
		return nil, nil
	}

	date := time.Unix(resp.TimeLastUpdateUnix, 0).UTC().Format("2006-01-02")

	out := make([]Observation, 0, len(resp.Rates))
	for currency, value := range resp.Rates {
		country, ok := currencyCountry[currency]
		if !ok {
			zap.L().Debug("exchangerate: dropping unmappable currency",
				zap.String("currency", currency),
			)
			continue
		}
		out = append(out, Observation{
			CountryCode: country,
			Value:       value,
			Date:        date,
		})
	}
	return out, nil
}

// Historical returns the current rate table as a single page. The feed keeps
// no history, so backfill for exchange rates degenerates to one page.
func (s *ExchangeRate) Historical(ctx context.Context, f fetcher.Fetcher, sourceCode string, page, perPage int) ([]Observation, int, error) {
	if page > 1 {
		return nil, 1, nil
	}
	obs, err := s.Latest(ctx, f, sourceCode)
	if err != nil {
		return nil, 0, err
	}
	return obs, 1, nil
}

// CurrencyFor returns the currency issued by the given country, or "" when
// the country has no single-country currency (eurozone, CFA franc zone).
func CurrencyFor(countryCode string) string {
	return countryCurrency[countryCode]
}

var countryCurrency = func() map[string]string {
	m := make(map[string]string, len(currencyCountry))
	for currency, country := range currencyCountry {
		m[country] = currency
	}
	return m
}()

// currencyCountry attributes single-country currencies to their issuer.
// Multi-country currencies are deliberately absent.
var currencyCountry = map[string]string{
	"USD": "US", "GBP": "GB", "JPY": "JP", "CHF": "CH", "CAD": "CA",
	"AUD": "AU", "NZD": "NZ", "CNY": "CN", "INR": "IN", "BRL": "BR",
	"MXN": "MX", "KRW": "KR", "SEK": "SE", "NOK": "NO", "DKK": "DK",
	"PLN": "PL", "CZK": "CZ", "HUF": "HU", "RON": "RO", "BGN": "BG",
	"TRY": "TR", "ZAR": "ZA", "RUB": "RU", "UAH": "UA", "IDR": "ID",
	"MYR": "MY", "PHP": "PH", "THB": "TH", "VND": "VN", "SGD": "SG",
	"HKD": "HK", "TWD": "TW", "ILS": "IL", "SAR": "SA", "AED": "AE",
	"QAR": "QA", "KWD": "KW", "BHD": "BH", "OMR": "OM", "JOD": "JO",
	"EGP": "EG", "MAD": "MA", "TND": "TN", "DZD": "DZ", "NGN": "NG",
	"KES": "KE", "GHS": "GH", "TZS": "TZ", "UGX": "UG", "ETB": "ET",
	"ARS": "AR", "CLP": "CL", "COP": "CO", "PEN": "PE", "UYU": "UY",
	"BOB": "BO", "PYG": "PY", "VES": "VE", "GTQ": "GT", "CRC": "CR",
	"DOP": "DO", "JMD": "JM", "TTD": "TT", "ISK": "IS", "RSD": "RS",
	"MKD": "MK", "ALL": "AL", "BAM": "BA", "MDL": "MD", "GEL": "GE",
	"AMD": "AM", "AZN": "AZ", "KZT": "KZ", "UZS": "UZ", "KGS": "KG",
	"TJS": "TJ", "TMT": "TM", "MNT": "MN", "NPR": "NP", "PKR": "PK",
	"BDT": "BD", "LKR": "LK", "MMK": "MM", "KHR": "KH", "LAK": "LA",
	"IQD": "IQ", "IRR": "IR", "AFN": "AF", "LBP": "LB", "SYP": "SY",
	"YER": "YE", "BND": "BN", "FJD": "FJ", "PGK": "PG", "WST": "WS",
	"TOP": "TO", "VUV": "VU", "SBD": "SB", "MVR": "MV", "BTN": "BT",
	"MUR": "MU", "SCR": "SC", "MGA": "MG", "MWK": "MW", "ZMW": "ZM",
	"BWP": "BW", "NAD": "NA", "SZL": "SZ", "LSL": "LS", "MZN": "MZ",
	"AOA": "AO", "CDF": "CD", "RWF": "RW", "BIF": "BI", "DJF": "DJ",
	"SOS": "SO", "SDG": "SD", "SSP": "SS", "LYD": "LY", "MRU": "MR",
	"GMD": "GM", "GNF": "GN", "SLE": "SL", "LRD": "LR", "CVE": "CV",
	"STN": "ST", "ERN": "ER", "KMF": "KM", "GYD": "GY", "SRD": "SR",
	"BZD": "BZ", "HNL": "HN", "NIO": "NI", "PAB": "PA", "BSD": "BS",
	"BBD": "BB", "HTG": "HT", "CUP": "CU", "AWG": "AW", "ANG": "CW",
	"KYD": "KY", "BMD": "BM", "GIP": "GI", "FKP": "FK", "SHP": "SH",
}
