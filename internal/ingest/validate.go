package ingest

import (
	"math"
	"regexp"
	"time"

	"github.com/rotisserie/eris"

	"github.com/macromap/econsync/internal/ingest/source"
)

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidateObservation checks the structural validity of a candidate
// observation: canonical two-letter country code, finite numeric value, and
// strict calendar-date shape. Referential validity (country present in the
// registry) is checked by the upsert engine, which has store access.
func ValidateObservation(o source.Observation) error {
	if !countryCodeRe.MatchString(o.CountryCode) {
		return eris.Errorf("validate: invalid country code %q", o.CountryCode)
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return eris.Errorf("validate: non-finite value for %s@%s", o.CountryCode, o.Date)
	}
	parsed, err := time.Parse("2006-01-02", o.Date)
	if err != nil || parsed.Format("2006-01-02") != o.Date {
		return eris.Errorf("validate: invalid effective date %q", o.Date)
	}
	return nil
}
