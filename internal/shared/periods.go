package shared

import (
	"errors"
	"time"
)

// PeriodLayout is the canonical billing period key, one calendar month.
const PeriodLayout = "2006-01"

// ErrInvalidPeriod indicates a billing period key that is not YYYY-MM.
var ErrInvalidPeriod = errors.New("billing period must be YYYY-MM")

// ParsePeriod validates and normalises a billing period key.
func ParsePeriod(raw string) (string, error) {
	t, err := time.Parse(PeriodLayout, raw)
	if err != nil {
		return "", ErrInvalidPeriod
	}
	return t.Format(PeriodLayout), nil
}

// PeriodOf returns the billing period containing the given time.
func PeriodOf(t time.Time) string {
	return t.Format(PeriodLayout)
}

// PreviousPeriod returns the month before the given period key. Callers must
// pass an already validated key.
func PreviousPeriod(period string) string {
	t, err := time.Parse(PeriodLayout, period)
	if err != nil {
		return period
	}
	return t.AddDate(0, -1, 0).Format(PeriodLayout)
}
