package ledger

import (
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
)

const yearMonthLayout = "2006-01"

// YearMonth identifies one reconciliation period. Ledger fetches, record
// queries and worksheet views are all scoped to a clinic month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a "YYYY-MM" string
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil {
		return YearMonth{}, shared.NewValidationError("month", fmt.Sprintf("must be in YYYY-MM format, got %q", s))
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// YearMonthOf returns the period containing the given time
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// String returns the "YYYY-MM" representation
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Start returns the first instant of the period (UTC)
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following period (exclusive bound)
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the period
func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && t.Month() == ym.Month
}

// IsZero reports whether the period is unset
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}
