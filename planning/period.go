package planning

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range, the unit of capacity calculation
// =============================================================================

// Period is a value type with inclusive bounds. Capacity is ALWAYS
// computed for a period, never at a point in time.
//
// Examples:
//   - Calendar month: Jan 1 - Jan 31
//   - Quarter: Jan 1 - Mar 31
//   - Full year: Jan 1 - Dec 31
type Period struct {
	Start Date
	End   Date
	Label string
}

// NewPeriod builds an unlabeled period.
func NewPeriod(start, end Date) Period {
	return Period{Start: start, End: end}
}

// Validate rejects a period whose end precedes its start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every calendar day in the period, in order.
func (p Period) Days() []Date {
	var days []Date
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Length returns the number of calendar days in the period.
func (p Period) Length() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD GENERATOR
// =============================================================================

// PeriodKind selects the granularity of generated periods.
type PeriodKind string

const (
	PeriodMonth   PeriodKind = "month"
	PeriodQuarter PeriodKind = "quarter"
	PeriodYear    PeriodKind = "year"
)

// The organization's calendar is French; period labels follow suit.
var monthNames = [12]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// MonthName returns the localized name of a month.
func MonthName(m time.Month) string {
	return monthNames[int(m)-1]
}

// GeneratePeriods produces the labeled periods of a year for the given
// kind. Consecutive periods of the same kind never overlap and leave no
// gaps: month yields 12 calendar months, quarter yields 4 blocks of 3
// months, year yields the single Jan 1 - Dec 31 span.
func GeneratePeriods(kind PeriodKind, year int) ([]Period, error) {
	switch kind {
	case PeriodMonth:
		periods := make([]Period, 0, 12)
		for m := time.January; m <= time.December; m++ {
			periods = append(periods, Period{
				Start: StartOfMonth(year, m),
				End:   EndOfMonth(year, m),
				Label: fmt.Sprintf("%s %d", MonthName(m), year),
			})
		}
		return periods, nil

	case PeriodQuarter:
		periods := make([]Period, 0, 4)
		for q := 0; q < 4; q++ {
			first := time.Month(q*3 + 1)
			periods = append(periods, Period{
				Start: StartOfMonth(year, first),
				End:   EndOfMonth(year, first+2),
				Label: fmt.Sprintf("Q%d %d", q+1, year),
			})
		}
		return periods, nil

	case PeriodYear:
		return []Period{{
			Start: StartOfYear(year),
			End:   EndOfYear(year),
			Label: fmt.Sprintf("Année %d", year),
		}}, nil

	default:
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown period kind %q", kind)}
	}
}
