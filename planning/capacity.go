/*
capacity.go - Theoretical capacity calculation

PURPOSE:
  Converts a contract and a period into day-equivalent working capacity.
  Every calendar day in the period contributes its daily capacity; days
  outside the contract's working pattern contribute zero.

DAILY CAPACITY RULE:
  - Weekday not in contract.WorkingDays          -> 0
  - Schedule override for the weekday, not working -> 0
  - Schedule override with hours H               -> (H / 7) * (pct / 100)
    (7 is the reference full-day hour baseline)
  - No override for the weekday                  -> pct / 100
    (one day-equivalent at full time)

PRECISION:
  All arithmetic is decimal.Decimal. Iteration is linear in period
  length and behaves for multi-year ranges.
*/
package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// FullDayHours is the reference hour volume of one full working day.
var FullDayHours = decimal.NewFromInt(7)

var oneHundred = decimal.NewFromInt(100)

// DayCapacity is one entry of a per-day capacity series.
type DayCapacity struct {
	Date Date
	Days decimal.Decimal
}

// CapacityCalculator computes day-equivalent capacity from contracts.
// Stateless; the zero value is ready to use.
type CapacityCalculator struct{}

// DailyCapacity returns the day-equivalent a contract yields on the
// given weekday, ignoring whether the weekday is worked at all (callers
// filter on WorksOn first).
func (CapacityCalculator) DailyCapacity(c WorkContract, wd time.Weekday) decimal.Decimal {
	pct := decimal.NewFromInt(int64(c.WorkingTimePercentage)).Div(oneHundred)

	if sched, ok := c.Schedule[wd]; ok {
		if !sched.Working {
			return decimal.Zero
		}
		return sched.Hours.Div(FullDayHours).Mul(pct)
	}

	// No override: one day-equivalent scaled by working time.
	return pct
}

// TheoreticalDays sums daily capacity over every calendar day of the
// period, skipping weekdays outside the contract's working pattern.
func (calc CapacityCalculator) TheoreticalDays(c WorkContract, p Period) (decimal.Decimal, error) {
	if err := p.Validate(); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		if !c.WorksOn(d.Weekday()) {
			continue
		}
		total = total.Add(calc.DailyCapacity(c, d.Weekday()))
	}
	return total, nil
}

// DailySeries returns one entry per calendar day in the period, zero on
// non-working days. Used for charting.
func (calc CapacityCalculator) DailySeries(c WorkContract, p Period) ([]DayCapacity, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	series := make([]DayCapacity, 0, p.Length())
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days := decimal.Zero
		if c.WorksOn(d.Weekday()) {
			days = calc.DailyCapacity(c, d.Weekday())
		}
		series = append(series, DayCapacity{Date: d, Days: days})
	}
	return series, nil
}
