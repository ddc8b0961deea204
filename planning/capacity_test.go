package planning_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/capacity-engine/planning"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func fullTimeContract(userID string) planning.WorkContract {
	return planning.DefaultContract(userID)
}

func partTimeContract(userID string, pct int) planning.WorkContract {
	c := planning.DefaultContract(userID)
	c.WorkingTimePercentage = pct
	c.Default = false
	return c
}

func weekJan6to10() planning.Period {
	// Mon Jan 6 through Fri Jan 10, 2025
	return period(date(2025, time.January, 6), date(2025, time.January, 10))
}

// =============================================================================
// THEORETICAL CAPACITY
// =============================================================================

func TestTheoreticalDays_FullTimeWeek(t *testing.T) {
	// GIVEN: Full-time contract (100%, Mon-Fri)
	// WHEN: Computing capacity over Mon Jan 6 - Fri Jan 10, 2025
	// THEN: Exactly 5.0 days

	calc := planning.CapacityCalculator{}
	got, err := calc.TheoreticalDays(fullTimeContract("u1"), weekJan6to10())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(5)), "got %s", got)
}

func TestTheoreticalDays_PartTime80(t *testing.T) {
	// GIVEN: 80% contract, Mon-Fri
	// WHEN: Computing capacity over the same week
	// THEN: Exactly 4.0 days, no float drift

	calc := planning.CapacityCalculator{}
	got, err := calc.TheoreticalDays(partTimeContract("u1", 80), weekJan6to10())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
}

func TestTheoreticalDays_SkipsNonWorkingWeekdays(t *testing.T) {
	// GIVEN: Contract working Mon/Wed/Fri only
	// WHEN: Computing over a full week including the weekend
	// THEN: Only the three working weekdays count

	c := fullTimeContract("u1")
	c.WorkingDays = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

	calc := planning.CapacityCalculator{}
	got, err := calc.TheoreticalDays(c, period(date(2025, time.January, 6), date(2025, time.January, 12)))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(3)), "got %s", got)
}

func TestTheoreticalDays_InvalidPeriod(t *testing.T) {
	calc := planning.CapacityCalculator{}
	_, err := calc.TheoreticalDays(fullTimeContract("u1"), period(date(2025, time.January, 10), date(2025, time.January, 6)))
	require.Error(t, err)
}

// =============================================================================
// DAILY CAPACITY WITH SCHEDULE OVERRIDES
// =============================================================================

func TestDailyCapacity_ScheduleOverride(t *testing.T) {
	// GIVEN: Full-time contract where Wednesday is a 3.5h half day
	// WHEN: Computing Wednesday's capacity
	// THEN: 3.5/7 = 0.5 days

	c := fullTimeContract("u1")
	c.Schedule = map[time.Weekday]planning.DaySchedule{
		time.Wednesday: {Hours: decimal.NewFromFloat(3.5), Working: true},
	}

	calc := planning.CapacityCalculator{}
	got := calc.DailyCapacity(c, time.Wednesday)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.5)), "got %s", got)

	// Other weekdays keep the plain percentage
	assert.True(t, calc.DailyCapacity(c, time.Monday).Equal(decimal.NewFromInt(1)))
}

func TestDailyCapacity_ScheduleNonWorking(t *testing.T) {
	// GIVEN: An override marking Friday as non-working
	// WHEN: Computing Friday's capacity
	// THEN: Zero, regardless of hours recorded on the override

	c := fullTimeContract("u1")
	c.Schedule = map[time.Weekday]planning.DaySchedule{
		time.Friday: {Hours: decimal.NewFromInt(7), Working: false},
	}

	calc := planning.CapacityCalculator{}
	assert.True(t, calc.DailyCapacity(c, time.Friday).IsZero())
}

func TestDailyCapacity_OverrideScaledByPercentage(t *testing.T) {
	// GIVEN: 50% contract with a 7h Monday override
	// WHEN: Computing Monday's capacity
	// THEN: 7/7 * 0.5 = 0.5 days

	c := partTimeContract("u1", 50)
	c.Schedule = map[time.Weekday]planning.DaySchedule{
		time.Monday: {Hours: decimal.NewFromInt(7), Working: true},
	}

	calc := planning.CapacityCalculator{}
	got := calc.DailyCapacity(c, time.Monday)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.5)), "got %s", got)
}

// =============================================================================
// DAILY SERIES
// =============================================================================

func TestDailySeries_CoversEveryCalendarDay(t *testing.T) {
	// GIVEN: Full-time contract over one week including the weekend
	// WHEN: Building the daily series
	// THEN: One entry per calendar day, zero on Saturday and Sunday

	calc := planning.CapacityCalculator{}
	series, err := calc.DailySeries(fullTimeContract("u1"), period(date(2025, time.January, 6), date(2025, time.January, 12)))
	require.NoError(t, err)
	require.Len(t, series, 7)

	assert.True(t, series[0].Days.Equal(decimal.NewFromInt(1))) // Monday
	assert.True(t, series[5].Days.IsZero())                     // Saturday
	assert.True(t, series[6].Days.IsZero())                     // Sunday
}

// =============================================================================
// MONOTONICITY
// =============================================================================

func TestTheoreticalDays_NonDecreasingAsPeriodGrows(t *testing.T) {
	// GIVEN: A 60% contract with a half-day Wednesday and a non-working
	//        Friday override
	// WHEN: Extending the period one calendar day at a time across nine
	//       weeks, weekends and overrides included
	// THEN: The running total never decreases

	c := partTimeContract("u1", 60)
	c.Schedule = map[time.Weekday]planning.DaySchedule{
		time.Wednesday: {Hours: decimal.NewFromFloat(3.5), Working: true},
		time.Friday:    {Hours: decimal.NewFromInt(7), Working: false},
	}

	calc := planning.CapacityCalculator{}
	start := date(2025, time.January, 1)
	prev := decimal.Zero
	for i := 0; i < 63; i++ {
		got, err := calc.TheoreticalDays(c, period(start, start.AddDays(i)))
		require.NoError(t, err)
		require.True(t, got.GreaterThanOrEqual(prev),
			"total shrank from %s to %s when extending to day %d", prev, got, i)
		prev = got
	}
}
