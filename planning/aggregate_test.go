package planning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/capacity-engine/planning"
	"github.com/warp/capacity-engine/planning/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type capacityFixture struct {
	svc *planning.CapacityService
	mem *store.Memory
}

func newCapacityFixture() capacityFixture {
	mem := store.NewMemory()
	resolver := &planning.ContractResolver{Contracts: mem.Contracts}
	svc := planning.NewCapacityService(resolver, mem.Holidays, mem.Leaves, mem.Allocations, mem.Snapshots, nil)
	return capacityFixture{svc: svc, mem: mem}
}

func (f capacityFixture) addApprovedLeave(t *testing.T, userID string, start, end planning.Date) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.mem.Leaves.Create(context.Background(), &planning.Leave{
		ID:        "leave-" + start.String(),
		UserID:    userID,
		Type:      planning.LeavePaid,
		StartDate: start,
		EndDate:   end,
		Days:      decimal.NewFromInt(int64(planning.DaysBetween(start, end) + 1)),
		Status:    planning.LeaveApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f capacityFixture) addAllocation(t *testing.T, userID, projectID string, estimated decimal.Decimal, start, end planning.Date) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.mem.Allocations.Create(context.Background(), &planning.ResourceAllocation{
		ID:                   "alloc-" + projectID + "-" + start.String(),
		UserID:               userID,
		ProjectID:            projectID,
		AllocationPercentage: 100,
		StartDate:            start,
		EndDate:              end,
		EstimatedDays:        estimated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}))
}

func eq(t *testing.T, want float64, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromFloat(want)), "%s: want %v, got %s", label, want, got)
}

// =============================================================================
// CAPACITY AGGREGATION
// =============================================================================

func TestCalculateUserCapacity_FullTimeCleanWeek(t *testing.T) {
	// GIVEN: Full-time default contract, no holidays, leaves, allocations
	// WHEN: Computing over Mon Jan 6 - Fri Jan 10, 2025
	// THEN: theoretical = available = remaining = 5; underutilization alert

	f := newCapacityFixture()
	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)

	eq(t, 5, snap.TheoreticalDays, "theoretical")
	eq(t, 0, snap.HolidayDays, "holidays")
	eq(t, 0, snap.LeaveDays, "leave")
	eq(t, 5, snap.AvailableDays, "available")
	eq(t, 0, snap.PlannedDays, "planned")
	eq(t, 5, snap.RemainingDays, "remaining")
	eq(t, 0, snap.OverallocationDays, "overallocation")
	assert.Len(t, snap.DailySeries, 5)
	assert.NotEmpty(t, snap.ID)

	// Nothing planned: everything remains, which is > 50% of theoretical
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, planning.AlertUnderutilization, snap.Alerts[0].Type)
	assert.Equal(t, planning.SeverityMedium, snap.Alerts[0].Severity)
}

func TestCalculateUserCapacity_ApprovedLeaveReducesAvailability(t *testing.T) {
	// GIVEN: Approved leave Wed Jan 8 - Thu Jan 9
	// WHEN: Computing over the same week
	// THEN: leave = 2, available = 3

	f := newCapacityFixture()
	f.addApprovedLeave(t, "u1", date(2025, time.January, 8), date(2025, time.January, 9))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)

	eq(t, 2, snap.LeaveDays, "leave")
	eq(t, 3, snap.AvailableDays, "available")
}

func TestCalculateUserCapacity_LeaveClippedToPeriod(t *testing.T) {
	// GIVEN: Approved leave spilling over both period bounds
	// WHEN: Computing over the week
	// THEN: Only the in-period days count

	f := newCapacityFixture()
	f.addApprovedLeave(t, "u1", date(2025, time.January, 2), date(2025, time.January, 7))
	f.addApprovedLeave(t, "u1", date(2025, time.January, 10), date(2025, time.January, 14))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)

	// Jan 6-7 from the first leave, Jan 10 from the second
	eq(t, 3, snap.LeaveDays, "leave")
}

func TestCalculateUserCapacity_HolidaysCounted(t *testing.T) {
	// GIVEN: One non-working holiday in the period and one worked one
	// WHEN: Computing
	// THEN: Only the non-working holiday reduces availability

	f := newCapacityFixture()
	ctx := context.Background()
	require.NoError(t, f.mem.Holidays.Create(ctx, &planning.Holiday{
		ID: "h1", Date: date(2025, time.January, 6), Name: "Epiphanie", WorkingDay: false,
	}))
	require.NoError(t, f.mem.Holidays.Create(ctx, &planning.Holiday{
		ID: "h2", Date: date(2025, time.January, 7), Name: "Journée travaillée", WorkingDay: true,
	}))

	snap, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)

	eq(t, 1, snap.HolidayDays, "holidays")
	eq(t, 4, snap.AvailableDays, "available")
}

func TestCalculateUserCapacity_AvailableNeverNegative(t *testing.T) {
	// GIVEN: Leave covering the entire week plus a holiday
	// WHEN: Computing
	// THEN: available floors at zero

	f := newCapacityFixture()
	f.addApprovedLeave(t, "u1", date(2025, time.January, 6), date(2025, time.January, 10))
	require.NoError(t, f.mem.Holidays.Create(context.Background(), &planning.Holiday{
		ID: "h1", Date: date(2025, time.January, 6), Name: "Férié", WorkingDay: false,
	}))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)
	assert.True(t, snap.AvailableDays.IsZero())
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlerts_OverallocationHigh(t *testing.T) {
	// GIVEN: 5 available days and 5.5 planned (overrun 0.5 <= 20% of 5)
	// WHEN: Computing
	// THEN: OVERALLOCATION at HIGH severity, remaining goes negative

	f := newCapacityFixture()
	f.addAllocation(t, "u1", "proj-1", decimal.NewFromFloat(5.5),
		date(2025, time.January, 6), date(2025, time.January, 10))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)

	eq(t, -0.5, snap.RemainingDays, "remaining")
	eq(t, 0.5, snap.OverallocationDays, "overallocation")

	require.Len(t, snap.Alerts, 1)
	alert := snap.Alerts[0]
	assert.Equal(t, planning.AlertOverallocation, alert.Type)
	assert.Equal(t, planning.SeverityHigh, alert.Severity)
	assert.Contains(t, alert.Message, "0.5")
	assert.Equal(t, []string{"proj-1"}, alert.AffectedProjects)
	assert.NotEmpty(t, alert.SuggestedActions)
}

func TestAlerts_OverallocationCritical(t *testing.T) {
	// GIVEN: 5 available days and 7 planned (overrun 2 > 20% of 5)
	// WHEN: Computing
	// THEN: CRITICAL severity, both projects named

	f := newCapacityFixture()
	f.addAllocation(t, "u1", "proj-1", decimal.NewFromInt(4),
		date(2025, time.January, 6), date(2025, time.January, 10))
	f.addAllocation(t, "u1", "proj-2", decimal.NewFromInt(3),
		date(2025, time.January, 6), date(2025, time.January, 10))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)

	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, planning.SeverityCritical, snap.Alerts[0].Severity)
	assert.ElementsMatch(t, []string{"proj-1", "proj-2"}, snap.Alerts[0].AffectedProjects)
}

func TestAlerts_NoneWhenWellPlanned(t *testing.T) {
	// GIVEN: 4 of 5 days planned (remaining 1 <= 50% of 5, no overrun)
	// WHEN: Computing
	// THEN: No alerts at all

	f := newCapacityFixture()
	f.addAllocation(t, "u1", "proj-1", decimal.NewFromInt(4),
		date(2025, time.January, 6), date(2025, time.January, 10))

	snap, err := f.svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)
	assert.Empty(t, snap.Alerts)
}

// =============================================================================
// SNAPSHOT CACHE
// =============================================================================

func TestGetCachedCapacity_ServesFreshSnapshot(t *testing.T) {
	// GIVEN: A capacity computation just ran
	// WHEN: Asking for the cached result for the exact same period
	// THEN: The stored snapshot comes back, no recomputation

	f := newCapacityFixture()
	ctx := context.Background()

	computed, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)

	cached, err := f.svc.GetCachedCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, computed.ID, cached.ID)
}

func TestGetCachedCapacity_ExactPeriodMatchOnly(t *testing.T) {
	// GIVEN: A snapshot for Jan 6-10
	// WHEN: Asking for Jan 6-11
	// THEN: Cache miss (nil, nil)

	f := newCapacityFixture()
	ctx := context.Background()
	_, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)

	cached, err := f.svc.GetCachedCapacity(ctx, "u1",
		period(date(2025, time.January, 6), date(2025, time.January, 11)))
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestGetCachedCapacity_StaleSnapshotIgnored(t *testing.T) {
	// GIVEN: A snapshot older than the TTL
	// WHEN: Asking for the cached result
	// THEN: Cache miss

	f := newCapacityFixture()
	ctx := context.Background()

	stale := planning.UserCapacitySnapshot{
		ID:           "old",
		UserID:       "u1",
		Period:       weekJan6to10(),
		CalculatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, f.mem.Snapshots.Append(ctx, stale))

	cached, err := f.svc.GetCachedCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)
	assert.Nil(t, cached)
}

// failingSnapshots rejects every append.
type failingSnapshots struct {
	planning.SnapshotCache
}

func (failingSnapshots) Append(context.Context, planning.UserCapacitySnapshot) error {
	return errors.New("disk full")
}

func TestCalculateUserCapacity_SnapshotWriteFailureIsSwallowed(t *testing.T) {
	// GIVEN: A snapshot cache that always fails to persist
	// WHEN: Computing capacity
	// THEN: The result still comes back without error

	mem := store.NewMemory()
	resolver := &planning.ContractResolver{Contracts: mem.Contracts}
	svc := planning.NewCapacityService(resolver, mem.Holidays, mem.Leaves, mem.Allocations,
		failingSnapshots{SnapshotCache: mem.Snapshots}, nil)

	snap, err := svc.CalculateUserCapacity(context.Background(), "u1", weekJan6to10())
	require.NoError(t, err)
	eq(t, 5, snap.TheoreticalDays, "theoretical")
}

func TestSnapshotHistory_NewestFirst(t *testing.T) {
	f := newCapacityFixture()
	ctx := context.Background()

	first, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)
	second, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)

	history, err := f.svc.SnapshotHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestCalculateUserCapacity_RemainingIdentity(t *testing.T) {
	// GIVEN: A week mixing a holiday, an approved leave and two
	//        allocations
	// WHEN: Computing
	// THEN: remaining equals available minus planned, and available
	//       equals theoretical minus holidays minus leave

	f := newCapacityFixture()
	ctx := context.Background()
	require.NoError(t, f.mem.Holidays.Create(ctx, &planning.Holiday{
		ID: "h1", Date: date(2025, time.January, 6), Name: "Férié", WorkingDay: false,
	}))
	f.addApprovedLeave(t, "u1", date(2025, time.January, 9), date(2025, time.January, 10))
	f.addAllocation(t, "u1", "proj-1", decimal.NewFromFloat(1.5), date(2025, time.January, 6), date(2025, time.January, 10))
	f.addAllocation(t, "u1", "proj-2", decimal.NewFromInt(2), date(2025, time.January, 6), date(2025, time.January, 10))

	snap, err := f.svc.CalculateUserCapacity(ctx, "u1", weekJan6to10())
	require.NoError(t, err)

	wantAvailable := snap.TheoreticalDays.Sub(snap.HolidayDays).Sub(snap.LeaveDays)
	assert.True(t, snap.AvailableDays.Equal(wantAvailable),
		"available %s, want %s", snap.AvailableDays, wantAvailable)

	wantRemaining := snap.AvailableDays.Sub(snap.PlannedDays)
	assert.True(t, snap.RemainingDays.Equal(wantRemaining),
		"remaining %s, want %s", snap.RemainingDays, wantRemaining)

	eq(t, 2, snap.AvailableDays, "available")
	eq(t, -1.5, snap.RemainingDays, "remaining")
}
