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

func newAllocationService() (*planning.AllocationService, *store.Memory) {
	mem := store.NewMemory()
	resolver := &planning.ContractResolver{Contracts: mem.Contracts}
	return planning.NewAllocationService(mem.Allocations, resolver, nil), mem
}

func allocationInput(userID, projectID string, pct int, start, end planning.Date) planning.CreateAllocationInput {
	return planning.CreateAllocationInput{
		UserID:               userID,
		ProjectID:            projectID,
		AllocationPercentage: pct,
		StartDate:            start,
		EndDate:              end,
	}
}

// =============================================================================
// ESTIMATED DAYS
// =============================================================================

func TestCreateAllocation_EstimatesFromContract(t *testing.T) {
	// GIVEN: Full-time user (default contract), Mon Jan 6 - Fri Jan 10
	// WHEN: Allocating 50% to a project
	// THEN: Estimated days = 5 * 0.5 = 2.5

	svc, _ := newAllocationService()
	ctx := context.Background()

	alloc, err := svc.Create(ctx, allocationInput("u1", "proj-1", 50,
		date(2025, time.January, 6), date(2025, time.January, 10)))
	require.NoError(t, err)

	assert.True(t, alloc.EstimatedDays.Equal(decimal.NewFromFloat(2.5)), "got %s", alloc.EstimatedDays)
	assert.NotEmpty(t, alloc.ID)
}

func TestCreateAllocation_PartTimeContract(t *testing.T) {
	// GIVEN: 80% contract, full week, 100% allocation
	// WHEN: Creating the allocation
	// THEN: Estimated days = 4.0

	svc, mem := newAllocationService()
	ctx := context.Background()
	require.NoError(t, mem.Contracts.Create(ctx, contract("c1", "u1", 80, date(2024, time.January, 1), nil)))

	alloc, err := svc.Create(ctx, allocationInput("u1", "proj-1", 100,
		date(2025, time.January, 6), date(2025, time.January, 10)))
	require.NoError(t, err)
	assert.True(t, alloc.EstimatedDays.Equal(decimal.NewFromInt(4)), "got %s", alloc.EstimatedDays)
}

func TestUpdateAllocation_RefreshesEstimate(t *testing.T) {
	// GIVEN: A 50% allocation over one week
	// WHEN: Raising it to 100%
	// THEN: The estimate doubles

	svc, _ := newAllocationService()
	ctx := context.Background()

	alloc, err := svc.Create(ctx, allocationInput("u1", "proj-1", 50,
		date(2025, time.January, 6), date(2025, time.January, 10)))
	require.NoError(t, err)

	full := 100
	updated, err := svc.Update(ctx, alloc.ID, planning.UpdateAllocationInput{AllocationPercentage: &full})
	require.NoError(t, err)
	assert.True(t, updated.EstimatedDays.Equal(decimal.NewFromInt(5)), "got %s", updated.EstimatedDays)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCreateAllocation_Validation(t *testing.T) {
	svc, _ := newAllocationService()
	ctx := context.Background()
	week := allocationInput("u1", "proj-1", 50, date(2025, time.January, 6), date(2025, time.January, 10))

	missing := week
	missing.UserID = ""
	_, err := svc.Create(ctx, missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrValidation))

	noProject := week
	noProject.ProjectID = ""
	_, err = svc.Create(ctx, noProject)
	assert.Error(t, err)

	zeroPct := week
	zeroPct.AllocationPercentage = 0
	_, err = svc.Create(ctx, zeroPct)
	assert.Error(t, err)

	overPct := week
	overPct.AllocationPercentage = 120
	_, err = svc.Create(ctx, overPct)
	assert.Error(t, err)

	inverted := week
	inverted.StartDate, inverted.EndDate = inverted.EndDate, inverted.StartDate
	_, err = svc.Create(ctx, inverted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrInvalidPeriod))
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestAllocation_Lookups(t *testing.T) {
	svc, _ := newAllocationService()
	ctx := context.Background()

	a1, err := svc.Create(ctx, allocationInput("u1", "proj-1", 40,
		date(2025, time.January, 6), date(2025, time.January, 10)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, allocationInput("u1", "proj-2", 30,
		date(2025, time.January, 13), date(2025, time.January, 17)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, allocationInput("u2", "proj-1", 100,
		date(2025, time.January, 6), date(2025, time.January, 10)))
	require.NoError(t, err)

	byUser, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byProject, err := svc.ListByProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	got, err := svc.Get(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", got.ProjectID)

	_, err = svc.Get(ctx, "nope")
	require.Error(t, err)
	assert.True(t, planning.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, a1.ID))
	byUser, err = svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}
