package planning_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
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

func newLeaveService() (*planning.LeaveService, *store.Memory) {
	mem := store.NewMemory()
	return planning.NewLeaveService(mem.Leaves, nil), mem
}

func leaveInput(userID string, start, end planning.Date) planning.CreateLeaveInput {
	return planning.CreateLeaveInput{
		UserID:    userID,
		Type:      planning.LeavePaid,
		StartDate: start,
		EndDate:   end,
		Days:      decimal.NewFromInt(int64(planning.DaysBetween(start, end) + 1)),
	}
}

func approvedLeave(t *testing.T, svc *planning.LeaveService, userID string, start, end planning.Date) *planning.Leave {
	t.Helper()
	ctx := context.Background()
	leave, err := svc.Create(ctx, leaveInput(userID, start, end))
	require.NoError(t, err)
	leave, err = svc.Approve(ctx, leave.ID, "mgr-1")
	require.NoError(t, err)
	return leave
}

// =============================================================================
// OVERLAP DETECTION
// =============================================================================

func TestRangesOverlap(t *testing.T) {
	feb := func(d int) planning.Date { return date(2025, time.February, d) }

	// Partially overlapping ranges
	assert.True(t, planning.RangesOverlap(feb(1), feb(5), feb(4), feb(10)))
	// Symmetric
	assert.True(t, planning.RangesOverlap(feb(4), feb(10), feb(1), feb(5)))
	// Touching endpoints count as overlap (inclusive bounds)
	assert.True(t, planning.RangesOverlap(feb(1), feb(5), feb(5), feb(10)))
	// Containment
	assert.True(t, planning.RangesOverlap(feb(1), feb(28), feb(10), feb(12)))
	// Disjoint
	assert.False(t, planning.RangesOverlap(feb(1), feb(5), feb(6), feb(10)))
}

func TestCreate_RejectsOverlapWithApprovedLeave(t *testing.T) {
	// GIVEN: An approved leave Feb 1-5
	// WHEN: Requesting Feb 4-10 for the same user
	// THEN: OverlapError

	svc, _ := newLeaveService()
	ctx := context.Background()
	approvedLeave(t, svc, "u1", date(2025, time.February, 1), date(2025, time.February, 5))

	_, err := svc.Create(ctx, leaveInput("u1", date(2025, time.February, 4), date(2025, time.February, 10)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrLeaveOverlap))
	assert.True(t, planning.IsClientError(err))

	// A different user is unaffected
	_, err = svc.Create(ctx, leaveInput("u2", date(2025, time.February, 4), date(2025, time.February, 10)))
	assert.NoError(t, err)
}

func TestCreate_PendingLeavesDoNotBlock(t *testing.T) {
	// GIVEN: A pending (not approved) leave Feb 1-5
	// WHEN: Requesting an overlapping range
	// THEN: Allowed; only APPROVED leaves are blocking

	svc, _ := newLeaveService()
	ctx := context.Background()
	_, err := svc.Create(ctx, leaveInput("u1", date(2025, time.February, 1), date(2025, time.February, 5)))
	require.NoError(t, err)

	_, err = svc.Create(ctx, leaveInput("u1", date(2025, time.February, 3), date(2025, time.February, 8)))
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newLeaveService()
	ctx := context.Background()

	_, err := svc.Create(ctx, leaveInput("", date(2025, time.March, 1), date(2025, time.March, 2)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrValidation))

	_, err = svc.Create(ctx, leaveInput("u1", date(2025, time.March, 5), date(2025, time.March, 1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrInvalidPeriod))
}

// =============================================================================
// WORKFLOW TRANSITIONS
// =============================================================================

func TestWorkflow_ApproveSetsDecisionFields(t *testing.T) {
	svc, _ := newLeaveService()
	ctx := context.Background()

	leave, err := svc.Create(ctx, leaveInput("u1", date(2025, time.March, 3), date(2025, time.March, 4)))
	require.NoError(t, err)
	assert.Equal(t, planning.LeavePending, leave.Status)

	leave, err = svc.Approve(ctx, leave.ID, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, planning.LeaveApproved, leave.Status)
	assert.Equal(t, "mgr-1", leave.ApproverID)
	require.NotNil(t, leave.DecidedAt)
}

func TestWorkflow_RejectAppendsReason(t *testing.T) {
	svc, _ := newLeaveService()
	ctx := context.Background()

	in := leaveInput("u1", date(2025, time.March, 3), date(2025, time.March, 4))
	in.Reason = "family event"
	leave, err := svc.Create(ctx, in)
	require.NoError(t, err)

	leave, err = svc.Reject(ctx, leave.ID, "mgr-1", "team is short-staffed")
	require.NoError(t, err)
	assert.Equal(t, planning.LeaveRejected, leave.Status)
	assert.Contains(t, leave.Reason, "family event")
	assert.Contains(t, leave.Reason, "[rejected] team is short-staffed")
}

func TestWorkflow_TerminalStatesAreImmutable(t *testing.T) {
	// GIVEN: Leaves in each terminal state
	// WHEN: Applying any further transition
	// THEN: TransitionError every time

	svc, _ := newLeaveService()
	ctx := context.Background()

	rejected, err := svc.Create(ctx, leaveInput("u1", date(2025, time.March, 3), date(2025, time.March, 4)))
	require.NoError(t, err)
	_, err = svc.Reject(ctx, rejected.ID, "mgr-1", "")
	require.NoError(t, err)

	for name, op := range map[string]func() error{
		"approve": func() error { _, err := svc.Approve(ctx, rejected.ID, "mgr-1"); return err },
		"cancel":  func() error { _, err := svc.Cancel(ctx, rejected.ID); return err },
		"delete":  func() error { return svc.Delete(ctx, rejected.ID) },
		"update": func() error {
			d := date(2025, time.March, 10)
			_, err := svc.Update(ctx, rejected.ID, planning.UpdateLeaveInput{StartDate: &d, EndDate: &d})
			return err
		},
	} {
		err := op()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, planning.ErrInvalidTransition), name)
	}
}

func TestWorkflow_CancelRequiresApproved(t *testing.T) {
	svc, _ := newLeaveService()
	ctx := context.Background()

	pending, err := svc.Create(ctx, leaveInput("u1", date(2025, time.April, 1), date(2025, time.April, 2)))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, pending.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrInvalidTransition))

	approved := approvedLeave(t, svc, "u1", date(2025, time.May, 1), date(2025, time.May, 2))
	cancelled, err := svc.Cancel(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.LeaveCancelled, cancelled.Status)
}

func TestWorkflow_CancelledLeaveFreesTheRange(t *testing.T) {
	// GIVEN: An approved leave that gets cancelled
	// WHEN: Requesting the same range again
	// THEN: Allowed

	svc, _ := newLeaveService()
	ctx := context.Background()

	approved := approvedLeave(t, svc, "u1", date(2025, time.May, 1), date(2025, time.May, 2))
	_, err := svc.Cancel(ctx, approved.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, leaveInput("u1", date(2025, time.May, 1), date(2025, time.May, 2)))
	assert.NoError(t, err)
}

func TestUpdate_RechecksOverlapExcludingSelf(t *testing.T) {
	// GIVEN: One approved leave and one pending leave elsewhere
	// WHEN: Moving the pending leave onto the approved range
	// THEN: OverlapError; moving it onto a free range succeeds

	svc, _ := newLeaveService()
	ctx := context.Background()

	approvedLeave(t, svc, "u1", date(2025, time.June, 2), date(2025, time.June, 6))
	pending, err := svc.Create(ctx, leaveInput("u1", date(2025, time.June, 16), date(2025, time.June, 17)))
	require.NoError(t, err)

	conflictStart := date(2025, time.June, 5)
	conflictEnd := date(2025, time.June, 10)
	_, err = svc.Update(ctx, pending.ID, planning.UpdateLeaveInput{StartDate: &conflictStart, EndDate: &conflictEnd})
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrLeaveOverlap))

	freeStart := date(2025, time.June, 23)
	freeEnd := date(2025, time.June, 24)
	updated, err := svc.Update(ctx, pending.ID, planning.UpdateLeaveInput{StartDate: &freeStart, EndDate: &freeEnd})
	require.NoError(t, err)
	assert.True(t, updated.StartDate.Equal(freeStart))
}

func TestGet_UnknownLeave(t *testing.T) {
	svc, _ := newLeaveService()
	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, planning.IsNotFound(err))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCreate_ConcurrentOverlappingRequests(t *testing.T) {
	// GIVEN: An approved leave and many goroutines racing to book
	//        overlapping ranges for the same user
	// WHEN: All run concurrently
	// THEN: Every attempt fails with an overlap error; the check and the
	//       insert are serialized per user

	svc, _ := newLeaveService()
	ctx := context.Background()
	approvedLeave(t, svc, "u1", date(2025, time.July, 7), date(2025, time.July, 11))

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := date(2025, time.July, 7).AddDays(i % 5)
			_, errs[i] = svc.Create(ctx, leaveInput("u1", start, start.AddDays(2)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, fmt.Sprintf("request %d", i))
		assert.True(t, errors.Is(err, planning.ErrLeaveOverlap))
	}
}

// racingDecisionRepo fires a callback the first time the overlap check
// runs, simulating a decision landing while an update of the same leave
// is mid-flight.
type racingDecisionRepo struct {
	planning.LeaveRepository
	fire  func()
	fired atomic.Bool
}

func (r *racingDecisionRepo) FindApprovedOverlapping(ctx context.Context, userID string, start, end planning.Date, excludeID string) ([]planning.Leave, error) {
	if r.fire != nil && r.fired.CompareAndSwap(false, true) {
		r.fire()
	}
	return r.LeaveRepository.FindApprovedOverlapping(ctx, userID, start, end, excludeID)
}

func TestUpdate_ConcurrentApprovalIsNotOverwritten(t *testing.T) {
	// GIVEN: A pending leave, with an approval racing against an update
	//        of the same leave
	// WHEN: The approval fires while the update is between its status
	//       check and its write
	// THEN: The two mutations serialize; the decision trail survives
	//       instead of being overwritten by the update's stale row

	mem := store.NewMemory()
	repo := &racingDecisionRepo{LeaveRepository: mem.Leaves}
	svc := planning.NewLeaveService(repo, nil)
	ctx := context.Background()

	leave, err := svc.Create(ctx, leaveInput("u1", date(2025, time.March, 3), date(2025, time.March, 4)))
	require.NoError(t, err)

	approveErr := make(chan error, 1)
	repo.fire = func() {
		go func() {
			_, err := svc.Approve(ctx, leave.ID, "mgr-1")
			approveErr <- err
		}()
		// Let the approval reach the user lock before the update commits.
		time.Sleep(50 * time.Millisecond)
	}

	newEnd := date(2025, time.March, 5)
	updated, err := svc.Update(ctx, leave.ID, planning.UpdateLeaveInput{EndDate: &newEnd})
	require.NoError(t, err)
	assert.Equal(t, planning.LeavePending, updated.Status)

	require.NoError(t, <-approveErr)

	final, err := svc.Get(ctx, leave.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.LeaveApproved, final.Status)
	assert.Equal(t, "mgr-1", final.ApproverID)
	require.NotNil(t, final.DecidedAt)
	assert.True(t, final.EndDate.Equal(newEnd))
}
