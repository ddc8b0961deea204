/*
leave.go - Leave requests: overlap validation and lifecycle workflow

PURPOSE:
  Handles the full lifecycle of leave requests:
  1. Creation: Validate dates and overlap, store as PENDING
  2. Approval/Rejection: Only from PENDING, records the decider
  3. Cancellation: Only from APPROVED
  4. Update/Delete: Only while still PENDING

STATE MACHINE:
  PENDING  -> APPROVED | REJECTED
  APPROVED -> CANCELLED
  REJECTED and CANCELLED are terminal; a leave in a terminal state is
  immutable.

OVERLAP RULE:
  Two inclusive ranges [s1,e1], [s2,e2] overlap iff s1 <= e2 AND s2 <= e1.
  Only APPROVED leaves block a candidate range; PENDING, REJECTED and
  CANCELLED never do. Updates exclude the leave being updated.

CONCURRENCY:
  Overlap check followed by commit is a check-then-act sequence. The
  service serializes it per user with a keyed mutex so two concurrent
  requests for the same user cannot both pass the check against stale
  data and commit overlapping approved leaves. Every other mutation
  (update, delete, approve, reject, cancel) takes the same lock and
  re-loads the leave under it, so a status guard always runs against
  the committed row and a concurrent decision is never overwritten by
  a stale write.

SEE ALSO:
  - errors.go: OverlapError, TransitionError
  - store.go: LeaveRepository interface
*/
package planning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE - Request model
// =============================================================================

type LeaveType string

const (
	LeavePaid   LeaveType = "paid"
	LeaveRTT    LeaveType = "rtt"
	LeaveSick   LeaveType = "sick"
	LeaveUnpaid LeaveType = "unpaid"
	LeaveFamily LeaveType = "family"
	LeaveOther  LeaveType = "other"
)

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "PENDING"
	LeaveApproved  LeaveStatus = "APPROVED"
	LeaveRejected  LeaveStatus = "REJECTED"
	LeaveCancelled LeaveStatus = "CANCELLED"
)

// Leave is a user's leave request. Bounds are inclusive calendar days.
type Leave struct {
	ID        string
	UserID    string
	Type      LeaveType
	StartDate Date
	EndDate   Date
	Days      decimal.Decimal // as requested; may include half days
	Status    LeaveStatus
	Reason    string

	// Decision trail, set on approve/reject.
	ApproverID string
	DecidedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RangesOverlap implements the inclusive-interval overlap predicate.
func RangesOverlap(s1, e1, s2, e2 Date) bool {
	return s1.BeforeOrEqual(e2) && s2.BeforeOrEqual(e1)
}

// =============================================================================
// LEAVE SERVICE - Validation guard + workflow
// =============================================================================

// LeaveService owns the leave lifecycle. All mutations go through it.
type LeaveService struct {
	Leaves LeaveRepository
	Logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLeaveService(leaves LeaveRepository, logger *slog.Logger) *LeaveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveService{
		Leaves: leaves,
		Logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// userLock returns the serialization point for one user's check-then-act
// sequences.
func (s *LeaveService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// lockLeave acquires the leave's user lock and re-loads the leave under
// it, so status guards run against the committed row rather than a read
// taken before the lock. The user id of a leave never changes, which
// makes the pre-lock read a stable lock key. The caller unlocks.
func (s *LeaveService) lockLeave(ctx context.Context, id string) (*Leave, *sync.Mutex, error) {
	leave, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	lock := s.userLock(leave.UserID)
	lock.Lock()

	leave, err = s.get(ctx, id)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return leave, lock, nil
}

// Overlaps reports whether [start, end] collides with any APPROVED leave
// of the user, excluding excludeID when updating an existing leave.
// Pure predicate, no mutation.
func (s *LeaveService) Overlaps(ctx context.Context, userID string, start, end Date, excludeID string) (bool, error) {
	approved, err := s.Leaves.FindApprovedOverlapping(ctx, userID, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check leave overlap: %w", err)
	}
	return len(approved) > 0, nil
}

// CreateLeaveInput carries the fields of a new request.
type CreateLeaveInput struct {
	UserID    string
	Type      LeaveType
	StartDate Date
	EndDate   Date
	Days      decimal.Decimal
	Reason    string
}

// Create validates and stores a new PENDING leave.
func (s *LeaveService) Create(ctx context.Context, in CreateLeaveInput) (*Leave, error) {
	if in.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, ErrInvalidPeriod
	}

	lock := s.userLock(in.UserID)
	lock.Lock()
	defer lock.Unlock()

	overlaps, err := s.Overlaps(ctx, in.UserID, in.StartDate, in.EndDate, "")
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, &OverlapError{UserID: in.UserID, Start: in.StartDate, End: in.EndDate}
	}

	now := time.Now().UTC()
	leave := &Leave{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Days:      in.Days,
		Status:    LeavePending,
		Reason:    in.Reason,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Leaves.Create(ctx, leave); err != nil {
		return nil, fmt.Errorf("failed to create leave: %w", err)
	}

	s.Logger.Info("leave created",
		"leave_id", leave.ID, "user_id", leave.UserID,
		"start", leave.StartDate.String(), "end", leave.EndDate.String())
	return leave, nil
}

// UpdateLeaveInput carries the mutable fields of a PENDING leave. Nil
// pointers leave the field unchanged.
type UpdateLeaveInput struct {
	Type      *LeaveType
	StartDate *Date
	EndDate   *Date
	Days      *decimal.Decimal
	Reason    *string
}

// Update mutates a PENDING leave in place. If the dates change, the
// overlap guard runs again excluding the leave itself.
func (s *LeaveService) Update(ctx context.Context, id string, in UpdateLeaveInput) (*Leave, error) {
	leave, lock, err := s.lockLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if leave.Status != LeavePending {
		return nil, &TransitionError{Action: "updated", Current: leave.Status, Required: LeavePending}
	}

	start, end := leave.StartDate, leave.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	datesChanged := !start.Equal(leave.StartDate) || !end.Equal(leave.EndDate)

	if datesChanged {
		overlaps, err := s.Overlaps(ctx, leave.UserID, start, end, leave.ID)
		if err != nil {
			return nil, err
		}
		if overlaps {
			return nil, &OverlapError{UserID: leave.UserID, Start: start, End: end}
		}
	}

	leave.StartDate = start
	leave.EndDate = end
	if in.Type != nil {
		leave.Type = *in.Type
	}
	if in.Days != nil {
		leave.Days = *in.Days
	}
	if in.Reason != nil {
		leave.Reason = *in.Reason
	}
	leave.UpdatedAt = time.Now().UTC()

	if err := s.Leaves.Update(ctx, leave); err != nil {
		return nil, fmt.Errorf("failed to update leave: %w", err)
	}

	s.Logger.Info("leave updated", "leave_id", leave.ID, "user_id", leave.UserID)
	return leave, nil
}

// Delete removes a PENDING leave.
func (s *LeaveService) Delete(ctx context.Context, id string) error {
	leave, lock, err := s.lockLeave(ctx, id)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if leave.Status != LeavePending {
		return &TransitionError{Action: "deleted", Current: leave.Status, Required: LeavePending}
	}

	if err := s.Leaves.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete leave: %w", err)
	}

	s.Logger.Info("leave deleted", "leave_id", id, "user_id", leave.UserID)
	return nil
}

// Approve moves a PENDING leave to APPROVED and records the decider.
func (s *LeaveService) Approve(ctx context.Context, id, approverID string) (*Leave, error) {
	leave, lock, err := s.lockLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if leave.Status != LeavePending {
		return nil, &TransitionError{Action: "approved", Current: leave.Status, Required: LeavePending}
	}

	now := time.Now().UTC()
	leave.Status = LeaveApproved
	leave.ApproverID = approverID
	leave.DecidedAt = &now
	leave.UpdatedAt = now

	if err := s.Leaves.Update(ctx, leave); err != nil {
		return nil, fmt.Errorf("failed to approve leave: %w", err)
	}

	s.Logger.Info("leave approved", "leave_id", leave.ID, "user_id", leave.UserID, "approver_id", approverID)
	return leave, nil
}

// Reject moves a PENDING leave to REJECTED, records the decider and
// appends the tagged rejection reason to the request's reason text.
func (s *LeaveService) Reject(ctx context.Context, id, approverID, reason string) (*Leave, error) {
	leave, lock, err := s.lockLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if leave.Status != LeavePending {
		return nil, &TransitionError{Action: "rejected", Current: leave.Status, Required: LeavePending}
	}

	now := time.Now().UTC()
	leave.Status = LeaveRejected
	leave.ApproverID = approverID
	leave.DecidedAt = &now
	leave.UpdatedAt = now
	if reason != "" {
		leave.Reason = strings.TrimSpace(leave.Reason + "\n[rejected] " + reason)
	}

	if err := s.Leaves.Update(ctx, leave); err != nil {
		return nil, fmt.Errorf("failed to reject leave: %w", err)
	}

	s.Logger.Info("leave rejected", "leave_id", leave.ID, "user_id", leave.UserID, "approver_id", approverID)
	return leave, nil
}

// Cancel moves an APPROVED leave to CANCELLED.
func (s *LeaveService) Cancel(ctx context.Context, id string) (*Leave, error) {
	leave, lock, err := s.lockLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if leave.Status != LeaveApproved {
		return nil, &TransitionError{Action: "cancelled", Current: leave.Status, Required: LeaveApproved}
	}

	leave.Status = LeaveCancelled
	leave.UpdatedAt = time.Now().UTC()

	if err := s.Leaves.Update(ctx, leave); err != nil {
		return nil, fmt.Errorf("failed to cancel leave: %w", err)
	}

	s.Logger.Info("leave cancelled", "leave_id", leave.ID, "user_id", leave.UserID)
	return leave, nil
}

// Get returns a leave by id.
func (s *LeaveService) Get(ctx context.Context, id string) (*Leave, error) {
	return s.get(ctx, id)
}

// ListByUser returns all leaves of a user, newest first.
func (s *LeaveService) ListByUser(ctx context.Context, userID string) ([]Leave, error) {
	return s.Leaves.ListByUser(ctx, userID)
}

func (s *LeaveService) get(ctx context.Context, id string) (*Leave, error) {
	leave, err := s.Leaves.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load leave: %w", err)
	}
	if leave == nil {
		return nil, &NotFoundError{Kind: "leave", ID: id}
	}
	return leave, nil
}
