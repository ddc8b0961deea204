/*
aggregate.go - Capacity aggregation and alert generation

PURPOSE:
  Orchestrates contract resolution, theoretical capacity, holidays,
  approved leave and stored allocation estimates into one capacity
  snapshot per (user, period), then derives alerts from the result.

DERIVATION (all decimal):
  theoreticalDays  from the effective contract over the period
  holidayDays      count of non-working holiday rows in the period
  leaveDays        sum over approved leaves of clipped calendar days
  availableDays  = max(0, theoretical - holidays - leave)
  plannedDays    = sum of stored allocation estimates in the period
  remainingDays  = available - planned          (may be negative)
  overallocation = max(0, -remaining)

ALERTS:
  OVERALLOCATION   remaining < 0; CRITICAL when the overrun exceeds 20%
                   of theoretical capacity, HIGH otherwise
  UNDERUTILIZATION remaining > 50% of theoretical capacity; MEDIUM
  LEAVE_CONFLICT and DEADLINE_RISK exist in the taxonomy but are not
  produced by this computation.

CACHING:
  The result is appended to the snapshot cache best-effort: a cache
  write failure is logged and swallowed, never failing the computation.
  Cached reads honor a fixed 1-hour TTL and are never auto-refreshed.
*/
package planning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ALERTS
// =============================================================================

type AlertType string

const (
	AlertOverallocation   AlertType = "OVERALLOCATION"
	AlertUnderutilization AlertType = "UNDERUTILIZATION"

	// Declared in the taxonomy, reserved: no generation rule exists yet.
	AlertLeaveConflict AlertType = "LEAVE_CONFLICT"
	AlertDeadlineRisk  AlertType = "DEADLINE_RISK"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// CapacityAlert is a value object embedded in a snapshot.
type CapacityAlert struct {
	Type             AlertType
	Severity         AlertSeverity
	Message          string
	SuggestedActions []string
	AffectedProjects []string
}

var overallocationActions = []string{
	"Reduce allocation percentages on active projects",
	"Extend project end dates",
	"Redistribute work to other team members",
}

var underutilizationActions = []string{
	"Assign to additional projects",
	"Plan training or skill development",
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// UserCapacitySnapshot is an immutable, timestamped capacity result.
// Append-only derived artifact; never the source of truth.
type UserCapacitySnapshot struct {
	ID     string
	UserID string
	Period Period

	TheoreticalDays    decimal.Decimal
	HolidayDays        decimal.Decimal
	LeaveDays          decimal.Decimal
	AvailableDays      decimal.Decimal
	PlannedDays        decimal.Decimal
	RemainingDays      decimal.Decimal
	OverallocationDays decimal.Decimal

	DailySeries []DayCapacity
	Alerts      []CapacityAlert

	CalculatedAt time.Time
}

// SnapshotTTL is how long a cached snapshot stays servable. The engine
// never auto-refreshes; callers recompute explicitly.
const SnapshotTTL = time.Hour

// =============================================================================
// CAPACITY SERVICE
// =============================================================================

// CapacityService aggregates capacity and generates alerts.
type CapacityService struct {
	Resolver    *ContractResolver
	Calc        CapacityCalculator
	Holidays    HolidayRepository
	Leaves      LeaveRepository
	Allocations AllocationRepository
	Snapshots   SnapshotCache
	Logger      *slog.Logger
}

func NewCapacityService(
	resolver *ContractResolver,
	holidays HolidayRepository,
	leaves LeaveRepository,
	allocations AllocationRepository,
	snapshots SnapshotCache,
	logger *slog.Logger,
) *CapacityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapacityService{
		Resolver:    resolver,
		Holidays:    holidays,
		Leaves:      leaves,
		Allocations: allocations,
		Snapshots:   snapshots,
		Logger:      logger,
	}
}

// CalculateUserCapacity computes the full capacity picture for one user
// over one period and appends the result to the snapshot cache.
func (s *CapacityService) CalculateUserCapacity(ctx context.Context, userID string, period Period) (*UserCapacitySnapshot, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	contract, err := s.Resolver.Resolve(ctx, userID, Today())
	if err != nil {
		return nil, err
	}

	theoretical, err := s.Calc.TheoreticalDays(contract, period)
	if err != nil {
		return nil, err
	}

	holidayDays, err := s.holidayDays(ctx, period)
	if err != nil {
		return nil, err
	}

	leaveDays, err := s.leaveDays(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	available := theoretical.Sub(holidayDays).Sub(leaveDays)
	if available.IsNegative() {
		available = decimal.Zero
	}

	planned, projects, err := s.plannedDays(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	remaining := available.Sub(planned)
	overallocation := decimal.Zero
	if remaining.IsNegative() {
		overallocation = remaining.Neg()
	}

	series, err := s.Calc.DailySeries(contract, period)
	if err != nil {
		return nil, err
	}

	snapshot := &UserCapacitySnapshot{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Period:             period,
		TheoreticalDays:    theoretical,
		HolidayDays:        holidayDays,
		LeaveDays:          leaveDays,
		AvailableDays:      available,
		PlannedDays:        planned,
		RemainingDays:      remaining,
		OverallocationDays: overallocation,
		DailySeries:        series,
		Alerts:             buildAlerts(theoretical, remaining, projects),
		CalculatedAt:       time.Now().UTC(),
	}

	// Best-effort cache write: a failure here must not fail the
	// computation.
	if err := s.Snapshots.Append(ctx, *snapshot); err != nil {
		s.Logger.Error("failed to persist capacity snapshot",
			"user_id", userID, "period", period.String(), "error", err)
	}

	return snapshot, nil
}

// GetCachedCapacity returns the freshest snapshot for the exact period
// within the TTL, or nil when absent or stale. It never recomputes.
func (s *CapacityService) GetCachedCapacity(ctx context.Context, userID string, period Period) (*UserCapacitySnapshot, error) {
	snapshot, err := s.Snapshots.FindFresh(ctx, userID, period, SnapshotTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot cache: %w", err)
	}
	return snapshot, nil
}

// SnapshotHistory lists a user's previously computed snapshots.
func (s *CapacityService) SnapshotHistory(ctx context.Context, userID string, limit int) ([]UserCapacitySnapshot, error) {
	return s.Snapshots.ListByUser(ctx, userID, limit)
}

func (s *CapacityService) holidayDays(ctx context.Context, period Period) (decimal.Decimal, error) {
	holidays, err := s.Holidays.FindInRange(ctx, period.Start, period.End)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load holidays: %w", err)
	}

	count := 0
	for _, h := range holidays {
		if !h.WorkingDay {
			count++
		}
	}
	return decimal.NewFromInt(int64(count)), nil
}

func (s *CapacityService) leaveDays(ctx context.Context, userID string, period Period) (decimal.Decimal, error) {
	leaves, err := s.Leaves.FindApprovedOverlapping(ctx, userID, period.Start, period.End, "")
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load approved leaves: %w", err)
	}

	// Each overlapping leave contributes its calendar days clipped to
	// the period's bounds.
	total := decimal.Zero
	for _, l := range leaves {
		clippedStart := MaxDate(l.StartDate, period.Start)
		clippedEnd := MinDate(l.EndDate, period.End)
		total = total.Add(decimal.NewFromInt(int64(DaysBetween(clippedStart, clippedEnd) + 1)))
	}
	return total, nil
}

func (s *CapacityService) plannedDays(ctx context.Context, userID string, period Period) (decimal.Decimal, []string, error) {
	allocations, err := s.Allocations.FindOverlapping(ctx, userID, period.Start, period.End)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	// Stored estimates, not recomputed: an allocation keeps the estimate
	// derived from the contract in effect when it was written.
	total := decimal.Zero
	seen := make(map[string]bool)
	var projects []string
	for _, a := range allocations {
		total = total.Add(a.EstimatedDays)
		if !seen[a.ProjectID] {
			seen[a.ProjectID] = true
			projects = append(projects, a.ProjectID)
		}
	}
	return total, projects, nil
}

func buildAlerts(theoretical, remaining decimal.Decimal, projects []string) []CapacityAlert {
	var alerts []CapacityAlert

	if remaining.IsNegative() {
		overrun := remaining.Neg()
		severity := SeverityHigh
		if overrun.GreaterThan(theoretical.Mul(decimal.NewFromFloat(0.2))) {
			severity = SeverityCritical
		}
		alerts = append(alerts, CapacityAlert{
			Type:     AlertOverallocation,
			Severity: severity,
			Message: fmt.Sprintf("planned work exceeds available capacity by %s days",
				overrun.StringFixed(1)),
			SuggestedActions: overallocationActions,
			AffectedProjects: projects,
		})
	}

	if remaining.GreaterThan(theoretical.Mul(decimal.NewFromFloat(0.5))) {
		alerts = append(alerts, CapacityAlert{
			Type:     AlertUnderutilization,
			Severity: SeverityMedium,
			Message: fmt.Sprintf("%s of %s theoretical days remain unplanned",
				remaining.StringFixed(1), theoretical.StringFixed(1)),
			SuggestedActions: underutilizationActions,
		})
	}

	return alerts
}
