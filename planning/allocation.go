/*
allocation.go - Project allocations with derived day estimates

PURPOSE:
  A ResourceAllocation commits a percentage of a user's time to a project
  over a date range. On create and update the service resolves the
  contract in effect at call time, computes the theoretical capacity of
  the range, and caches estimatedDays = theoretical * pct / 100 alongside
  the allocation.

STALE ESTIMATES:
  estimatedDays reflects the contract at the moment the allocation was
  written. Later contract changes do NOT retroactively update stored
  estimates; the aggregator reads the stored value as-is.

SEE ALSO:
  - capacity.go: TheoreticalDays
  - aggregate.go: consumes stored estimates for plannedDays
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

// ResourceAllocation commits part of a user's capacity to a project.
type ResourceAllocation struct {
	ID                   string
	UserID               string
	ProjectID            string
	AllocationPercentage int // [1,100]
	StartDate            Date
	EndDate              Date
	EstimatedDays        decimal.Decimal // derived, cached at write time
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AllocationService derives estimates and owns allocation CRUD. The sum
// of a user's concurrent percentages is deliberately NOT capped here;
// over-commitment is detected downstream by the capacity aggregator.
type AllocationService struct {
	Allocations AllocationRepository
	Resolver    *ContractResolver
	Calc        CapacityCalculator
	Logger      *slog.Logger
}

func NewAllocationService(allocations AllocationRepository, resolver *ContractResolver, logger *slog.Logger) *AllocationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AllocationService{
		Allocations: allocations,
		Resolver:    resolver,
		Logger:      logger,
	}
}

// CreateAllocationInput carries the fields of a new allocation.
type CreateAllocationInput struct {
	UserID               string
	ProjectID            string
	AllocationPercentage int
	StartDate            Date
	EndDate              Date
	Notes                string
}

func (in CreateAllocationInput) validate() error {
	if in.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if in.ProjectID == "" {
		return &ValidationError{Field: "project_id", Message: "required"}
	}
	if in.AllocationPercentage < 1 || in.AllocationPercentage > 100 {
		return &ValidationError{Field: "allocation_percentage", Message: "must be between 1 and 100"}
	}
	if in.EndDate.Before(in.StartDate) {
		return ErrInvalidPeriod
	}
	return nil
}

// Create stores a new allocation with its estimate derived from the
// contract in effect right now.
func (s *AllocationService) Create(ctx context.Context, in CreateAllocationInput) (*ResourceAllocation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	estimated, err := s.estimate(ctx, in.UserID, in.StartDate, in.EndDate, in.AllocationPercentage)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	alloc := &ResourceAllocation{
		ID:                   uuid.NewString(),
		UserID:               in.UserID,
		ProjectID:            in.ProjectID,
		AllocationPercentage: in.AllocationPercentage,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		EstimatedDays:        estimated,
		Notes:                in.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.Allocations.Create(ctx, alloc); err != nil {
		return nil, fmt.Errorf("failed to create allocation: %w", err)
	}

	s.Logger.Info("allocation created",
		"allocation_id", alloc.ID, "user_id", alloc.UserID, "project_id", alloc.ProjectID,
		"estimated_days", alloc.EstimatedDays.String())
	return alloc, nil
}

// UpdateAllocationInput carries the mutable fields; nil leaves a field
// unchanged. Any update recomputes the estimate against the contract in
// effect at call time.
type UpdateAllocationInput struct {
	AllocationPercentage *int
	StartDate            *Date
	EndDate              *Date
	Notes                *string
}

// Update mutates an allocation and refreshes its estimate.
func (s *AllocationService) Update(ctx context.Context, id string, in UpdateAllocationInput) (*ResourceAllocation, error) {
	alloc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.AllocationPercentage != nil {
		if *in.AllocationPercentage < 1 || *in.AllocationPercentage > 100 {
			return nil, &ValidationError{Field: "allocation_percentage", Message: "must be between 1 and 100"}
		}
		alloc.AllocationPercentage = *in.AllocationPercentage
	}
	if in.StartDate != nil {
		alloc.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		alloc.EndDate = *in.EndDate
	}
	if alloc.EndDate.Before(alloc.StartDate) {
		return nil, ErrInvalidPeriod
	}
	if in.Notes != nil {
		alloc.Notes = *in.Notes
	}

	estimated, err := s.estimate(ctx, alloc.UserID, alloc.StartDate, alloc.EndDate, alloc.AllocationPercentage)
	if err != nil {
		return nil, err
	}
	alloc.EstimatedDays = estimated
	alloc.UpdatedAt = time.Now().UTC()

	if err := s.Allocations.Update(ctx, alloc); err != nil {
		return nil, fmt.Errorf("failed to update allocation: %w", err)
	}

	s.Logger.Info("allocation updated",
		"allocation_id", alloc.ID, "estimated_days", alloc.EstimatedDays.String())
	return alloc, nil
}

// Delete removes an allocation. No workflow restriction.
func (s *AllocationService) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.Allocations.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	s.Logger.Info("allocation deleted", "allocation_id", id)
	return nil
}

// Get returns an allocation by id.
func (s *AllocationService) Get(ctx context.Context, id string) (*ResourceAllocation, error) {
	return s.get(ctx, id)
}

// ListByUser returns a user's allocations.
func (s *AllocationService) ListByUser(ctx context.Context, userID string) ([]ResourceAllocation, error) {
	return s.Allocations.ListByUser(ctx, userID)
}

// ListByProject returns a project's allocations.
func (s *AllocationService) ListByProject(ctx context.Context, projectID string) ([]ResourceAllocation, error) {
	return s.Allocations.ListByProject(ctx, projectID)
}

func (s *AllocationService) estimate(ctx context.Context, userID string, start, end Date, pct int) (decimal.Decimal, error) {
	contract, err := s.Resolver.Resolve(ctx, userID, Today())
	if err != nil {
		return decimal.Zero, err
	}

	theoretical, err := s.Calc.TheoreticalDays(contract, NewPeriod(start, end))
	if err != nil {
		return decimal.Zero, err
	}

	return theoretical.Mul(decimal.NewFromInt(int64(pct))).Div(oneHundred), nil
}

func (s *AllocationService) get(ctx context.Context, id string) (*ResourceAllocation, error) {
	alloc, err := s.Allocations.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}
	if alloc == nil {
		return nil, &NotFoundError{Kind: "allocation", ID: id}
	}
	return alloc, nil
}
