/*
store.go - Repository interfaces required from the environment

PURPOSE:
  The engine is a library; these interfaces are its hard boundary.
  Implementations live in store/sqlite (production) and planning/store
  (in-memory, tests/dev).

BEST-EFFORT CACHE:
  SnapshotCache.Append failures are logged and swallowed by the
  aggregator - the snapshot table is an append-only derived artifact,
  never the source of truth. Every other repository write is a primary
  write and propagates its error.
*/
package planning

import (
	"context"
	"time"
)

// ContractRepository reads and maintains work contracts. Contracts are
// created by external administrative processes; the engine only needs
// FindEffective.
type ContractRepository interface {
	// FindEffective returns the contract with the latest start among
	// those covering asOf, or nil when the user has none.
	FindEffective(ctx context.Context, userID string, asOf Date) (*WorkContract, error)

	Create(ctx context.Context, contract *WorkContract) error
	ListByUser(ctx context.Context, userID string) ([]WorkContract, error)
}

// Holiday is one organizational calendar entry. A row with
// WorkingDay=false removes a day from available capacity.
type Holiday struct {
	ID         string
	Date       Date
	Name       string
	WorkingDay bool
}

// HolidayRepository reads the organization's calendar.
type HolidayRepository interface {
	FindInRange(ctx context.Context, start, end Date) ([]Holiday, error)
	Create(ctx context.Context, holiday *Holiday) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Holiday, error)
}

// LeaveRepository persists leave requests.
type LeaveRepository interface {
	Create(ctx context.Context, leave *Leave) error
	Update(ctx context.Context, leave *Leave) error
	Delete(ctx context.Context, id string) error

	// Get returns nil without error when the id is unknown.
	Get(ctx context.Context, id string) (*Leave, error)
	ListByUser(ctx context.Context, userID string) ([]Leave, error)

	// FindApprovedOverlapping returns the user's APPROVED leaves whose
	// inclusive range intersects [start, end], excluding excludeID when
	// non-empty.
	FindApprovedOverlapping(ctx context.Context, userID string, start, end Date, excludeID string) ([]Leave, error)
}

// AllocationRepository persists project allocations.
type AllocationRepository interface {
	Create(ctx context.Context, alloc *ResourceAllocation) error
	Update(ctx context.Context, alloc *ResourceAllocation) error
	Delete(ctx context.Context, id string) error

	// Get returns nil without error when the id is unknown.
	Get(ctx context.Context, id string) (*ResourceAllocation, error)
	ListByUser(ctx context.Context, userID string) ([]ResourceAllocation, error)
	ListByProject(ctx context.Context, projectID string) ([]ResourceAllocation, error)

	// FindOverlapping returns the user's allocations whose range
	// intersects [start, end].
	FindOverlapping(ctx context.Context, userID string, start, end Date) ([]ResourceAllocation, error)
}

// SnapshotCache stores computed capacity snapshots. Append-only: rows
// are never mutated or deleted by the engine.
type SnapshotCache interface {
	Append(ctx context.Context, snapshot UserCapacitySnapshot) error

	// FindFresh returns the most recent snapshot for the exact
	// (userID, period.Start, period.End) tuple if its CalculatedAt is
	// within ttl, nil otherwise.
	FindFresh(ctx context.Context, userID string, period Period, ttl time.Duration) (*UserCapacitySnapshot, error)

	// ListByUser returns a user's snapshot history, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]UserCapacitySnapshot, error)
}
