// Package store provides in-memory repository implementations
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/capacity-engine/planning"
)

// Memory bundles one in-memory repository per entity. All repositories
// share nothing; each guards its own data.
type Memory struct {
	Contracts   *ContractMemory
	Holidays    *HolidayMemory
	Leaves      *LeaveMemory
	Allocations *AllocationMemory
	Snapshots   *SnapshotMemory
}

func NewMemory() *Memory {
	return &Memory{
		Contracts:   &ContractMemory{},
		Holidays:    &HolidayMemory{holidays: make(map[string]planning.Holiday)},
		Leaves:      &LeaveMemory{leaves: make(map[string]planning.Leave)},
		Allocations: &AllocationMemory{allocations: make(map[string]planning.ResourceAllocation)},
		Snapshots:   &SnapshotMemory{},
	}
}

// =============================================================================
// CONTRACTS
// =============================================================================

type ContractMemory struct {
	mu        sync.RWMutex
	contracts []planning.WorkContract
}

func (m *ContractMemory) FindEffective(_ context.Context, userID string, asOf planning.Date) (*planning.WorkContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *planning.WorkContract
	for i := range m.contracts {
		c := m.contracts[i]
		if c.UserID != userID || !c.EffectiveAt(asOf) {
			continue
		}
		// Latest start wins.
		if best == nil || c.StartDate.After(best.StartDate) {
			copied := c
			best = &copied
		}
	}
	return best, nil
}

func (m *ContractMemory) Create(_ context.Context, contract *planning.WorkContract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = append(m.contracts, *contract)
	return nil
}

func (m *ContractMemory) ListByUser(_ context.Context, userID string) ([]planning.WorkContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.WorkContract
	for _, c := range m.contracts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayMemory struct {
	mu       sync.RWMutex
	holidays map[string]planning.Holiday
}

func (m *HolidayMemory) FindInRange(_ context.Context, start, end planning.Date) ([]planning.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.Holiday
	for _, h := range m.holidays {
		if h.Date.AfterOrEqual(start) && h.Date.BeforeOrEqual(end) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *HolidayMemory) Create(_ context.Context, holiday *planning.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Upsert on (date, name); the surviving row carries the new id.
	for id, h := range m.holidays {
		if h.Date.Equal(holiday.Date) && h.Name == holiday.Name {
			delete(m.holidays, id)
			break
		}
	}
	m.holidays[holiday.ID] = *holiday
	return nil
}

func (m *HolidayMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, id)
	return nil
}

func (m *HolidayMemory) List(_ context.Context) ([]planning.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]planning.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// LEAVES
// =============================================================================

type LeaveMemory struct {
	mu     sync.RWMutex
	leaves map[string]planning.Leave
}

func (m *LeaveMemory) Create(_ context.Context, leave *planning.Leave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[leave.ID] = *leave
	return nil
}

func (m *LeaveMemory) Update(_ context.Context, leave *planning.Leave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[leave.ID] = *leave
	return nil
}

func (m *LeaveMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leaves, id)
	return nil
}

func (m *LeaveMemory) Get(_ context.Context, id string) (*planning.Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.leaves[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *LeaveMemory) ListByUser(_ context.Context, userID string) ([]planning.Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.Leave
	for _, l := range m.leaves {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *LeaveMemory) FindApprovedOverlapping(_ context.Context, userID string, start, end planning.Date, excludeID string) ([]planning.Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.Leave
	for _, l := range m.leaves {
		if l.UserID != userID || l.Status != planning.LeaveApproved || (excludeID != "" && l.ID == excludeID) {
			continue
		}
		if planning.RangesOverlap(l.StartDate, l.EndDate, start, end) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

type AllocationMemory struct {
	mu          sync.RWMutex
	allocations map[string]planning.ResourceAllocation
}

func (m *AllocationMemory) Create(_ context.Context, alloc *planning.ResourceAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[alloc.ID] = *alloc
	return nil
}

func (m *AllocationMemory) Update(_ context.Context, alloc *planning.ResourceAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[alloc.ID] = *alloc
	return nil
}

func (m *AllocationMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allocations, id)
	return nil
}

func (m *AllocationMemory) Get(_ context.Context, id string) (*planning.ResourceAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocations[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *AllocationMemory) ListByUser(_ context.Context, userID string) ([]planning.ResourceAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.ResourceAllocation
	for _, a := range m.allocations {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *AllocationMemory) ListByProject(_ context.Context, projectID string) ([]planning.ResourceAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.ResourceAllocation
	for _, a := range m.allocations {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *AllocationMemory) FindOverlapping(_ context.Context, userID string, start, end planning.Date) ([]planning.ResourceAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.ResourceAllocation
	for _, a := range m.allocations {
		if a.UserID != userID {
			continue
		}
		if planning.RangesOverlap(a.StartDate, a.EndDate, start, end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

type SnapshotMemory struct {
	mu        sync.RWMutex
	snapshots []planning.UserCapacitySnapshot
}

func (m *SnapshotMemory) Append(_ context.Context, snapshot planning.UserCapacitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *SnapshotMemory) FindFresh(_ context.Context, userID string, period planning.Period, ttl time.Duration) (*planning.UserCapacitySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *planning.UserCapacitySnapshot
	for i := range m.snapshots {
		s := m.snapshots[i]
		if s.UserID != userID || !s.Period.Start.Equal(period.Start) || !s.Period.End.Equal(period.End) {
			continue
		}
		if best == nil || s.CalculatedAt.After(best.CalculatedAt) {
			copied := s
			best = &copied
		}
	}
	if best == nil || time.Since(best.CalculatedAt) > ttl {
		return nil, nil
	}
	return best, nil
}

func (m *SnapshotMemory) ListByUser(_ context.Context, userID string, limit int) ([]planning.UserCapacitySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []planning.UserCapacitySnapshot
	for _, s := range m.snapshots {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalculatedAt.After(out[j].CalculatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Interface conformance checks.
var (
	_ planning.ContractRepository   = (*ContractMemory)(nil)
	_ planning.HolidayRepository    = (*HolidayMemory)(nil)
	_ planning.LeaveRepository      = (*LeaveMemory)(nil)
	_ planning.AllocationRepository = (*AllocationMemory)(nil)
	_ planning.SnapshotCache        = (*SnapshotMemory)(nil)
)
