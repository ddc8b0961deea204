/*
Package sqlite provides the SQLite-backed implementation of the planning
repository interfaces.

INTERFACES IMPLEMENTED:
  planning.ContractRepository
  planning.HolidayRepository
  planning.LeaveRepository
  planning.AllocationRepository
  planning.SnapshotCache

REPRESENTATION:
  Dates are stored as ISO text (YYYY-MM-DD), timestamps as RFC3339.
  Decimal quantities are stored as text and parsed back through
  shopspring/decimal, so no float rounding ever touches stored values.
  Working-day sets, per-weekday schedules, daily series and alerts are
  JSON columns.

APPEND-ONLY SNAPSHOTS:
  capacity_snapshots has INSERT and SELECT paths only. No UPDATE, no
  DELETE: the table is a derived audit trail, never the source of truth.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL for
  better concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/capacity.db")
  if err != nil { ... }
  defer store.Close()
  resolver := &planning.ContractResolver{Contracts: store.Contracts()}

SEE ALSO:
  - planning/store.go: Interface definitions
  - planning/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/planning"
)

// Store owns the database handle. Repository views share its lock.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		working_time_percentage INTEGER NOT NULL,
		weekly_hours TEXT NOT NULL,
		working_days_json TEXT NOT NULL,
		schedule_json TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		paid_leave_days INTEGER DEFAULT 0,
		rtt_days INTEGER DEFAULT 0,
		remote_allowed BOOLEAN DEFAULT FALSE,
		remote_days_per_week INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Effective-contract resolution (hot path)
	CREATE INDEX IF NOT EXISTS idx_contracts_user_window
		ON contracts(user_id, start_date DESC, end_date);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		working_day BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		reason TEXT,
		approver_id TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_user ON leaves(user_id);
	-- Overlap checks scan a user's approved leaves by range
	CREATE INDEX IF NOT EXISTS idx_leaves_user_status_dates
		ON leaves(user_id, status, start_date, end_date);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		allocation_percentage INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		estimated_days TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_user
		ON allocations(user_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_allocations_project ON allocations(project_id);

	-- Append-only capacity snapshots (cache + audit trail)
	CREATE TABLE IF NOT EXISTS capacity_snapshots (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		period_label TEXT,
		theoretical_days TEXT NOT NULL,
		holiday_days TEXT NOT NULL,
		leave_days TEXT NOT NULL,
		available_days TEXT NOT NULL,
		planned_days TEXT NOT NULL,
		remaining_days TEXT NOT NULL,
		overallocation_days TEXT NOT NULL,
		daily_series_json TEXT,
		alerts_json TEXT,
		calculated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_lookup
		ON capacity_snapshots(user_id, period_start, period_end, calculated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"contracts", "holidays", "leaves", "allocations", "capacity_snapshots"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Repository views. Each shares the Store's handle and lock.
func (s *Store) Contracts() planning.ContractRepository     { return &contractStore{s} }
func (s *Store) Holidays() planning.HolidayRepository       { return &holidayStore{s} }
func (s *Store) Leaves() planning.LeaveRepository           { return &leaveStore{s} }
func (s *Store) Allocations() planning.AllocationRepository { return &allocationStore{s} }
func (s *Store) Snapshots() planning.SnapshotCache          { return &snapshotStore{s} }

// =============================================================================
// CONTRACTS
// =============================================================================

type contractStore struct{ s *Store }

func (cs *contractStore) Create(ctx context.Context, c *planning.WorkContract) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	workingDays, _ := json.Marshal(c.WorkingDays)
	var scheduleJSON sql.NullString
	if len(c.Schedule) > 0 {
		b, err := json.Marshal(c.Schedule)
		if err != nil {
			return fmt.Errorf("failed to encode schedule: %w", err)
		}
		scheduleJSON = sql.NullString{String: string(b), Valid: true}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := cs.s.db.ExecContext(ctx, `
		INSERT INTO contracts
		(id, user_id, type, working_time_percentage, weekly_hours, working_days_json,
		 schedule_json, start_date, end_date, paid_leave_days, rtt_days,
		 remote_allowed, remote_days_per_week, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Type, c.WorkingTimePercentage, c.WeeklyHours.String(),
		string(workingDays), scheduleJSON,
		c.StartDate.String(), nullDate(c.EndDate),
		c.PaidLeaveDays, c.RTTDays, c.RemoteAllowed, c.RemoteDaysPerWeek,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (cs *contractStore) FindEffective(ctx context.Context, userID string, asOf planning.Date) (*planning.WorkContract, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()

	row := cs.s.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE user_id = ? AND start_date <= ?
		  AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC
		LIMIT 1`,
		userID, asOf.String(), asOf.String(),
	)

	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

func (cs *contractStore) ListByUser(ctx context.Context, userID string) ([]planning.WorkContract, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()

	rows, err := cs.s.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE user_id = ?
		ORDER BY start_date ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []planning.WorkContract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

const contractColumns = `id, user_id, type, working_time_percentage, weekly_hours,
	working_days_json, schedule_json, start_date, end_date, paid_leave_days,
	rtt_days, remote_allowed, remote_days_per_week, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*planning.WorkContract, error) {
	var (
		c                           planning.WorkContract
		weeklyHours                 string
		workingDaysJSON             string
		scheduleJSON, endDate       sql.NullString
		startDate, created, updated string
	)

	err := row.Scan(
		&c.ID, &c.UserID, &c.Type, &c.WorkingTimePercentage, &weeklyHours,
		&workingDaysJSON, &scheduleJSON, &startDate, &endDate,
		&c.PaidLeaveDays, &c.RTTDays, &c.RemoteAllowed, &c.RemoteDaysPerWeek,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}

	c.WeeklyHours = mustDecimal(weeklyHours)
	if err := json.Unmarshal([]byte(workingDaysJSON), &c.WorkingDays); err != nil {
		return nil, fmt.Errorf("failed to decode working days: %w", err)
	}
	if scheduleJSON.Valid && scheduleJSON.String != "" {
		if err := json.Unmarshal([]byte(scheduleJSON.String), &c.Schedule); err != nil {
			return nil, fmt.Errorf("failed to decode schedule: %w", err)
		}
	}
	c.StartDate, _ = planning.ParseDate(startDate)
	if endDate.Valid {
		d, err := planning.ParseDate(endDate.String)
		if err == nil {
			c.EndDate = &d
		}
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, created)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &c, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type holidayStore struct{ s *Store }

func (hs *holidayStore) Create(ctx context.Context, h *planning.Holiday) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	_, err := hs.s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, working_day, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			id = excluded.id,
			working_day = excluded.working_day`,
		h.ID, h.Date.String(), h.Name, h.WorkingDay,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert holiday: %w", err)
	}
	return nil
}

func (hs *holidayStore) Delete(ctx context.Context, id string) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	_, err := hs.s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

func (hs *holidayStore) FindInRange(ctx context.Context, start, end planning.Date) ([]planning.Holiday, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	return hs.query(ctx, `
		SELECT id, date, name, working_day FROM holidays
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		start.String(), end.String(),
	)
}

func (hs *holidayStore) List(ctx context.Context) ([]planning.Holiday, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	return hs.query(ctx, `
		SELECT id, date, name, working_day FROM holidays ORDER BY date ASC`)
}

func (hs *holidayStore) query(ctx context.Context, query string, args ...any) ([]planning.Holiday, error) {
	rows, err := hs.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []planning.Holiday
	for rows.Next() {
		var h planning.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.WorkingDay); err != nil {
			return nil, err
		}
		h.Date, _ = planning.ParseDate(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// LEAVES
// =============================================================================

type leaveStore struct{ s *Store }

func (ls *leaveStore) Create(ctx context.Context, l *planning.Leave) error {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	_, err := ls.s.db.ExecContext(ctx, `
		INSERT INTO leaves
		(id, user_id, type, start_date, end_date, days, status, reason,
		 approver_id, decided_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Type, l.StartDate.String(), l.EndDate.String(),
		l.Days.String(), l.Status, l.Reason, l.ApproverID,
		nullTime(l.DecidedAt),
		l.CreatedAt.UTC().Format(time.RFC3339), l.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave: %w", err)
	}
	return nil
}

func (ls *leaveStore) Update(ctx context.Context, l *planning.Leave) error {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	_, err := ls.s.db.ExecContext(ctx, `
		UPDATE leaves SET
			type = ?, start_date = ?, end_date = ?, days = ?, status = ?,
			reason = ?, approver_id = ?, decided_at = ?, updated_at = ?
		WHERE id = ?`,
		l.Type, l.StartDate.String(), l.EndDate.String(), l.Days.String(),
		l.Status, l.Reason, l.ApproverID, nullTime(l.DecidedAt),
		l.UpdatedAt.UTC().Format(time.RFC3339), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave: %w", err)
	}
	return nil
}

func (ls *leaveStore) Delete(ctx context.Context, id string) error {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	_, err := ls.s.db.ExecContext(ctx, "DELETE FROM leaves WHERE id = ?", id)
	return err
}

func (ls *leaveStore) Get(ctx context.Context, id string) (*planning.Leave, error) {
	ls.s.mu.RLock()
	defer ls.s.mu.RUnlock()

	leaves, err := ls.query(ctx, `SELECT `+leaveColumns+` FROM leaves WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, nil
	}
	return &leaves[0], nil
}

func (ls *leaveStore) ListByUser(ctx context.Context, userID string) ([]planning.Leave, error) {
	ls.s.mu.RLock()
	defer ls.s.mu.RUnlock()

	return ls.query(ctx, `
		SELECT `+leaveColumns+` FROM leaves
		WHERE user_id = ?
		ORDER BY created_at DESC`,
		userID,
	)
}

func (ls *leaveStore) FindApprovedOverlapping(ctx context.Context, userID string, start, end planning.Date, excludeID string) ([]planning.Leave, error) {
	ls.s.mu.RLock()
	defer ls.s.mu.RUnlock()

	// Inclusive intervals overlap iff s1 <= e2 AND s2 <= e1.
	query := `
		SELECT ` + leaveColumns + ` FROM leaves
		WHERE user_id = ? AND status = ?
		  AND start_date <= ? AND ? <= end_date`
	args := []any{userID, planning.LeaveApproved, end.String(), start.String()}
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_date ASC"

	return ls.query(ctx, query, args...)
}

const leaveColumns = `id, user_id, type, start_date, end_date, days, status,
	reason, approver_id, decided_at, created_at, updated_at`

func (ls *leaveStore) query(ctx context.Context, query string, args ...any) ([]planning.Leave, error) {
	rows, err := ls.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves []planning.Leave
	for rows.Next() {
		var (
			l                           planning.Leave
			startDate, endDate, days    string
			reason, approver, decidedAt sql.NullString
			created, updated            string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &startDate, &endDate, &days,
			&l.Status, &reason, &approver, &decidedAt, &created, &updated); err != nil {
			return nil, err
		}

		l.StartDate, _ = planning.ParseDate(startDate)
		l.EndDate, _ = planning.ParseDate(endDate)
		l.Days = mustDecimal(days)
		l.Reason = reason.String
		l.ApproverID = approver.String
		if decidedAt.Valid {
			t, _ := time.Parse(time.RFC3339, decidedAt.String)
			l.DecidedAt = &t
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339, created)
		l.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

type allocationStore struct{ s *Store }

func (as *allocationStore) Create(ctx context.Context, a *planning.ResourceAllocation) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	_, err := as.s.db.ExecContext(ctx, `
		INSERT INTO allocations
		(id, user_id, project_id, allocation_percentage, start_date, end_date,
		 estimated_days, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ProjectID, a.AllocationPercentage,
		a.StartDate.String(), a.EndDate.String(), a.EstimatedDays.String(), a.Notes,
		a.CreatedAt.UTC().Format(time.RFC3339), a.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func (as *allocationStore) Update(ctx context.Context, a *planning.ResourceAllocation) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	_, err := as.s.db.ExecContext(ctx, `
		UPDATE allocations SET
			allocation_percentage = ?, start_date = ?, end_date = ?,
			estimated_days = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		a.AllocationPercentage, a.StartDate.String(), a.EndDate.String(),
		a.EstimatedDays.String(), a.Notes,
		a.UpdatedAt.UTC().Format(time.RFC3339), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	return nil
}

func (as *allocationStore) Delete(ctx context.Context, id string) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	_, err := as.s.db.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	return err
}

func (as *allocationStore) Get(ctx context.Context, id string) (*planning.ResourceAllocation, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	allocs, err := as.query(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, nil
	}
	return &allocs[0], nil
}

func (as *allocationStore) ListByUser(ctx context.Context, userID string) ([]planning.ResourceAllocation, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	return as.query(ctx, `
		SELECT `+allocationColumns+` FROM allocations
		WHERE user_id = ? ORDER BY start_date ASC`,
		userID,
	)
}

func (as *allocationStore) ListByProject(ctx context.Context, projectID string) ([]planning.ResourceAllocation, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	return as.query(ctx, `
		SELECT `+allocationColumns+` FROM allocations
		WHERE project_id = ? ORDER BY start_date ASC`,
		projectID,
	)
}

func (as *allocationStore) FindOverlapping(ctx context.Context, userID string, start, end planning.Date) ([]planning.ResourceAllocation, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	return as.query(ctx, `
		SELECT `+allocationColumns+` FROM allocations
		WHERE user_id = ? AND start_date <= ? AND ? <= end_date
		ORDER BY start_date ASC`,
		userID, end.String(), start.String(),
	)
}

const allocationColumns = `id, user_id, project_id, allocation_percentage,
	start_date, end_date, estimated_days, notes, created_at, updated_at`

func (as *allocationStore) query(ctx context.Context, query string, args ...any) ([]planning.ResourceAllocation, error) {
	rows, err := as.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []planning.ResourceAllocation
	for rows.Next() {
		var (
			a                                  planning.ResourceAllocation
			startDate, endDate, estimated      string
			notes                              sql.NullString
			created, updated                   string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProjectID, &a.AllocationPercentage,
			&startDate, &endDate, &estimated, &notes, &created, &updated); err != nil {
			return nil, err
		}

		a.StartDate, _ = planning.ParseDate(startDate)
		a.EndDate, _ = planning.ParseDate(endDate)
		a.EstimatedDays = mustDecimal(estimated)
		a.Notes = notes.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// SNAPSHOTS (append-only)
// =============================================================================

type snapshotStore struct{ s *Store }

func (ss *snapshotStore) Append(ctx context.Context, snap planning.UserCapacitySnapshot) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	seriesJSON, err := json.Marshal(snap.DailySeries)
	if err != nil {
		return fmt.Errorf("failed to encode daily series: %w", err)
	}
	alertsJSON, err := json.Marshal(snap.Alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}

	_, err = ss.s.db.ExecContext(ctx, `
		INSERT INTO capacity_snapshots
		(id, user_id, period_start, period_end, period_label,
		 theoretical_days, holiday_days, leave_days, available_days,
		 planned_days, remaining_days, overallocation_days,
		 daily_series_json, alerts_json, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UserID,
		snap.Period.Start.String(), snap.Period.End.String(), snap.Period.Label,
		snap.TheoreticalDays.String(), snap.HolidayDays.String(),
		snap.LeaveDays.String(), snap.AvailableDays.String(),
		snap.PlannedDays.String(), snap.RemainingDays.String(),
		snap.OverallocationDays.String(),
		string(seriesJSON), string(alertsJSON),
		snap.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

func (ss *snapshotStore) FindFresh(ctx context.Context, userID string, period planning.Period, ttl time.Duration) (*planning.UserCapacitySnapshot, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339)
	rows, err := ss.s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM capacity_snapshots
		WHERE user_id = ? AND period_start = ? AND period_end = ?
		  AND calculated_at >= ?
		ORDER BY calculated_at DESC
		LIMIT 1`,
		userID, period.Start.String(), period.End.String(), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func (ss *snapshotStore) ListByUser(ctx context.Context, userID string, limit int) ([]planning.UserCapacitySnapshot, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := ss.s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM capacity_snapshots
		WHERE user_id = ?
		ORDER BY calculated_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

const snapshotColumns = `id, user_id, period_start, period_end, period_label,
	theoretical_days, holiday_days, leave_days, available_days, planned_days,
	remaining_days, overallocation_days, daily_series_json, alerts_json,
	calculated_at`

func scanSnapshots(rows *sql.Rows) ([]planning.UserCapacitySnapshot, error) {
	var snaps []planning.UserCapacitySnapshot
	for rows.Next() {
		var (
			snap                                     planning.UserCapacitySnapshot
			periodStart, periodEnd                   string
			label, seriesJSON, alertsJSON            sql.NullString
			theoretical, holiday, leave, available   string
			planned, remaining, overallocation       string
			calculatedAt                             string
		)
		if err := rows.Scan(&snap.ID, &snap.UserID, &periodStart, &periodEnd, &label,
			&theoretical, &holiday, &leave, &available,
			&planned, &remaining, &overallocation,
			&seriesJSON, &alertsJSON, &calculatedAt); err != nil {
			return nil, err
		}

		snap.Period.Start, _ = planning.ParseDate(periodStart)
		snap.Period.End, _ = planning.ParseDate(periodEnd)
		snap.Period.Label = label.String
		snap.TheoreticalDays = mustDecimal(theoretical)
		snap.HolidayDays = mustDecimal(holiday)
		snap.LeaveDays = mustDecimal(leave)
		snap.AvailableDays = mustDecimal(available)
		snap.PlannedDays = mustDecimal(planned)
		snap.RemainingDays = mustDecimal(remaining)
		snap.OverallocationDays = mustDecimal(overallocation)
		if seriesJSON.Valid && seriesJSON.String != "" {
			if err := json.Unmarshal([]byte(seriesJSON.String), &snap.DailySeries); err != nil {
				return nil, fmt.Errorf("failed to decode daily series: %w", err)
			}
		}
		if alertsJSON.Valid && alertsJSON.String != "" {
			if err := json.Unmarshal([]byte(alertsJSON.String), &snap.Alerts); err != nil {
				return nil, fmt.Errorf("failed to decode alerts: %w", err)
			}
		}
		snap.CalculatedAt, _ = time.Parse(time.RFC3339, calculatedAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDate(d *planning.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
