/*
contract.go - Work contracts and the effective-contract resolver

PURPOSE:
  A WorkContract describes how much an employee works: a percentage of
  full time, a weekly hour volume, the set of weekdays worked, and an
  optional per-weekday schedule that overrides the uniform pattern.

EFFECTIVE CONTRACT:
  "Effective" is resolved at read time, never stored as a flag. Among a
  user's contracts with startDate <= t and (no endDate or endDate >= t),
  the one with the latest startDate wins. A user without any effective
  contract gets a virtual default (100%, 35h/week, Mon-Fri) so that every
  call site can treat resolution uniformly - absence is a fallback, not
  a failure.

SEE ALSO:
  - capacity.go: Converts a contract + period into day-equivalents
  - store.go: ContractRepository interface
*/
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORK CONTRACT
// =============================================================================

type ContractType string

const (
	ContractPermanent  ContractType = "cdi"
	ContractFixedTerm  ContractType = "cdd"
	ContractApprentice ContractType = "apprenticeship"
	ContractIntern     ContractType = "internship"
)

// DaySchedule overrides the working pattern for one weekday.
type DaySchedule struct {
	Hours   decimal.Decimal
	Working bool
}

// WorkContract is one contract period for one user. A user may have
// several rows over time; the resolver picks the effective one.
type WorkContract struct {
	ID                    string
	UserID                string
	Type                  ContractType
	WorkingTimePercentage int             // [1,100]
	WeeklyHours           decimal.Decimal // e.g. 35
	WorkingDays           []time.Weekday
	Schedule              map[time.Weekday]DaySchedule // optional per-weekday overrides
	StartDate             Date
	EndDate               *Date // nil = open-ended

	// Leave allowances and remote-work terms, maintained by HR.
	PaidLeaveDays     int
	RTTDays           int
	RemoteAllowed     bool
	RemoteDaysPerWeek int

	// Default marks the virtual, non-persisted fallback contract.
	Default bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorksOn reports whether the weekday belongs to the contract's working
// pattern.
func (c WorkContract) WorksOn(wd time.Weekday) bool {
	for _, d := range c.WorkingDays {
		if d == wd {
			return true
		}
	}
	return false
}

// EffectiveAt reports whether the contract window covers the given day.
func (c WorkContract) EffectiveAt(d Date) bool {
	if c.StartDate.After(d) {
		return false
	}
	return c.EndDate == nil || c.EndDate.AfterOrEqual(d)
}

// Validate checks the fields the engine relies on.
func (c WorkContract) Validate() error {
	if c.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if c.WorkingTimePercentage < 1 || c.WorkingTimePercentage > 100 {
		return &ValidationError{Field: "working_time_percentage", Message: "must be between 1 and 100"}
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return ErrInvalidPeriod
	}
	if len(c.WorkingDays) == 0 {
		return &ValidationError{Field: "working_days", Message: "at least one working day required"}
	}
	return nil
}

// DefaultContract synthesizes the virtual full-time contract used when a
// user has no explicit contract in effect. It is never persisted.
func DefaultContract(userID string) WorkContract {
	return WorkContract{
		ID:                    fmt.Sprintf("default-%s", userID),
		UserID:                userID,
		Type:                  ContractPermanent,
		WorkingTimePercentage: 100,
		WeeklyHours:           decimal.NewFromInt(35),
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		Default: true,
	}
}

// =============================================================================
// CONTRACT RESOLVER
// =============================================================================

// ContractResolver finds the contract in effect at an instant. Pure read,
// no side effects.
type ContractResolver struct {
	Contracts ContractRepository
}

// Resolve returns the effective contract for the user as of the given
// day, or the virtual default when none exists. Only repository failures
// surface as errors.
func (r *ContractResolver) Resolve(ctx context.Context, userID string, asOf Date) (WorkContract, error) {
	contract, err := r.Contracts.FindEffective(ctx, userID, asOf)
	if err != nil {
		return WorkContract{}, fmt.Errorf("failed to resolve contract for user %s: %w", userID, err)
	}
	if contract == nil {
		return DefaultContract(userID), nil
	}
	return *contract, nil
}
