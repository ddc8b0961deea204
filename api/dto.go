/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

CONVENTIONS:
  - Dates travel as ISO strings (YYYY-MM-DD)
  - Day quantities travel as decimal strings ("4.5"), never floats
  - Weekdays travel as lowercase English names ("monday")
  - Field names are camelCase

VALIDATION:
  Request validation lives in the planning services, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - planning: Domain types these map to
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/planning"
)

// =============================================================================
// REQUESTS
// =============================================================================

type createLeaveRequest struct {
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	StartDate planning.Date   `json:"startDate"`
	EndDate   planning.Date   `json:"endDate"`
	Days      decimal.Decimal `json:"days"`
	Reason    string          `json:"reason,omitempty"`
}

type updateLeaveRequest struct {
	Type      *string          `json:"type,omitempty"`
	StartDate *planning.Date   `json:"startDate,omitempty"`
	EndDate   *planning.Date   `json:"endDate,omitempty"`
	Days      *decimal.Decimal `json:"days,omitempty"`
	Reason    *string          `json:"reason,omitempty"`
}

type decisionRequest struct {
	ApproverID string `json:"approverId"`
	Reason     string `json:"reason,omitempty"`
}

type createAllocationRequest struct {
	UserID               string        `json:"userId"`
	ProjectID            string        `json:"projectId"`
	AllocationPercentage int           `json:"allocationPercentage"`
	StartDate            planning.Date `json:"startDate"`
	EndDate              planning.Date `json:"endDate"`
	Notes                string        `json:"notes,omitempty"`
}

type updateAllocationRequest struct {
	AllocationPercentage *int           `json:"allocationPercentage,omitempty"`
	StartDate            *planning.Date `json:"startDate,omitempty"`
	EndDate              *planning.Date `json:"endDate,omitempty"`
	Notes                *string        `json:"notes,omitempty"`
}

type createHolidayRequest struct {
	Date       planning.Date `json:"date"`
	Name       string        `json:"name"`
	WorkingDay bool          `json:"workingDay"`
}

type createContractRequest struct {
	UserID                string            `json:"userId"`
	Type                  string            `json:"type"`
	WorkingTimePercentage int               `json:"workingTimePercentage"`
	WeeklyHours           decimal.Decimal   `json:"weeklyHours"`
	WorkingDays           []string          `json:"workingDays"`
	Schedule              map[string]dayDTO `json:"schedule,omitempty"`
	StartDate             planning.Date     `json:"startDate"`
	EndDate               *planning.Date    `json:"endDate,omitempty"`
	PaidLeaveDays         int               `json:"paidLeaveDays,omitempty"`
	RTTDays               int               `json:"rttDays,omitempty"`
	RemoteAllowed         bool              `json:"remoteAllowed,omitempty"`
	RemoteDaysPerWeek     int               `json:"remoteDaysPerWeek,omitempty"`
}

type dayDTO struct {
	Hours   decimal.Decimal `json:"hours"`
	Working bool            `json:"working"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type periodDTO struct {
	Start planning.Date `json:"start"`
	End   planning.Date `json:"end"`
	Label string        `json:"label,omitempty"`
}

type leaveDTO struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	Type       string        `json:"type"`
	StartDate  planning.Date `json:"startDate"`
	EndDate    planning.Date `json:"endDate"`
	Days       string        `json:"days"`
	Status     string        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ApproverID string        `json:"approverId,omitempty"`
	DecidedAt  string        `json:"decidedAt,omitempty"`
	CreatedAt  string        `json:"createdAt"`
	UpdatedAt  string        `json:"updatedAt"`
}

type allocationDTO struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"userId"`
	ProjectID            string        `json:"projectId"`
	AllocationPercentage int           `json:"allocationPercentage"`
	StartDate            planning.Date `json:"startDate"`
	EndDate              planning.Date `json:"endDate"`
	EstimatedDays        string        `json:"estimatedDays"`
	Notes                string        `json:"notes,omitempty"`
	CreatedAt            string        `json:"createdAt"`
	UpdatedAt            string        `json:"updatedAt"`
}

type holidayDTO struct {
	ID         string        `json:"id"`
	Date       planning.Date `json:"date"`
	Name       string        `json:"name"`
	WorkingDay bool          `json:"workingDay"`
}

type contractDTO struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	Type                  string            `json:"type"`
	WorkingTimePercentage int               `json:"workingTimePercentage"`
	WeeklyHours           string            `json:"weeklyHours"`
	WorkingDays           []string          `json:"workingDays"`
	Schedule              map[string]dayDTO `json:"schedule,omitempty"`
	StartDate             planning.Date     `json:"startDate"`
	EndDate               *planning.Date    `json:"endDate,omitempty"`
	PaidLeaveDays         int               `json:"paidLeaveDays"`
	RTTDays               int               `json:"rttDays"`
	RemoteAllowed         bool              `json:"remoteAllowed"`
	RemoteDaysPerWeek     int               `json:"remoteDaysPerWeek"`
	Default               bool              `json:"default,omitempty"`
}

type dayCapacityDTO struct {
	Date planning.Date `json:"date"`
	Days string        `json:"days"`
}

type alertDTO struct {
	Type             string   `json:"type"`
	Severity         string   `json:"severity"`
	Message          string   `json:"message"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`
	AffectedProjects []string `json:"affectedProjects,omitempty"`
}

type capacityDTO struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Period periodDTO `json:"period"`

	TheoreticalDays    string `json:"theoreticalDays"`
	HolidayDays        string `json:"holidayDays"`
	LeaveDays          string `json:"leaveDays"`
	AvailableDays      string `json:"availableDays"`
	PlannedDays        string `json:"plannedDays"`
	RemainingDays      string `json:"remainingDays"`
	OverallocationDays string `json:"overallocationDays"`

	DailySeries []dayCapacityDTO `json:"dailySeries,omitempty"`
	Alerts      []alertDTO       `json:"alerts"`

	CalculatedAt string `json:"calculatedAt"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLeaveDTO(l *planning.Leave) leaveDTO {
	dto := leaveDTO{
		ID:         l.ID,
		UserID:     l.UserID,
		Type:       string(l.Type),
		StartDate:  l.StartDate,
		EndDate:    l.EndDate,
		Days:       l.Days.String(),
		Status:     string(l.Status),
		Reason:     l.Reason,
		ApproverID: l.ApproverID,
		CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  l.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if l.DecidedAt != nil {
		dto.DecidedAt = l.DecidedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toLeaveDTOs(leaves []planning.Leave) []leaveDTO {
	dtos := make([]leaveDTO, 0, len(leaves))
	for i := range leaves {
		dtos = append(dtos, toLeaveDTO(&leaves[i]))
	}
	return dtos
}

func toAllocationDTO(a *planning.ResourceAllocation) allocationDTO {
	return allocationDTO{
		ID:                   a.ID,
		UserID:               a.UserID,
		ProjectID:            a.ProjectID,
		AllocationPercentage: a.AllocationPercentage,
		StartDate:            a.StartDate,
		EndDate:              a.EndDate,
		EstimatedDays:        a.EstimatedDays.String(),
		Notes:                a.Notes,
		CreatedAt:            a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toAllocationDTOs(allocs []planning.ResourceAllocation) []allocationDTO {
	dtos := make([]allocationDTO, 0, len(allocs))
	for i := range allocs {
		dtos = append(dtos, toAllocationDTO(&allocs[i]))
	}
	return dtos
}

func toHolidayDTO(h *planning.Holiday) holidayDTO {
	return holidayDTO{ID: h.ID, Date: h.Date, Name: h.Name, WorkingDay: h.WorkingDay}
}

func toContractDTO(c *planning.WorkContract) contractDTO {
	dto := contractDTO{
		ID:                    c.ID,
		UserID:                c.UserID,
		Type:                  string(c.Type),
		WorkingTimePercentage: c.WorkingTimePercentage,
		WeeklyHours:           c.WeeklyHours.String(),
		WorkingDays:           weekdayNames(c.WorkingDays),
		StartDate:             c.StartDate,
		EndDate:               c.EndDate,
		PaidLeaveDays:         c.PaidLeaveDays,
		RTTDays:               c.RTTDays,
		RemoteAllowed:         c.RemoteAllowed,
		RemoteDaysPerWeek:     c.RemoteDaysPerWeek,
		Default:               c.Default,
	}
	if len(c.Schedule) > 0 {
		dto.Schedule = make(map[string]dayDTO, len(c.Schedule))
		for wd, day := range c.Schedule {
			dto.Schedule[weekdayName(wd)] = dayDTO{Hours: day.Hours, Working: day.Working}
		}
	}
	return dto
}

func toPeriodDTO(p planning.Period) periodDTO {
	return periodDTO{Start: p.Start, End: p.End, Label: p.Label}
}

func toPeriodDTOs(periods []planning.Period) []periodDTO {
	dtos := make([]periodDTO, 0, len(periods))
	for _, p := range periods {
		dtos = append(dtos, toPeriodDTO(p))
	}
	return dtos
}

func toCapacityDTO(s *planning.UserCapacitySnapshot) capacityDTO {
	dto := capacityDTO{
		ID:                 s.ID,
		UserID:             s.UserID,
		Period:             toPeriodDTO(s.Period),
		TheoreticalDays:    s.TheoreticalDays.String(),
		HolidayDays:        s.HolidayDays.String(),
		LeaveDays:          s.LeaveDays.String(),
		AvailableDays:      s.AvailableDays.String(),
		PlannedDays:        s.PlannedDays.String(),
		RemainingDays:      s.RemainingDays.String(),
		OverallocationDays: s.OverallocationDays.String(),
		Alerts:             make([]alertDTO, 0, len(s.Alerts)),
		CalculatedAt:       s.CalculatedAt.UTC().Format(time.RFC3339),
	}
	for _, dc := range s.DailySeries {
		dto.DailySeries = append(dto.DailySeries, dayCapacityDTO{Date: dc.Date, Days: dc.Days.String()})
	}
	for _, a := range s.Alerts {
		dto.Alerts = append(dto.Alerts, alertDTO{
			Type:             string(a.Type),
			Severity:         string(a.Severity),
			Message:          a.Message,
			SuggestedActions: a.SuggestedActions,
			AffectedProjects: a.AffectedProjects,
		})
	}
	return dto
}

// =============================================================================
// WEEKDAY NAMES
// =============================================================================

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

func weekdayNames(days []time.Weekday) []string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, weekdayName(d))
	}
	return names
}

func parseWeekdays(names []string) ([]time.Weekday, bool) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		wd, ok := weekdayByName[strings.ToLower(name)]
		if !ok {
			return nil, false
		}
		days = append(days, wd)
	}
	return days, true
}
