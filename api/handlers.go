/*
handlers.go - HTTP API handlers for the capacity planning engine

PURPOSE:
  Exposes the capacity engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    GET    /api/periods                       Generate periods for a year

  Capacity:
    GET    /api/users/{id}/capacity           Compute capacity for a period
    GET    /api/users/{id}/capacity/snapshots Snapshot history

  Leaves:
    POST   /api/leaves                        Create leave request
    GET    /api/leaves/{id}                   Get leave
    PATCH  /api/leaves/{id}                   Update pending leave
    DELETE /api/leaves/{id}                   Delete pending leave
    POST   /api/leaves/{id}/approve           Approve
    POST   /api/leaves/{id}/reject            Reject
    POST   /api/leaves/{id}/cancel            Cancel approved leave
    GET    /api/users/{id}/leaves             List a user's leaves

  Allocations:
    POST   /api/allocations                   Create allocation
    GET    /api/allocations/{id}              Get allocation
    PATCH  /api/allocations/{id}              Update allocation
    DELETE /api/allocations/{id}              Delete allocation
    GET    /api/users/{id}/allocations        List a user's allocations
    GET    /api/projects/{id}/allocations     List a project's allocations

  Reference data:
    GET    /api/holidays                      List holidays
    POST   /api/holidays                      Create/update holiday
    DELETE /api/holidays/{id}                 Delete holiday
    GET    /api/users/{id}/contracts          List a user's contracts
    POST   /api/contracts                     Create contract

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad transitions
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/capacity-engine/planning"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Leaves      *planning.LeaveService
	Allocations *planning.AllocationService
	Capacity    *planning.CapacityService
	Contracts   planning.ContractRepository
	Holidays    planning.HolidayRepository
	Logger      *slog.Logger
}

func NewHandler(
	leaves *planning.LeaveService,
	allocations *planning.AllocationService,
	capacity *planning.CapacityService,
	contracts planning.ContractRepository,
	holidays planning.HolidayRepository,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Leaves:      leaves,
		Allocations: allocations,
		Capacity:    capacity,
		Contracts:   contracts,
		Holidays:    holidays,
		Logger:      logger,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case planning.IsNotFound(err):
		status = http.StatusNotFound
	case planning.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// =============================================================================
// PERIODS
// =============================================================================

// GeneratePeriods handles GET /api/periods?kind=quarter&year=2025
func (h *Handler) GeneratePeriods(w http.ResponseWriter, r *http.Request) {
	kind := planning.PeriodKind(r.URL.Query().Get("kind"))
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		h.badRequest(w, "year must be an integer")
		return
	}

	periods, err := planning.GeneratePeriods(kind, year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPeriodDTOs(periods))
}

// =============================================================================
// CAPACITY
// =============================================================================

// parsePeriod builds a period from start/end query parameters.
func parsePeriod(r *http.Request) (planning.Period, bool) {
	start, err1 := planning.ParseDate(r.URL.Query().Get("start"))
	end, err2 := planning.ParseDate(r.URL.Query().Get("end"))
	if err1 != nil || err2 != nil {
		return planning.Period{}, false
	}
	p := planning.NewPeriod(start, end)
	p.Label = r.URL.Query().Get("label")
	return p, true
}

// GetCapacity handles GET /api/users/{id}/capacity?start=...&end=...
// Pass cached=true to serve a fresh snapshot when one exists.
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	period, ok := parsePeriod(r)
	if !ok {
		h.badRequest(w, "start and end must be YYYY-MM-DD dates")
		return
	}

	if r.URL.Query().Get("cached") == "true" {
		snap, err := h.Capacity.GetCachedCapacity(r.Context(), userID, period)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if snap != nil {
			h.writeJSON(w, http.StatusOK, toCapacityDTO(snap))
			return
		}
		// No fresh snapshot; fall through to a full computation.
	}

	snap, err := h.Capacity.CalculateUserCapacity(r.Context(), userID, period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCapacityDTO(snap))
}

// GetSnapshotHistory handles GET /api/users/{id}/capacity/snapshots?limit=20
func (h *Handler) GetSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	snaps, err := h.Capacity.SnapshotHistory(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]capacityDTO, 0, len(snaps))
	for i := range snaps {
		dtos = append(dtos, toCapacityDTO(&snaps[i]))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVES
// =============================================================================

// CreateLeave handles POST /api/leaves
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req createLeaveRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	leave, err := h.Leaves.Create(r.Context(), planning.CreateLeaveInput{
		UserID:    req.UserID,
		Type:      planning.LeaveType(req.Type),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Days:      req.Days,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toLeaveDTO(leave))
}

// GetLeave handles GET /api/leaves/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	leave, err := h.Leaves.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTO(leave))
}

// UpdateLeave handles PATCH /api/leaves/{id}
func (h *Handler) UpdateLeave(w http.ResponseWriter, r *http.Request) {
	var req updateLeaveRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	in := planning.UpdateLeaveInput{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Days:      req.Days,
		Reason:    req.Reason,
	}
	if req.Type != nil {
		t := planning.LeaveType(*req.Type)
		in.Type = &t
	}

	leave, err := h.Leaves.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTO(leave))
}

// DeleteLeave handles DELETE /api/leaves/{id}
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Leaves.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveLeave handles POST /api/leaves/{id}/approve
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	leave, err := h.Leaves.Approve(r.Context(), chi.URLParam(r, "id"), req.ApproverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTO(leave))
}

// RejectLeave handles POST /api/leaves/{id}/reject
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	leave, err := h.Leaves.Reject(r.Context(), chi.URLParam(r, "id"), req.ApproverID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTO(leave))
}

// CancelLeave handles POST /api/leaves/{id}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	leave, err := h.Leaves.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTO(leave))
}

// ListUserLeaves handles GET /api/users/{id}/leaves
func (h *Handler) ListUserLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := h.Leaves.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLeaveDTOs(leaves))
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// CreateAllocation handles POST /api/allocations
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req createAllocationRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	alloc, err := h.Allocations.Create(r.Context(), planning.CreateAllocationInput{
		UserID:               req.UserID,
		ProjectID:            req.ProjectID,
		AllocationPercentage: req.AllocationPercentage,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Notes:                req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toAllocationDTO(alloc))
}

// GetAllocation handles GET /api/allocations/{id}
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	alloc, err := h.Allocations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAllocationDTO(alloc))
}

// UpdateAllocation handles PATCH /api/allocations/{id}
func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var req updateAllocationRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	alloc, err := h.Allocations.Update(r.Context(), chi.URLParam(r, "id"), planning.UpdateAllocationInput{
		AllocationPercentage: req.AllocationPercentage,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Notes:                req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAllocationDTO(alloc))
}

// DeleteAllocation handles DELETE /api/allocations/{id}
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	if err := h.Allocations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserAllocations handles GET /api/users/{id}/allocations
func (h *Handler) ListUserAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.Allocations.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAllocationDTOs(allocs))
}

// ListProjectAllocations handles GET /api/projects/{id}/allocations
func (h *Handler) ListProjectAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.Allocations.ListByProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAllocationDTOs(allocs))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ListHolidays handles GET /api/holidays. With start and end parameters
// it returns only holidays in that range.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	var (
		holidays []planning.Holiday
		err      error
	)
	if r.URL.Query().Get("start") != "" || r.URL.Query().Get("end") != "" {
		period, ok := parsePeriod(r)
		if !ok {
			h.badRequest(w, "start and end must be YYYY-MM-DD dates")
			return
		}
		holidays, err = h.Holidays.FindInRange(r.Context(), period.Start, period.End)
	} else {
		holidays, err = h.Holidays.List(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]holidayDTO, 0, len(holidays))
	for i := range holidays {
		dtos = append(dtos, toHolidayDTO(&holidays[i]))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday handles POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req createHolidayRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}
	if req.Date.IsZero() {
		h.badRequest(w, "date is required")
		return
	}

	holiday := planning.Holiday{
		ID:         uuid.NewString(),
		Date:       req.Date,
		Name:       req.Name,
		WorkingDay: req.WorkingDay,
	}
	if err := h.Holidays.Create(r.Context(), &holiday); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toHolidayDTO(&holiday))
}

// DeleteHoliday handles DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Holidays.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ListUserContracts handles GET /api/users/{id}/contracts
func (h *Handler) ListUserContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Contracts.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]contractDTO, 0, len(contracts))
	for i := range contracts {
		dtos = append(dtos, toContractDTO(&contracts[i]))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// CreateContract handles POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	workingDays, ok := parseWeekdays(req.WorkingDays)
	if !ok {
		h.badRequest(w, "workingDays must be lowercase weekday names")
		return
	}

	contract := planning.WorkContract{
		ID:                    uuid.NewString(),
		UserID:                req.UserID,
		Type:                  planning.ContractType(req.Type),
		WorkingTimePercentage: req.WorkingTimePercentage,
		WeeklyHours:           req.WeeklyHours,
		WorkingDays:           workingDays,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		PaidLeaveDays:         req.PaidLeaveDays,
		RTTDays:               req.RTTDays,
		RemoteAllowed:         req.RemoteAllowed,
		RemoteDaysPerWeek:     req.RemoteDaysPerWeek,
	}
	if len(req.Schedule) > 0 {
		contract.Schedule = make(map[time.Weekday]planning.DaySchedule, len(req.Schedule))
		for name, day := range req.Schedule {
			wd, ok := weekdayByName[strings.ToLower(name)]
			if !ok {
				h.badRequest(w, "schedule keys must be lowercase weekday names")
				return
			}
			contract.Schedule[wd] = planning.DaySchedule{Hours: day.Hours, Working: day.Working}
		}
	}

	if err := contract.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Contracts.Create(r.Context(), &contract); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toContractDTO(&contract))
}
