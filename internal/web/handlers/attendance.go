package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/attendance"
	"github.com/kozaktomas/punchclock/internal/constants"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
)

// AttendanceHandler handles attendance history and report endpoints
type AttendanceHandler struct {
	rules  *rules.RuleSet
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(rs *rules.RuleSet, logger *zap.SugaredLogger) *AttendanceHandler {
	return &AttendanceHandler{rules: rs, now: time.Now, logger: logger}
}

// today returns the current site-local calendar day.
func (h *AttendanceHandler) today() time.Time {
	return h.rules.LocalDate(h.now())
}

// DayResponse lists the records of one day.
type DayResponse struct {
	Date    string           `json:"date"`
	Records []RecordResponse `json:"records"`
}

// AbsentResponse lists the employees without a record on one day.
type AbsentResponse struct {
	Date      string             `json:"date"`
	Employees []EmployeeResponse `json:"employees"`
}

// ReportResponse is the monthly present-days report.
type ReportResponse struct {
	Month     string                    `json:"month"`
	From      string                    `json:"from"`
	To        string                    `json:"to"`
	Employees []database.MonthlySummary `json:"employees"`
}

// Me returns the caller's own records, newest first.
func (h *AttendanceHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	limit := constants.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, constants.MaxHistoryLimit)
	}

	repo, err := database.GetAttendanceReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	records, err := repo.ListByEmployee(r.Context(), identity.EmployeeID, limit)
	if err != nil {
		h.logger.Errorw("listing attendance failed", "employee_id", identity.EmployeeID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, newRecordResponses(records))
}

// ByDate returns all records of a day (default today).
func (h *AttendanceHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", h.today())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	repo, err := database.GetAttendanceReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	records, err := repo.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Errorw("listing attendance failed", "date", date.Format(database.DateLayout), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, DayResponse{
		Date:    date.Format(database.DateLayout),
		Records: newRecordResponses(records),
	})
}

// Absent returns the employees without a record on a day (default today).
func (h *AttendanceHandler) Absent(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", h.today())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	employeeRepo, err := database.GetEmployeeReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	attendanceRepo, err := database.GetAttendanceReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	employees, err := employeeRepo.ListEmployees(ctx)
	if err != nil {
		h.logger.Errorw("absent detection failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to detect absentees")
		return
	}
	records, err := attendanceRepo.ListByDate(ctx, date)
	if err != nil {
		h.logger.Errorw("absent detection failed", "date", date.Format(database.DateLayout), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to detect absentees")
		return
	}

	absent := attendance.Absentees(employees, records)
	respondJSON(w, http.StatusOK, AbsentResponse{Date: date.Format(database.DateLayout), Employees: newEmployeeResponses(absent)})
}

// Report returns present days per employee for a month (default current month).
func (h *AttendanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = h.today().Format(attendance.MonthLayout)
	}
	from, to, err := attendance.MonthRange(month)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	employeeRepo, err := database.GetEmployeeReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	attendanceRepo, err := database.GetAttendanceReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	summaries, err := attendance.MonthlyReport(ctx, employeeRepo, attendanceRepo, from, to)
	if err != nil {
		h.logger.Errorw("monthly report failed", "month", sanitizeForLog(month), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	respondJSON(w, http.StatusOK, ReportResponse{
		Month:     month,
		From:      from.Format(database.DateLayout),
		To:        to.Format(database.DateLayout),
		Employees: summaries,
	})
}
