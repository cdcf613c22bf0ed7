package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
)

// StatsHandler handles dashboard statistics endpoints
type StatsHandler struct {
	rules  *rules.RuleSet
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(rs *rules.RuleSet, logger *zap.SugaredLogger) *StatsHandler {
	return &StatsHandler{rules: rs, now: time.Now, logger: logger}
}

// StatsResponse represents the dashboard counts of one day
type StatsResponse struct {
	Date           string `json:"date"`
	TotalEmployees int    `json:"total_employees"`
	Present        int    `json:"present"`
	Absent         int    `json:"absent"`
	OnTime         int    `json:"on_time"`
	LateEntry      int    `json:"late_entry"`
	HalfDay        int    `json:"half_day"`
	Late           int    `json:"late"`
}

// Today returns the dashboard counts for a day (default today).
func (h *StatsHandler) Today(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", h.rules.LocalDate(h.now()))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	employees, err := database.GetEmployeeReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	records, err := database.GetAttendanceReader(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	total, err := employees.CountEmployees(ctx)
	if err != nil {
		h.logger.Errorw("counting employees failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	counts, err := records.CountRemarks(ctx, date)
	if err != nil {
		h.logger.Errorw("counting remarks failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := StatsResponse{Date: date.Format(database.DateLayout), TotalEmployees: total}
	for _, c := range counts {
		resp.Present += c.Count
		switch rules.Remark(c.Remark) {
		case rules.RemarkOnTime:
			resp.OnTime = c.Count
		case rules.RemarkLateEntry:
			resp.LateEntry = c.Count
		case rules.RemarkHalfDay:
			resp.HalfDay = c.Count
		case rules.RemarkLate:
			resp.Late = c.Count
		}
	}
	resp.Absent = max(total-resp.Present, 0)

	respondJSON(w, http.StatusOK, resp)
}
