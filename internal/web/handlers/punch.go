package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/attendance"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
	"github.com/kozaktomas/punchclock/internal/geofence"
)

// PunchHandler handles punch-in endpoints
type PunchHandler struct {
	orchestrator *attendance.Orchestrator
	attempts     *attendance.AttemptManager
	identifier   *attendance.Identifier
	logger       *zap.SugaredLogger
}

// NewPunchHandler creates a new punch handler
func NewPunchHandler(o *attendance.Orchestrator, attempts *attendance.AttemptManager, identifier *attendance.Identifier, logger *zap.SugaredLogger) *PunchHandler {
	return &PunchHandler{
		orchestrator: o,
		attempts:     attempts,
		identifier:   identifier,
		logger:       logger,
	}
}

type locationPayload struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// locationFields is the device position, or the reason the device could not provide one.
type locationFields struct {
	Location      *locationPayload `json:"location"`
	LocationError string           `json:"location_error" validate:"max=200"`
}

func (l locationFields) locator() attendance.ReportedLocation {
	loc := attendance.ReportedLocation{Error: l.LocationError}
	if l.Location != nil {
		loc.Coords = &geofence.Coordinates{Lat: *l.Location.Lat, Lng: *l.Location.Lng}
	}
	return loc
}

type punchRequest struct {
	locationFields
	Descriptor []float32 `json:"descriptor" validate:"max=4096"`
}

type startAttemptRequest struct {
	locationFields
}

type faceRequest struct {
	Descriptor []float32 `json:"descriptor" validate:"max=4096"`
}

type identifyRequest struct {
	Descriptor []float32 `json:"descriptor" validate:"required,min=1,max=4096"`
}

// RecordResponse is an attendance record with its calendar day rendered as YYYY-MM-DD.
type RecordResponse struct {
	database.AttendanceRecord
	Date string `json:"date"`
}

func newRecordResponse(rec database.AttendanceRecord) RecordResponse {
	return RecordResponse{AttendanceRecord: rec, Date: rec.DateString()}
}

func newRecordResponses(records []database.AttendanceRecord) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i := range records {
		out[i] = newRecordResponse(records[i])
	}
	return out
}

// PunchResponse is the outcome of a punch attempt.
type PunchResponse struct {
	Status    string          `json:"status"` // recorded or rejected
	Record    *RecordResponse `json:"record,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable,omitempty"`
}

// AttemptResponse describes an open two-phase punch attempt.
type AttemptResponse struct {
	AttemptID      string    `json:"attempt_id"`
	State          string    `json:"state"`
	DistanceMeters float64   `json:"distance_m"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// statusForReason maps a rejection reason to an HTTP status.
func statusForReason(reason attendance.Reason) int {
	switch reason {
	case attendance.ReasonNotRegistered:
		return http.StatusPreconditionFailed
	case attendance.ReasonLocationUnavailable, attendance.ReasonNoFaceDetected:
		return http.StatusUnprocessableEntity
	case attendance.ReasonOutsideGeofence, attendance.ReasonFaceMismatch:
		return http.StatusForbidden
	case attendance.ReasonAlreadyMarked:
		return http.StatusConflict
	case attendance.ReasonPersistenceFailure:
		return http.StatusServiceUnavailable
	case attendance.ReasonCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondRejected(w http.ResponseWriter, r attendance.Rejected, retryable bool) {
	respondJSON(w, statusForReason(r.Reason), PunchResponse{
		Status:    "rejected",
		Reason:    string(r.Reason),
		Message:   r.Message(),
		Retryable: retryable,
	})
}

func respondResult(w http.ResponseWriter, res attendance.Result) {
	switch v := res.(type) {
	case attendance.Recorded:
		rec := newRecordResponse(v.Record)
		respondJSON(w, http.StatusCreated, PunchResponse{
			Status:  "recorded",
			Record:  &rec,
			Message: "Attendance marked: " + string(v.Classification.Remark),
		})
	case attendance.Rejected:
		respondRejected(w, v, false)
	default:
		respondError(w, http.StatusInternalServerError, "unexpected punch result")
	}
}

// Punch runs a single-shot punch with location and live descriptor in one request.
func (h *PunchHandler) Punch(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req punchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.orchestrator.Punch(r.Context(), identity.EmployeeID,
		req.locator(), attendance.ReportedEmbedding(req.Descriptor))
	respondResult(w, res)
}

// StartAttempt verifies identity and location and opens an attempt awaiting a face.
func (h *PunchHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req startAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, rejected := h.orchestrator.Start(r.Context(), identity.EmployeeID, req.locator())
	if rejected != nil {
		respondRejected(w, *rejected, false)
		return
	}

	expiresAt := h.attempts.Put(a)
	respondJSON(w, http.StatusCreated, AttemptResponse{
		AttemptID:      a.ID,
		State:          a.State.String(),
		DistanceMeters: a.DistanceMeters,
		ExpiresAt:      expiresAt,
	})
}

// SubmitFace completes an open attempt with the live descriptor.
// When no face is detected the attempt stays open until it expires.
func (h *PunchHandler) SubmitFace(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req faceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, expiresAt, err := h.attempts.Take(chi.URLParam(r, "id"), identity.EmployeeID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	res := h.orchestrator.Complete(r.Context(), a, attendance.ReportedEmbedding(req.Descriptor))
	if rejected, ok := res.(attendance.Rejected); ok && rejected.Reason.Retryable() {
		respondRejected(w, rejected, h.attempts.Release(a, expiresAt))
		return
	}
	respondResult(w, res)
}

// CancelAttempt abandons an open attempt.
func (h *PunchHandler) CancelAttempt(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	if err := h.attempts.Cancel(chi.URLParam(r, "id"), identity.EmployeeID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Identify finds the registered employee a live descriptor belongs to.
func (h *PunchHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	match, err := h.identifier.Identify(r.Context(), req.Descriptor)
	if errors.Is(err, facematch.ErrDimensionMismatch) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Errorw("face identification failed", "error", err)
		respondError(w, http.StatusInternalServerError, "face identification failed")
		return
	}
	if match == nil {
		respondError(w, http.StatusNotFound, "no matching employee")
		return
	}
	respondJSON(w, http.StatusOK, match)
}
