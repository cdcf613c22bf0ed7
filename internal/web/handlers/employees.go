package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/constants"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

// EmployeesHandler handles employee management endpoints
type EmployeesHandler struct {
	descriptorLength int
	indexPath        string
	logger           *zap.SugaredLogger
}

// NewEmployeesHandler creates a new employees handler. indexPath may be empty.
func NewEmployeesHandler(descriptorLength int, indexPath string, logger *zap.SugaredLogger) *EmployeesHandler {
	return &EmployeesHandler{
		descriptorLength: descriptorLength,
		indexPath:        indexPath,
		logger:           logger,
	}
}

// EmployeeResponse is an employee as returned by the API.
type EmployeeResponse struct {
	database.Employee
	FaceRegistered bool `json:"face_registered"`
}

func newEmployeeResponse(e database.Employee) EmployeeResponse {
	return EmployeeResponse{Employee: e, FaceRegistered: e.HasFace()}
}

func newEmployeeResponses(employees []database.Employee) []EmployeeResponse {
	out := make([]EmployeeResponse, len(employees))
	for i := range employees {
		out[i] = newEmployeeResponse(employees[i])
	}
	return out
}

type employeeRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Department string `json:"department" validate:"max=255"`
	Role       string `json:"role" validate:"omitempty,oneof=employee admin"`
}

type faceRegistrationRequest struct {
	Descriptor []float32 `json:"descriptor" validate:"required,min=1,max=4096"`
}

// matchesQuery reports whether an employee matches a search query by name or id,
// ignoring case and diacritics.
func matchesQuery(e database.Employee, normalizedQuery string) bool {
	if strings.Contains(facematch.NormalizePersonName(e.Name), normalizedQuery) {
		return true
	}
	return strings.Contains(strings.ToLower(e.EmployeeID), normalizedQuery)
}

// List returns all employees, optionally filtered by the q query parameter.
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	repo, err := database.GetEmployeeReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	employees, err := repo.ListEmployees(r.Context())
	if err != nil {
		h.logger.Errorw("listing employees failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list employees")
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		normalized := facematch.NormalizePersonName(q)
		filtered := employees[:0]
		for _, e := range employees {
			if matchesQuery(e, normalized) {
				filtered = append(filtered, e)
			}
		}
		employees = filtered
	}

	respondJSON(w, http.StatusOK, newEmployeeResponses(employees))
}

// Create registers a new employee under the next free EMP### id.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	repo, err := database.GetEmployeeWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	e := &database.Employee{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Department: strings.TrimSpace(req.Department),
		Role:       req.Role,
	}
	for attempt := range constants.EmployeeCreateRetries {
		e.EmployeeID, err = repo.NextEmployeeID(r.Context())
		if err != nil {
			break
		}
		e.ID = ""
		err = repo.CreateEmployee(r.Context(), e)
		if !errors.Is(err, database.ErrConflict) {
			break
		}
		h.logger.Debugw("employee id taken, retrying", "employee_id", e.EmployeeID, "attempt", attempt+1)
	}

	switch {
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "employee with this email already exists")
	case err != nil:
		h.logger.Errorw("creating employee failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create employee")
	default:
		h.logger.Infow("employee created", "employee_id", e.EmployeeID)
		respondJSON(w, http.StatusCreated, newEmployeeResponse(*e))
	}
}

// Get returns one employee, including whether a face is registered.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	repo, err := database.GetEmployeeReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	e, err := repo.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Errorw("getting employee failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get employee")
		return
	}
	if e == nil {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}
	respondJSON(w, http.StatusOK, newEmployeeResponse(*e))
}

// Update replaces name, email, department and role of an employee.
func (h *EmployeesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	repo, err := database.GetEmployeeWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	e, err := repo.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Errorw("getting employee failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get employee")
		return
	}
	if e == nil {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}

	e.Name = strings.TrimSpace(req.Name)
	e.Email = strings.ToLower(strings.TrimSpace(req.Email))
	e.Department = strings.TrimSpace(req.Department)
	if req.Role != "" {
		e.Role = req.Role
	}

	switch err := repo.UpdateEmployee(r.Context(), e); {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "employee not found")
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "employee with this email already exists")
	case err != nil:
		h.logger.Errorw("updating employee failed", "employee_id", e.EmployeeID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update employee")
	default:
		if idx := database.GetFaceIndex(); idx != nil && e.HasFace() {
			// Keeps the name shown by identification current.
			if err := idx.Upsert(e); err != nil {
				h.logger.Warnw("face index update failed", "employee_id", e.EmployeeID, "error", err)
			}
		}
		respondJSON(w, http.StatusOK, newEmployeeResponse(*e))
	}
}

// Delete removes an employee together with their attendance records.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	repo, err := database.GetEmployeeWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	employeeID := chi.URLParam(r, "id")
	switch err := repo.DeleteEmployee(r.Context(), employeeID); {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "employee not found")
	case err != nil:
		h.logger.Errorw("deleting employee failed", "employee_id", sanitizeForLog(employeeID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete employee")
	default:
		if idx := database.GetFaceIndex(); idx != nil {
			idx.Remove(employeeID)
			h.saveIndex(idx)
		}
		h.logger.Infow("employee deleted", "employee_id", sanitizeForLog(employeeID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// RegisterFace stores the reference descriptor of an employee and updates the face index.
func (h *EmployeesHandler) RegisterFace(w http.ResponseWriter, r *http.Request) {
	var req faceRegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := facematch.ValidateDescriptor(req.Descriptor, h.descriptorLength); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	repo, err := database.GetEmployeeWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	employeeID := chi.URLParam(r, "id")
	switch err := repo.SetFaceDescriptor(r.Context(), employeeID, req.Descriptor); {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "employee not found")
		return
	case err != nil:
		h.logger.Errorw("registering face failed", "employee_id", sanitizeForLog(employeeID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register face")
		return
	}

	e, err := repo.GetEmployee(r.Context(), employeeID)
	if err != nil || e == nil {
		h.logger.Errorw("reloading employee failed", "employee_id", sanitizeForLog(employeeID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register face")
		return
	}

	if idx := database.GetFaceIndex(); idx != nil {
		if err := idx.Upsert(e); err != nil {
			h.logger.Warnw("face index update failed", "employee_id", e.EmployeeID, "error", err)
		} else {
			h.saveIndex(idx)
		}
	}

	h.logger.Infow("face registered", "employee_id", e.EmployeeID)
	respondJSON(w, http.StatusOK, newEmployeeResponse(*e))
}

func (h *EmployeesHandler) saveIndex(idx *database.FaceIndex) {
	if h.indexPath == "" {
		return
	}
	if err := idx.Save(h.indexPath); err != nil {
		h.logger.Warnw("saving face index failed", "path", h.indexPath, "error", err)
	}
}
