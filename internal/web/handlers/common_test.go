package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/punchclock/internal/constants"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusCreated, ConfigResponse{Backend: "mock"})

	if recorder.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
	var result ConfigResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result.Backend != "mock" {
		t.Errorf("expected backend 'mock', got '%s'", result.Backend)
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusConflict, "attendance already marked for today")

	if recorder.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, recorder.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != "attendance already marked for today" {
		t.Errorf("unexpected error body %v", result)
	}
}

func TestHealthCheck_ReportsBackend(t *testing.T) {
	setupBackend(t)
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["backend"] != "mock" {
		t.Errorf("expected backend 'mock', got '%s'", result["backend"])
	}
}

type decodeTarget struct {
	Name  string   `json:"name" validate:"required,max=5"`
	Lat   *float64 `json:"lat" validate:"omitempty,latitude"`
	Email string   `json:"email" validate:"omitempty,email"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"abc","lat":10.5}`},
		{name: "malformed", body: `{"name":`, wantErr: errInvalidRequestBody},
		{name: "unknown field", body: `{"name":"abc","extra":1}`, wantErr: errInvalidRequestBody},
		{name: "wrong type", body: `{"name":42}`, wantErr: errInvalidRequestBody},
		{name: "missing required", body: `{}`, wantErr: "decodeTarget.Name: failed required"},
		{name: "too long", body: `{"name":"abcdefgh"}`, wantErr: "decodeTarget.Name: failed max=5"},
		{name: "latitude out of range", body: `{"name":"a","lat":91}`, wantErr: "decodeTarget.Lat: failed latitude"},
		{
			name:    "multiple failures",
			body:    `{"lat":-100,"email":"nope"}`,
			wantErr: "decodeTarget.Name: failed required; decodeTarget.Lat: failed latitude; decodeTarget.Email: failed email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			recorder := httptest.NewRecorder()

			var dst decodeTarget
			err := decodeJSON(recorder, req, &dst)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", constants.MaxRequestBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	var dst decodeTarget
	if err := decodeJSON(recorder, req, &dst); err == nil {
		t.Error("expected error for oversized body")
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("EMP001\nlevel=error\r"); got != "EMP001level=error" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}

func TestParseDateParam(t *testing.T) {
	fallback := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	req := httptest.NewRequest("GET", "/?date=2025-01-02", nil)
	d, err := parseDateParam(req, "date", fallback)
	if err != nil || !d.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected result %v, %v", d, err)
	}

	req = httptest.NewRequest("GET", "/", nil)
	d, err = parseDateParam(req, "date", fallback)
	if err != nil || !d.Equal(fallback) {
		t.Errorf("expected fallback, got %v, %v", d, err)
	}

	req = httptest.NewRequest("GET", "/?date=2025-02-30", nil)
	if _, err := parseDateParam(req, "date", fallback); err == nil {
		t.Error("expected error for impossible date")
	}
}

func TestCurrentIdentity(t *testing.T) {
	recorder := httptest.NewRecorder()
	if _, ok := currentIdentity(recorder, httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no identity")
	}
	assertStatusCode(t, recorder, http.StatusUnauthorized)

	recorder = httptest.NewRecorder()
	identity, ok := currentIdentity(recorder, newRequest(t, "GET", "/", nil, employeeIdentity("EMP001")))
	if !ok || identity.EmployeeID != "EMP001" {
		t.Errorf("expected EMP001, got %+v", identity)
	}
}
