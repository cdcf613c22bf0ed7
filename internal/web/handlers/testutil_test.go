package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mock"
	"github.com/kozaktomas/punchclock/internal/rules"
	"github.com/kozaktomas/punchclock/internal/web/middleware"
)

var (
	testLocation = time.FixedZone("IST", 5*3600+30*60)
	testLogger   = zap.NewNop().Sugar()
)

// testConfig creates a config with the default site and rules
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Face.DescriptorLength = 4
	return cfg
}

// testRuleSet returns the default boundaries in a fixed +05:30 zone
func testRuleSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.ParseRuleSet("09:30", "09:45", "13:00", testLocation)
	if err != nil {
		t.Fatalf("failed to build rule set: %v", err)
	}
	return rs
}

// fixedClock returns a clock stuck at the given site-local time on 2025-03-14
func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 14, hour, minute, 0, 0, testLocation)
	}
}

// setupBackend registers in-memory repositories as the active backend
func setupBackend(t *testing.T) (*mock.MockEmployeeRepository, *mock.MockAttendanceRepository) {
	t.Helper()
	employees := mock.NewMockEmployeeRepository()
	records := mock.NewMockAttendanceRepository()
	database.RegisterBackend("mock",
		func() database.EmployeeWriter { return employees },
		func() database.AttendanceWriter { return records },
	)
	t.Cleanup(database.ResetBackend)
	return employees, records
}

// descriptorOf returns a 4-value descriptor filled with v
func descriptorOf(v float32) []float32 {
	return []float32{v, v, v, v}
}

// newRequest creates a request with an optional JSON body and identity in context
func newRequest(t *testing.T, method, path string, body any, identity *middleware.Identity) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req = req.WithContext(middleware.SetIdentityInContext(req.Context(), identity))
	}
	return req
}

func employeeIdentity(id string) *middleware.Identity {
	return &middleware.Identity{EmployeeID: id, Role: database.RoleEmployee}
}

func adminIdentity() *middleware.Identity {
	return &middleware.Identity{EmployeeID: "EMP900", Role: database.RoleAdmin}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
