package attendance

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mock"
	"github.com/kozaktomas/punchclock/internal/facematch"
	"github.com/kozaktomas/punchclock/internal/geofence"
	"github.com/kozaktomas/punchclock/internal/rules"
)

var (
	ist    = time.FixedZone("IST", 5*3600+30*60)
	campus = geofence.Coordinates{Lat: 10.694630, Lng: 78.979179}
)

func northOf(c geofence.Coordinates, meters float64) *geofence.Coordinates {
	p := geofence.Coordinates{Lat: c.Lat + meters/geofence.EarthRadiusMeters*180/math.Pi, Lng: c.Lng}
	return &p
}

func faceOf(v float32) []float32 {
	d := make([]float32, facematch.DescriptorLength)
	for i := range d {
		d[i] = v
	}
	return d
}

// shiftedFace returns a descriptor at the given Euclidean distance from faceOf(v).
func shiftedFace(v float32, distance float32) []float32 {
	d := faceOf(v)
	d[0] += distance
	return d
}

type fixture struct {
	orch      *Orchestrator
	employees *mock.MockEmployeeRepository
	records   *mock.MockAttendanceRepository
	now       time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	ruleSet, err := rules.ParseRuleSet("09:30", "09:45", "13:00", ist)
	if err != nil {
		t.Fatalf("ParseRuleSet() error = %v", err)
	}
	cfg := Config{
		Site:             geofence.Site{Center: campus, RadiusMeters: 2000},
		Rules:            ruleSet,
		MatchThreshold:   facematch.DefaultThreshold,
		DescriptorLength: facematch.DescriptorLength,
	}

	f := &fixture{
		employees: mock.NewMockEmployeeRepository(),
		records:   mock.NewMockAttendanceRepository(),
		now:       now,
	}
	f.employees.AddEmployee(database.Employee{EmployeeID: "EMP001", Name: "Asha", FaceDescriptor: faceOf(0.1)})
	f.employees.AddEmployee(database.Employee{EmployeeID: "EMP002", Name: "Ravi"})

	f.orch, err = NewOrchestrator(cfg, f.employees, f.records, WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return f
}

func morning() time.Time {
	return time.Date(2025, time.March, 14, 9, 20, 0, 0, ist)
}

func atCampus() Locator {
	return ReportedLocation{Coords: northOf(campus, 100)}
}

func noCapture(t *testing.T) Capturer {
	return CapturerFunc(func(ctx context.Context) ([]float32, error) {
		t.Error("face capture must not be reached")
		return nil, errors.New("unexpected capture")
	})
}

func expectRejected(t *testing.T, res Result, reason Reason) Rejected {
	t.Helper()
	rej, ok := res.(Rejected)
	if !ok {
		t.Fatalf("expected Rejected(%s), got %#v", reason, res)
	}
	if rej.Reason != reason {
		t.Fatalf("Reason = %s, want %s (err: %v)", rej.Reason, reason, rej.Err)
	}
	return rej
}

func expectRecorded(t *testing.T, res Result) Recorded {
	t.Helper()
	rec, ok := res.(Recorded)
	if !ok {
		t.Fatalf("expected Recorded, got %#v", res)
	}
	return rec
}

func TestPunch_InsideAndMatching_Recorded(t *testing.T) {
	f := newFixture(t, morning())

	res := f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1)))

	rec := expectRecorded(t, res)
	if rec.Record.Status != "present" || rec.Record.Remark != "On Time" {
		t.Errorf("got %s/%s, want present/On Time", rec.Record.Status, rec.Record.Remark)
	}
	if rec.Record.DateString() != "2025-03-14" {
		t.Errorf("date = %s, want 2025-03-14", rec.Record.DateString())
	}
	if !rec.Record.PunchIn.Equal(f.now) {
		t.Errorf("punch in = %v, want %v", rec.Record.PunchIn, f.now)
	}
	if rec.Record.ID == 0 {
		t.Error("expected store-assigned id")
	}
	if f.records.Count() != 1 {
		t.Errorf("store has %d records, want 1", f.records.Count())
	}
}

func TestPunch_OutsideGeofence_NoCapture(t *testing.T) {
	f := newFixture(t, morning())

	res := f.orch.Punch(context.Background(), "EMP001", ReportedLocation{Coords: northOf(campus, 2500)}, noCapture(t))

	expectRejected(t, res, ReasonOutsideGeofence)
	if f.records.Count() != 0 {
		t.Error("no record should be written")
	}
}

func TestPunch_FaceMismatch(t *testing.T) {
	f := newFixture(t, morning())

	res := f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(shiftedFace(0.1, 0.78)))

	expectRejected(t, res, ReasonFaceMismatch)
	if f.records.Count() != 0 {
		t.Error("no record should be written")
	}
}

func TestPunch_AlreadyMarked_StoreUnchanged(t *testing.T) {
	f := newFixture(t, morning())
	f.records.AddRecord(database.AttendanceRecord{
		ID:         1,
		EmployeeID: "EMP001",
		Date:       time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
		PunchIn:    morning().Add(-time.Hour),
		Status:     "present",
		Remark:     "On Time",
	})

	res := f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1)))

	expectRejected(t, res, ReasonAlreadyMarked)
	if f.records.InsertCalls != 0 {
		t.Errorf("InsertRecord called %d times, want 0", f.records.InsertCalls)
	}
	if f.records.Count() != 1 {
		t.Errorf("store has %d records, want 1", f.records.Count())
	}
}

func TestPunch_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, morning())
	ctx := context.Background()

	expectRecorded(t, f.orch.Punch(ctx, "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))))

	f.now = f.now.Add(3 * time.Hour)
	expectRejected(t, f.orch.Punch(ctx, "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))), ReasonAlreadyMarked)

	if f.records.Count() != 1 {
		t.Errorf("store has %d records, want 1", f.records.Count())
	}
}

func TestPunch_NextLocalDayIsNewRecord(t *testing.T) {
	f := newFixture(t, morning())
	ctx := context.Background()

	expectRecorded(t, f.orch.Punch(ctx, "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))))

	f.now = f.now.Add(24 * time.Hour)
	rec := expectRecorded(t, f.orch.Punch(ctx, "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))))
	if rec.Record.DateString() != "2025-03-15" {
		t.Errorf("date = %s, want 2025-03-15", rec.Record.DateString())
	}
}

func TestPunch_ConcurrentSameEmployee_OneRecorded(t *testing.T) {
	f := newFixture(t, morning())

	// Hold both attempts after their duplicate check so they race on insert.
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.records.AfterFind = func(string) {
		arrived.Done()
		arrived.Wait()
	}

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1)))
		}(i)
	}
	wg.Wait()

	recorded, marked := 0, 0
	for _, res := range results {
		switch r := res.(type) {
		case Recorded:
			recorded++
		case Rejected:
			if r.Reason == ReasonAlreadyMarked {
				marked++
			}
		}
	}
	if recorded != 1 || marked != 1 {
		t.Errorf("got %d recorded and %d already marked, want 1 and 1", recorded, marked)
	}
	if f.records.Count() != 1 {
		t.Errorf("store has %d records, want 1", f.records.Count())
	}
}

func TestPunch_NotRegistered(t *testing.T) {
	tests := []struct {
		name       string
		employeeID string
	}{
		{name: "unknown employee", employeeID: "EMP404"},
		{name: "no face descriptor", employeeID: "EMP002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, morning())
			locator := LocatorFunc(func(ctx context.Context) (geofence.Coordinates, error) {
				t.Error("location must not be acquired")
				return campus, nil
			})

			res := f.orch.Punch(context.Background(), tt.employeeID, locator, noCapture(t))
			expectRejected(t, res, ReasonNotRegistered)
		})
	}
}

func TestPunch_LocationUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		locator Locator
	}{
		{name: "permission denied", locator: ReportedLocation{Error: "User denied Geolocation"}},
		{name: "no coordinates", locator: ReportedLocation{}},
		{name: "invalid coordinates", locator: ReportedLocation{Coords: &geofence.Coordinates{Lat: 123, Lng: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, morning())
			res := f.orch.Punch(context.Background(), "EMP001", tt.locator, noCapture(t))
			expectRejected(t, res, ReasonLocationUnavailable)
		})
	}
}

func TestComplete_NoFaceDetectedAllowsRetry(t *testing.T) {
	f := newFixture(t, morning())
	ctx := context.Background()

	attempt, rej := f.orch.Start(ctx, "EMP001", atCampus())
	if rej != nil {
		t.Fatalf("Start() rejected: %v", rej)
	}
	if attempt.State != StateLocationVerified {
		t.Fatalf("State = %s, want %s", attempt.State, StateLocationVerified)
	}

	rejected := expectRejected(t, f.orch.Complete(ctx, attempt, ReportedEmbedding(nil)), ReasonNoFaceDetected)
	if !errors.Is(rejected.Err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", rejected.Err)
	}
	if attempt.State != StateLocationVerified {
		t.Fatalf("State after no face = %s, want %s", attempt.State, StateLocationVerified)
	}

	expectRecorded(t, f.orch.Complete(ctx, attempt, ReportedEmbedding(faceOf(0.1))))
	if attempt.State != StateRecorded {
		t.Errorf("State = %s, want %s", attempt.State, StateRecorded)
	}

	// A finished attempt can't be completed again.
	expectRejected(t, f.orch.Complete(ctx, attempt, ReportedEmbedding(faceOf(0.1))), ReasonConfigurationError)
}

func TestPunch_DescriptorLengthMismatchIsConfigurationError(t *testing.T) {
	f := newFixture(t, morning())
	f.employees.AddEmployee(database.Employee{EmployeeID: "EMP003", Name: "Old Model", FaceDescriptor: make([]float32, 64)})

	res := f.orch.Punch(context.Background(), "EMP003", atCampus(), ReportedEmbedding(faceOf(0.1)))

	rej := expectRejected(t, res, ReasonConfigurationError)
	if !errors.Is(rej.Err, facematch.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", rej.Err)
	}
}

func TestPunch_PersistenceFailure(t *testing.T) {
	t.Run("find fails", func(t *testing.T) {
		f := newFixture(t, morning())
		f.records.FindError = errors.New("connection refused")

		rej := expectRejected(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))), ReasonPersistenceFailure)
		if !strings.Contains(rej.Message(), "connection refused") {
			t.Errorf("message %q should carry the store message", rej.Message())
		}
	})

	t.Run("insert fails", func(t *testing.T) {
		f := newFixture(t, morning())
		f.records.InsertError = errors.New("disk full")

		rej := expectRejected(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))), ReasonPersistenceFailure)
		if !strings.Contains(rej.Message(), "disk full") {
			t.Errorf("message %q should carry the store message", rej.Message())
		}
	})

	t.Run("resolver fails", func(t *testing.T) {
		f := newFixture(t, morning())
		f.employees.GetError = errors.New("timeout")

		expectRejected(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), noCapture(t)), ReasonPersistenceFailure)
	})
}

func TestPunch_InsertConflictIsAlreadyMarked(t *testing.T) {
	f := newFixture(t, morning())
	f.records.InsertError = database.ErrConflict

	expectRejected(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))), ReasonAlreadyMarked)
}

func TestPunch_CancelledContextWritesNothing(t *testing.T) {
	f := newFixture(t, morning())
	ctx, cancel := context.WithCancel(context.Background())

	capturer := CapturerFunc(func(ctx context.Context) ([]float32, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	expectRejected(t, f.orch.Punch(ctx, "EMP001", atCampus(), capturer), ReasonCancelled)
	if f.records.Count() != 0 {
		t.Error("no record should be written")
	}
}

func TestPunch_Classification(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		expected string
	}{
		{name: "exactly office start", at: time.Date(2025, time.March, 14, 9, 30, 0, 0, ist), expected: "On Time"},
		{name: "late entry", at: time.Date(2025, time.March, 14, 9, 40, 0, 0, ist), expected: "Late Entry"},
		{name: "half day", at: time.Date(2025, time.March, 14, 12, 0, 0, 0, ist), expected: "Half Day"},
		{name: "late", at: time.Date(2025, time.March, 14, 13, 5, 0, 0, ist), expected: "Late"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.at)
			rec := expectRecorded(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))))
			if rec.Record.Remark != tt.expected {
				t.Errorf("Remark = %q, want %q", rec.Record.Remark, tt.expected)
			}
		})
	}
}

func TestPunch_UsesSiteLocalDate(t *testing.T) {
	// 20:00 UTC on the 14th is 01:30 IST on the 15th.
	f := newFixture(t, time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC))

	rec := expectRecorded(t, f.orch.Punch(context.Background(), "EMP001", atCampus(), ReportedEmbedding(faceOf(0.1))))
	if rec.Record.DateString() != "2025-03-15" {
		t.Errorf("date = %s, want 2025-03-15", rec.Record.DateString())
	}
	if rec.Record.Remark != "On Time" {
		t.Errorf("Remark = %q, want On Time", rec.Record.Remark)
	}
}

func TestNewOrchestrator_InvalidConfig(t *testing.T) {
	ruleSet, _ := rules.ParseRuleSet("09:30", "09:45", "13:00", ist)
	valid := Config{
		Site:             geofence.Site{Center: campus, RadiusMeters: 2000},
		Rules:            ruleSet,
		MatchThreshold:   0.6,
		DescriptorLength: 128,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no rules", mutate: func(c *Config) { c.Rules = nil }},
		{name: "zero radius", mutate: func(c *Config) { c.Site.RadiusMeters = 0 }},
		{name: "bad center", mutate: func(c *Config) { c.Site.Center.Lat = 95 }},
		{name: "zero threshold", mutate: func(c *Config) { c.MatchThreshold = 0 }},
		{name: "zero length", mutate: func(c *Config) { c.DescriptorLength = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewOrchestrator(cfg, mock.NewMockEmployeeRepository(), mock.NewMockAttendanceRepository()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReason_Messages(t *testing.T) {
	reasons := []Reason{
		ReasonNotRegistered, ReasonLocationUnavailable, ReasonOutsideGeofence, ReasonNoFaceDetected,
		ReasonFaceMismatch, ReasonAlreadyMarked, ReasonConfigurationError, ReasonPersistenceFailure,
		ReasonCancelled,
	}
	for _, r := range reasons {
		if r.Message() == string(r) || r.Message() == "" {
			t.Errorf("reason %s has no message", r)
		}
	}
	if ReasonNoFaceDetected.Message() != ReasonFaceMismatch.Message() {
		t.Errorf("face detection and mismatch messages differ: %q vs %q",
			ReasonNoFaceDetected.Message(), ReasonFaceMismatch.Message())
	}
	if !ReasonNoFaceDetected.Retryable() || ReasonFaceMismatch.Retryable() {
		t.Error("only no_face_detected is retryable")
	}
}
