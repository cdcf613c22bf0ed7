// Package attendance runs a punch attempt through location, face and duplicate
// checks and records at most one attendance per employee per site-local day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
	"github.com/kozaktomas/punchclock/internal/geofence"
	"github.com/kozaktomas/punchclock/internal/rules"
)

// EmployeeResolver looks up the employee behind the current identity.
// It returns nil, nil when the employee does not exist.
type EmployeeResolver interface {
	ResolveEmployee(ctx context.Context, employeeID string) (*database.Employee, error)
}

// RecordStore is the attendance persistence the orchestrator depends on.
// InsertRecord must return database.ErrConflict for a second record of the same day.
type RecordStore interface {
	FindRecord(ctx context.Context, employeeID string, date time.Time) (*database.AttendanceRecord, error)
	InsertRecord(ctx context.Context, rec *database.AttendanceRecord) error
}

// Config is the immutable verification configuration.
type Config struct {
	Site             geofence.Site
	Rules            *rules.RuleSet
	MatchThreshold   float64
	DescriptorLength int
}

// Validate reports configuration errors that would make every punch fail.
func (c Config) Validate() error {
	if c.Rules == nil {
		return errors.New("attendance rules are required")
	}
	if err := c.Site.Center.Validate(); err != nil {
		return fmt.Errorf("site center: %w", err)
	}
	if !(c.Site.RadiusMeters > 0) {
		return fmt.Errorf("site radius must be positive, got %v", c.Site.RadiusMeters)
	}
	if !(c.MatchThreshold > 0) {
		return fmt.Errorf("face match threshold must be positive, got %v", c.MatchThreshold)
	}
	if c.DescriptorLength <= 0 {
		return fmt.Errorf("descriptor length must be positive, got %d", c.DescriptorLength)
	}
	return nil
}

// Attempt is one employee's in-flight punch. It is owned by a single goroutine at a time.
type Attempt struct {
	ID             string
	EmployeeID     string
	State          State
	Location       geofence.Coordinates
	DistanceMeters float64
	StartedAt      time.Time

	employee *database.Employee
}

// Orchestrator drives punch attempts through the verification pipeline.
type Orchestrator struct {
	cfg       Config
	employees EmployeeResolver
	records   RecordStore
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for punch-in instants.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator validates cfg and returns an orchestrator.
func NewOrchestrator(cfg Config, employees EmployeeResolver, records RecordStore, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if employees == nil || records == nil {
		return nil, errors.New("employee resolver and record store are required")
	}

	o := &Orchestrator{
		cfg:       cfg,
		employees: employees,
		records:   records,
		now:       time.Now,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Punch runs a complete attempt: identity, location, face, duplicate check and insert.
func (o *Orchestrator) Punch(ctx context.Context, employeeID string, locator Locator, capturer Capturer) Result {
	attempt, rejected := o.Start(ctx, employeeID, locator)
	if rejected != nil {
		return *rejected
	}
	return o.Complete(ctx, attempt, capturer)
}

// Start resolves the employee and verifies the location. On success the attempt
// is in StateLocationVerified and can be completed, possibly more than once if
// no face is detected.
func (o *Orchestrator) Start(ctx context.Context, employeeID string, locator Locator) (*Attempt, *Rejected) {
	a := &Attempt{
		ID:         ksuid.New().String(),
		EmployeeID: employeeID,
		State:      StateIdle,
		StartedAt:  o.now(),
	}
	log := o.logger.With("attempt_id", a.ID, "employee_id", employeeID)

	employee, err := o.employees.ResolveEmployee(ctx, employeeID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.reject(log, a, ReasonCancelled, ctx.Err())
		}
		return nil, o.reject(log, a, ReasonPersistenceFailure, fmt.Errorf("resolving employee: %w", err))
	}
	if employee == nil || !employee.HasFace() {
		return nil, o.reject(log, a, ReasonNotRegistered, nil)
	}
	a.employee = employee

	a.State = StateLocationPending
	coords, err := locator.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.reject(log, a, ReasonCancelled, ctx.Err())
		}
		return nil, o.reject(log, a, ReasonLocationUnavailable, err)
	}
	if err := coords.Validate(); err != nil {
		return nil, o.reject(log, a, ReasonLocationUnavailable, err)
	}

	distance, inside := o.cfg.Site.Check(coords)
	a.Location = coords
	a.DistanceMeters = distance
	if !inside {
		log.Infow("punch outside geofence", "distance_m", distance, "radius_m", o.cfg.Site.RadiusMeters)
		return nil, o.reject(log, a, ReasonOutsideGeofence, nil)
	}

	a.State = StateLocationVerified
	log.Debugw("location verified", "distance_m", distance)
	return a, nil
}

// Complete captures the live face, matches it and records attendance.
// A NoFaceDetected rejection leaves the attempt in StateLocationVerified.
func (o *Orchestrator) Complete(ctx context.Context, a *Attempt, capturer Capturer) Result {
	log := o.logger.With("attempt_id", a.ID, "employee_id", a.EmployeeID)

	if a.State != StateLocationVerified || a.employee == nil {
		return *o.reject(log, a, ReasonConfigurationError, errInvalidState)
	}

	a.State = StateFacePending
	live, err := capturer.CaptureEmbedding(ctx)
	if err != nil || len(live) == 0 {
		if ctx.Err() != nil {
			return *o.reject(log, a, ReasonCancelled, ctx.Err())
		}
		if err == nil {
			err = ErrNoFaceDetected
		}
		a.State = StateLocationVerified
		log.Infow("no face detected", "error", err)
		return Rejected{Reason: ReasonNoFaceDetected, Err: err}
	}

	if len(live) != o.cfg.DescriptorLength || len(a.employee.FaceDescriptor) != o.cfg.DescriptorLength {
		err := fmt.Errorf("%w: live %d, stored %d, configured %d", facematch.ErrDimensionMismatch,
			len(live), len(a.employee.FaceDescriptor), o.cfg.DescriptorLength)
		return *o.reject(log, a, ReasonConfigurationError, err)
	}
	match, distance, err := facematch.IsMatch(live, a.employee.FaceDescriptor, o.cfg.MatchThreshold)
	if err != nil {
		return *o.reject(log, a, ReasonConfigurationError, err)
	}
	if !match {
		log.Infow("face mismatch", "distance", distance, "threshold", o.cfg.MatchThreshold)
		return *o.reject(log, a, ReasonFaceMismatch, nil)
	}
	a.State = StateFaceVerified

	punchIn := o.now()
	date := o.cfg.Rules.LocalDate(punchIn)

	existing, err := o.records.FindRecord(ctx, a.EmployeeID, date)
	if err != nil {
		if ctx.Err() != nil {
			return *o.reject(log, a, ReasonCancelled, ctx.Err())
		}
		return *o.reject(log, a, ReasonPersistenceFailure, err)
	}
	if existing != nil {
		return *o.reject(log, a, ReasonAlreadyMarked, nil)
	}
	a.State = StateDuplicateChecked

	cls := o.cfg.Rules.Classify(punchIn)
	rec := &database.AttendanceRecord{
		EmployeeID: a.EmployeeID,
		Date:       date,
		PunchIn:    punchIn,
		Status:     string(cls.Status),
		Remark:     string(cls.Remark),
	}
	if err := o.records.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return *o.reject(log, a, ReasonAlreadyMarked, nil)
		}
		if ctx.Err() != nil {
			return *o.reject(log, a, ReasonCancelled, ctx.Err())
		}
		return *o.reject(log, a, ReasonPersistenceFailure, err)
	}

	a.State = StateRecorded
	log.Infow("attendance recorded",
		"date", rec.DateString(),
		"remark", rec.Remark,
		"distance", distance,
		"distance_m", a.DistanceMeters,
	)
	return Recorded{Record: *rec, Classification: cls}
}

func (o *Orchestrator) reject(log *zap.SugaredLogger, a *Attempt, reason Reason, err error) *Rejected {
	from := a.State
	a.State = StateRejected

	switch reason {
	case ReasonConfigurationError:
		log.Errorw("punch rejected", "reason", reason, "state", from, "error", err)
	case ReasonPersistenceFailure:
		log.Warnw("punch rejected", "reason", reason, "state", from, "error", err)
	default:
		log.Infow("punch rejected", "reason", reason, "state", from)
	}
	return &Rejected{Reason: reason, Err: err}
}
