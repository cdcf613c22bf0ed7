package attendance

import (
	"errors"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
)

var (
	// ErrNoFaceDetected is returned by a Capturer when the frame contains no face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrLocationUnavailable is returned by a Locator when no position could be obtained.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrAttemptNotFound is returned for unknown, expired or foreign attempts.
	ErrAttemptNotFound = errors.New("punch attempt not found")

	errInvalidState = errors.New("attempt is not awaiting a face capture")
)

// Reason is why a punch attempt was rejected.
type Reason string

const (
	ReasonNotRegistered       Reason = "not_registered"
	ReasonLocationUnavailable Reason = "location_unavailable"
	ReasonOutsideGeofence     Reason = "outside_geofence"
	ReasonNoFaceDetected      Reason = "no_face_detected"
	ReasonFaceMismatch        Reason = "face_mismatch"
	ReasonAlreadyMarked       Reason = "already_marked"
	ReasonConfigurationError  Reason = "configuration_error"
	ReasonPersistenceFailure  Reason = "persistence_failure"
	ReasonCancelled           Reason = "cancelled"
)

// faceCheckFailed is shown for both detection failures and mismatches; the
// reason code and the log line tell them apart.
const faceCheckFailed = "Face could not be verified, please try again"

var reasonMessages = map[Reason]string{
	ReasonNotRegistered:       "Face not registered for this employee",
	ReasonLocationUnavailable: "Location permission denied or unavailable",
	ReasonOutsideGeofence:     "You are outside the allowed campus area",
	ReasonNoFaceDetected:      faceCheckFailed,
	ReasonFaceMismatch:        faceCheckFailed,
	ReasonAlreadyMarked:       "Attendance already marked today",
	ReasonConfigurationError:  "Attendance is misconfigured, contact an administrator",
	ReasonPersistenceFailure:  "Attendance could not be saved",
	ReasonCancelled:           "Punch attempt was cancelled",
}

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// Retryable reports whether the same attempt may continue after this rejection.
func (r Reason) Retryable() bool {
	return r == ReasonNoFaceDetected
}

// Result is the outcome of a punch attempt: either Recorded or Rejected.
type Result interface {
	isResult()
}

// Recorded is a successful punch with the persisted record.
type Recorded struct {
	Record         database.AttendanceRecord
	Classification rules.Classification
}

// Rejected is a refused punch. Err carries the underlying cause, if any.
type Rejected struct {
	Reason Reason
	Err    error
}

func (Recorded) isResult() {}
func (Rejected) isResult() {}

// Message returns the user-facing message. Persistence failures carry the store message.
func (r Rejected) Message() string {
	if r.Reason == ReasonPersistenceFailure && r.Err != nil {
		return r.Reason.Message() + ": " + r.Err.Error()
	}
	return r.Reason.Message()
}

func (r Rejected) Error() string {
	if r.Err != nil {
		return string(r.Reason) + ": " + r.Err.Error()
	}
	return string(r.Reason)
}

func (r Rejected) Unwrap() error {
	return r.Err
}
