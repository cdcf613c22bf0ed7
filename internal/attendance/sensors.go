package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/punchclock/internal/geofence"
)

// Locator acquires the device position. It may block until a fix is available.
type Locator interface {
	Locate(ctx context.Context) (geofence.Coordinates, error)
}

// Capturer produces the live face descriptor. It returns ErrNoFaceDetected when
// the frame holds no face.
type Capturer interface {
	CaptureEmbedding(ctx context.Context) ([]float32, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (geofence.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (geofence.Coordinates, error) {
	return f(ctx)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context) ([]float32, error)

func (f CapturerFunc) CaptureEmbedding(ctx context.Context) ([]float32, error) {
	return f(ctx)
}

// ReportedLocation is a position reported by a client device. A nil Coords or a
// non-empty Error means the device could not obtain a position.
type ReportedLocation struct {
	Coords *geofence.Coordinates
	Error  string
}

func (r ReportedLocation) Locate(ctx context.Context) (geofence.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return geofence.Coordinates{}, err
	}
	if r.Error != "" {
		return geofence.Coordinates{}, fmt.Errorf("%w: %s", ErrLocationUnavailable, r.Error)
	}
	if r.Coords == nil {
		return geofence.Coordinates{}, ErrLocationUnavailable
	}
	return *r.Coords, nil
}

// ReportedEmbedding is a descriptor computed on the client. Empty means no face was detected.
type ReportedEmbedding []float32

func (r ReportedEmbedding) CaptureEmbedding(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(r) == 0 {
		return nil, ErrNoFaceDetected
	}
	return []float32(r), nil
}
