// Package geofence decides whether an observer is physically present at the site.
package geofence

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinates is returned by Validate for out-of-range or NaN input.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Validate checks that the pair is a real position on the globe.
// Distance and IsWithinSite never call it; sensor input is validated upstream.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return fmt.Errorf("%w: NaN component", ErrInvalidCoordinates)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Lng)
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinSite reports whether observer lies within radiusMeters of site.
// The boundary is inclusive.
func IsWithinSite(observer, site Coordinates, radiusMeters float64) bool {
	return Distance(observer, site) <= radiusMeters
}

// Site is the configured geofence: a center and an allowed radius.
type Site struct {
	Center       Coordinates
	RadiusMeters float64
}

// Check returns the observer's distance from the site center and whether it is inside.
func (s Site) Check(observer Coordinates) (float64, bool) {
	d := Distance(observer, s.Center)
	return d, d <= s.RadiusMeters
}
