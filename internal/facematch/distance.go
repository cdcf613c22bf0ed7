package facematch

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two descriptors cannot be compared.
// It indicates a deployment defect (model/config mismatch), not a user error.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Distance computes the Euclidean distance between two descriptors.
// Both must have the same non-zero length; they are never truncated.
func Distance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty descriptor (%d vs %d)", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// IsMatch reports whether live and stored belong to the same face.
// The threshold is inclusive: distance <= threshold is a match.
func IsMatch(live, stored []float32, threshold float64) (bool, float64, error) {
	d, err := Distance(live, stored)
	if err != nil {
		return false, 0, err
	}
	return d <= threshold, d, nil
}

// ValidateDescriptor checks a descriptor against the expected model length.
func ValidateDescriptor(descriptor []float32, length int) error {
	if len(descriptor) != length {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(descriptor), length)
	}
	for i, v := range descriptor {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("descriptor value %d is not finite", i)
		}
	}
	return nil
}

// BestMatch finds the closest candidate to live within threshold.
// Returns nil if no candidate is close enough. Candidates with a different
// descriptor length are a configuration error and abort the search.
func BestMatch(live []float32, candidates []Candidate, threshold float64) (*MatchResult, error) {
	var best *Candidate
	bestDistance := math.MaxFloat64

	for i := range candidates {
		if len(candidates[i].Descriptor) == 0 {
			continue
		}
		d, err := Distance(live, candidates[i].Descriptor)
		if err != nil {
			return nil, fmt.Errorf("comparing with %s: %w", candidates[i].EmployeeID, err)
		}
		if d < bestDistance {
			bestDistance = d
			best = &candidates[i]
		}
	}

	if best == nil || bestDistance > threshold {
		return nil, nil
	}

	return &MatchResult{
		EmployeeID: best.EmployeeID,
		Name:       best.Name,
		Distance:   bestDistance,
	}, nil
}
