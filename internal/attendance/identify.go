package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

// FaceSearcher finds the registered faces nearest to a descriptor.
type FaceSearcher interface {
	FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.Employee, []float64, error)
}

// Identifier resolves a live descriptor to the registered employee it belongs to.
// It prefers the in-memory HNSW index and falls back to the repository search.
type Identifier struct {
	index     *database.FaceIndex
	searcher  FaceSearcher
	threshold float64
	length    int
}

// NewIdentifier creates an identifier. index may be nil.
func NewIdentifier(index *database.FaceIndex, searcher FaceSearcher, threshold float64, length int) *Identifier {
	return &Identifier{index: index, searcher: searcher, threshold: threshold, length: length}
}

// Identify returns the nearest employee within the match threshold, or nil if
// nobody is close enough.
func (i *Identifier) Identify(ctx context.Context, live []float32) (*facematch.MatchResult, error) {
	if err := facematch.ValidateDescriptor(live, i.length); err != nil {
		return nil, err
	}

	if i.index != nil && !i.index.IsEmpty() {
		results, err := i.index.Search(live, 1)
		if err != nil {
			return nil, fmt.Errorf("face index search: %w", err)
		}
		if len(results) == 0 || results[0].Distance > i.threshold {
			return nil, nil
		}
		return &results[0], nil
	}

	employees, _, err := i.searcher.FindNearestFaces(ctx, live, 1)
	if err != nil {
		return nil, fmt.Errorf("nearest face search: %w", err)
	}
	candidates := make([]facematch.Candidate, len(employees))
	for j, e := range employees {
		candidates[j] = facematch.Candidate{EmployeeID: e.EmployeeID, Name: e.Name, Descriptor: e.FaceDescriptor}
	}
	return facematch.BestMatch(live, candidates, i.threshold)
}
