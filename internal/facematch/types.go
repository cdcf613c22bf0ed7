// Package facematch compares face descriptors produced by the external
// recognition model. Lower Euclidean distance means higher similarity.
package facematch

// DescriptorLength is the embedding size produced by the recognition model.
const DescriptorLength = 128

// DefaultThreshold is the accept/reject boundary for Euclidean distance.
// It is a property of the embedding model; deployments override it through config.
const DefaultThreshold = 0.6

// Candidate is a registered descriptor that a live capture can be compared to.
type Candidate struct {
	EmployeeID string
	Name       string
	Descriptor []float32
}

// MatchResult is the outcome of comparing a live descriptor to candidates.
type MatchResult struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name,omitempty"`
	Distance   float64 `json:"distance"`
}
