package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

// FaceIndexMetadata stores metadata for validating a cached face index.
type FaceIndexMetadata struct {
	FaceCount int       `json:"face_count"`
	Dim       int       `json:"dim"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
	Keys      []string  `json:"keys"`
}

const faceIndexMetadataVersion = 2

// ErrIndexNotInitialized is returned by Search before the first Build or Load.
var ErrIndexNotInitialized = errors.New("face index not initialized")

// FaceIndex is an in-memory HNSW graph over registered employee face descriptors,
// keyed by employee id and using Euclidean distance.
//
// The graph never deletes nodes: hnsw.Graph.Delete leaves it unusable for later
// Add calls. Removed employees stay in the graph and are filtered out by names;
// re-registering a face that is already in the graph rebuilds it from vectors.
type FaceIndex struct {
	graph   *hnsw.Graph[string]
	names   map[string]string    // employee id -> name, live entries only
	vectors map[string][]float32 // employee id -> descriptor, live entries only
	nodes   map[string]struct{}  // keys present in graph, live or not
	dim     int
	mu      sync.RWMutex
}

// NewFaceIndex creates a new empty index.
func NewFaceIndex() *FaceIndex {
	return &FaceIndex{
		names:   make(map[string]string),
		vectors: make(map[string][]float32),
		nodes:   make(map[string]struct{}),
	}
}

func newFaceGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// buildFaceGraph inserts vectors in key order so rebuilds are deterministic.
func buildFaceGraph(vectors map[string][]float32) (*hnsw.Graph[string], map[string]struct{}) {
	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := newFaceGraph()
	nodes := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		g.Add(hnsw.MakeNode(k, vectors[k]))
		nodes[k] = struct{}{}
	}
	return g, nodes
}

// Build replaces the index content with the descriptors of employees.
// Employees without a descriptor are skipped.
func (f *FaceIndex) Build(employees []Employee) error {
	names := make(map[string]string, len(employees))
	vectors := make(map[string][]float32, len(employees))
	dim := 0

	for i := range employees {
		e := &employees[i]
		if !e.HasFace() {
			continue
		}
		if dim == 0 {
			dim = len(e.FaceDescriptor)
		} else if len(e.FaceDescriptor) != dim {
			return fmt.Errorf("employee %s: %w: %d vs %d", e.EmployeeID, facematch.ErrDimensionMismatch, len(e.FaceDescriptor), dim)
		}
		names[e.EmployeeID] = e.Name
		vectors[e.EmployeeID] = e.FaceDescriptor
	}
	g, nodes := buildFaceGraph(vectors)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.graph = g
	f.names = names
	f.vectors = vectors
	f.nodes = nodes
	f.dim = dim
	return nil
}

// Upsert adds or replaces the descriptor of a single employee.
func (f *FaceIndex) Upsert(e *Employee) error {
	if !e.HasFace() {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.graph == nil || len(f.names) == 0 {
		// Nothing live is left, so stale nodes and the old dimension can go.
		f.graph = newFaceGraph()
		f.vectors = make(map[string][]float32)
		f.nodes = make(map[string]struct{})
		f.dim = 0
	}
	if f.dim != 0 && len(e.FaceDescriptor) != f.dim {
		return fmt.Errorf("employee %s: %w: %d vs %d", e.EmployeeID, facematch.ErrDimensionMismatch, len(e.FaceDescriptor), f.dim)
	}

	descriptor := slices.Clone(e.FaceDescriptor)
	f.names[e.EmployeeID] = e.Name
	f.dim = len(descriptor)

	if _, ok := f.nodes[e.EmployeeID]; !ok {
		f.graph.Add(hnsw.MakeNode(e.EmployeeID, descriptor))
		f.nodes[e.EmployeeID] = struct{}{}
		f.vectors[e.EmployeeID] = descriptor
		return nil
	}
	if old, ok := f.vectors[e.EmployeeID]; ok && slices.Equal(old, descriptor) {
		return nil
	}
	f.vectors[e.EmployeeID] = descriptor
	f.graph, f.nodes = buildFaceGraph(f.vectors)
	return nil
}

// Remove drops an employee from search results. The node stays in the graph
// until the next rebuild.
func (f *FaceIndex) Remove(employeeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.names, employeeID)
	delete(f.vectors, employeeID)
}

// Search returns up to k nearest employees to query, nearest first.
func (f *FaceIndex) Search(query []float32, k int) ([]facematch.MatchResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.graph == nil {
		return nil, ErrIndexNotInitialized
	}
	if len(f.names) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", facematch.ErrDimensionMismatch, len(query), f.dim)
	}

	neighbors := f.graph.Search(query, k*HNSWSearchMultiplier)

	results := make([]facematch.MatchResult, 0, len(neighbors))
	for _, n := range neighbors {
		name, ok := f.names[n.Key]
		if !ok {
			continue
		}
		d, err := facematch.Distance(query, n.Value)
		if err != nil {
			return nil, err
		}
		results = append(results, facematch.MatchResult{EmployeeID: n.Key, Name: name, Distance: d})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of indexed employees.
func (f *FaceIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.names)
}

// IsEmpty returns true if nothing has been built or loaded.
func (f *FaceIndex) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.graph == nil
}

// Save persists the graph to path and its metadata to path.meta.
// An empty index removes both files.
func (f *FaceIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.graph == nil || len(f.names) == 0 {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	graph := f.graph
	if len(f.nodes) != len(f.names) {
		graph, _ = buildFaceGraph(f.vectors)
	}

	file, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create face index file: %w", err)
	}
	if err := graph.Export(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("exporting face graph: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing face index file: %w", err)
	}

	keys := make([]string, 0, len(f.names))
	for id := range f.names {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	metadata := FaceIndexMetadata{
		Keys:      keys,
		FaceCount: len(f.names),
		Dim:       f.dim,
		BuildTime: time.Now(),
		Version:   faceIndexMetadataVersion,
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadFaceIndexMetadata reads the metadata written next to a saved index.
func LoadFaceIndexMetadata(path string) (FaceIndexMetadata, error) {
	var metadata FaceIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Load reads a saved graph from path. The graph only stores keys and vectors,
// so names are restored from employees. The load is rejected as stale when the
// cached keys differ from the employees that have descriptors.
func (f *FaceIndex) Load(path string, employees []Employee) error {
	metadata, err := LoadFaceIndexMetadata(path)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(employees))
	vectors := make(map[string][]float32, len(employees))
	for i := range employees {
		if employees[i].HasFace() {
			names[employees[i].EmployeeID] = employees[i].Name
			vectors[employees[i].EmployeeID] = employees[i].FaceDescriptor
		}
	}
	if metadata.FaceCount != len(names) {
		return fmt.Errorf("face index is stale: cached %d faces, database has %d", metadata.FaceCount, len(names))
	}
	if metadata.Version != faceIndexMetadataVersion {
		return fmt.Errorf("face index is stale: metadata version %d, want %d", metadata.Version, faceIndexMetadataVersion)
	}
	for _, id := range metadata.Keys {
		if _, ok := names[id]; !ok {
			return fmt.Errorf("face index is stale: %s has no registered face", id)
		}
	}
	if len(metadata.Keys) != len(names) {
		return fmt.Errorf("face index is stale: cached %d keys, database has %d", len(metadata.Keys), len(names))
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load face index: %w", err)
	}
	saved.Graph.Distance = hnsw.EuclideanDistance

	f.mu.Lock()
	defer f.mu.Unlock()
	f.graph = saved.Graph
	f.names = names
	f.vectors = vectors
	f.nodes = make(map[string]struct{}, len(names))
	for id := range names {
		f.nodes[id] = struct{}{}
	}
	f.dim = metadata.Dim
	return nil
}
