package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mock"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

func identifyEmployees() *mock.MockEmployeeRepository {
	repo := mock.NewMockEmployeeRepository()
	repo.AddEmployee(database.Employee{EmployeeID: "EMP001", Name: "Asha", FaceDescriptor: faceOf(0)})
	repo.AddEmployee(database.Employee{EmployeeID: "EMP002", Name: "Ravi", FaceDescriptor: faceOf(0.5)})
	repo.AddEmployee(database.Employee{EmployeeID: "EMP003", Name: "No Face"})
	return repo
}

func TestIdentifier_RepositoryFallback(t *testing.T) {
	repo := identifyEmployees()
	id := NewIdentifier(nil, repo, facematch.DefaultThreshold, facematch.DescriptorLength)

	match, err := id.Identify(context.Background(), shiftedFace(0.5, 0.3))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if match == nil || match.EmployeeID != "EMP002" {
		t.Fatalf("expected EMP002, got %+v", match)
	}

	match, err = id.Identify(context.Background(), faceOf(3))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if match != nil {
		t.Errorf("expected no match, got %+v", match)
	}
}

func TestIdentifier_UsesIndex(t *testing.T) {
	repo := identifyEmployees()
	employees, _ := repo.ListFaceDescriptors(context.Background())

	idx := database.NewFaceIndex()
	if err := idx.Build(employees); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// The repository must not be consulted when the index is loaded.
	repo.NearestError = errors.New("should not be called")

	id := NewIdentifier(idx, repo, facematch.DefaultThreshold, facematch.DescriptorLength)
	match, err := id.Identify(context.Background(), shiftedFace(0, 0.2))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if match == nil || match.EmployeeID != "EMP001" || match.Name != "Asha" {
		t.Fatalf("expected EMP001, got %+v", match)
	}

	match, err = id.Identify(context.Background(), shiftedFace(0, 0.9))
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if match != nil {
		t.Errorf("expected no match beyond threshold, got %+v", match)
	}
}

func TestIdentifier_RejectsBadDescriptor(t *testing.T) {
	id := NewIdentifier(nil, identifyEmployees(), facematch.DefaultThreshold, facematch.DescriptorLength)
	if _, err := id.Identify(context.Background(), make([]float32, 10)); !errors.Is(err, facematch.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
