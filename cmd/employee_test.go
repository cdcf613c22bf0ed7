package cmd

import (
	"errors"
	"testing"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mock"
)

func TestImportEmployees(t *testing.T) {
	repo := mock.NewMockEmployeeRepository()
	repo.AddEmployee(database.Employee{EmployeeID: "EMP001", Name: "Existing", Email: "asha@example.com"})

	entries := []importEntry{
		{Name: "Asha Rao", Email: "Asha@Example.com"},
		{Name: "Vikram Nair", Email: "vikram@example.com", Role: "admin", FaceDescriptor: []float32{0.1, 0.2, 0.3}},
		{Name: "Meera Iyer", Email: "meera@example.com", FaceDescriptor: []float32{0.1}},
		{Name: "", Email: "nameless@example.com"},
		{Name: "Bad Role", Email: "role@example.com", Role: "root"},
	}

	result, err := importEmployees(t.Context(), repo, entries, 3, nil)
	if err != nil {
		t.Fatalf("importEmployees() error = %v", err)
	}

	if len(result.Created) != 2 || result.Created[0] != "EMP002" || result.Created[1] != "EMP003" {
		t.Errorf("unexpected created ids %v", result.Created)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped duplicate, got %d", result.Skipped)
	}
	if result.FacesAdded != 1 {
		t.Errorf("expected 1 face registered, got %d", result.FacesAdded)
	}
	if len(result.Errors) != 3 {
		t.Errorf("expected 3 errors (short descriptor, missing name, bad role), got %v", result.Errors)
	}

	vikram, _ := repo.GetEmployee(t.Context(), "EMP002")
	if vikram == nil || vikram.Role != database.RoleAdmin || !vikram.HasFace() {
		t.Errorf("unexpected imported employee %+v", vikram)
	}
	meera, _ := repo.GetEmployee(t.Context(), "EMP003")
	if meera == nil || meera.HasFace() {
		t.Errorf("invalid descriptor must not be stored: %+v", meera)
	}
}

func TestImportEmployees_StoreFailure(t *testing.T) {
	repo := mock.NewMockEmployeeRepository()
	repo.CreateError = errors.New("connection refused")

	result, err := importEmployees(t.Context(), repo, []importEntry{{Name: "Asha", Email: "asha@example.com"}}, 3, nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if len(result.Created) != 0 {
		t.Errorf("expected nothing created, got %v", result.Created)
	}
}
