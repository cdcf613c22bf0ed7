package handlers

import (
	"context"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
)

// BackendStore resolves repositories from the registered database backend on
// every call, so the punch pipeline follows whatever backend serve configured.
type BackendStore struct{}

func (BackendStore) ResolveEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	repo, err := database.GetEmployeeReader(ctx)
	if err != nil {
		return nil, err
	}
	return repo.GetEmployee(ctx, employeeID)
}

func (BackendStore) FindRecord(ctx context.Context, employeeID string, date time.Time) (*database.AttendanceRecord, error) {
	repo, err := database.GetAttendanceReader(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FindRecord(ctx, employeeID, date)
}

func (BackendStore) InsertRecord(ctx context.Context, rec *database.AttendanceRecord) error {
	repo, err := database.GetAttendanceWriter(ctx)
	if err != nil {
		return err
	}
	return repo.InsertRecord(ctx, rec)
}

func (BackendStore) FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.Employee, []float64, error) {
	repo, err := database.GetEmployeeReader(ctx)
	if err != nil {
		return nil, nil, err
	}
	return repo.FindNearestFaces(ctx, descriptor, limit)
}
