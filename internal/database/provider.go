package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBackendNotInitialized is returned by the Get* accessors before a backend registered itself.
var ErrBackendNotInitialized = errors.New("database backend not initialized: DATABASE_URL is required")

var (
	backendMu        sync.RWMutex
	backendName      string
	employeeWriter   func() EmployeeWriter
	attendanceWriter func() AttendanceWriter
	faceIndex        *FaceIndex
)

// RegisterBackend registers repository constructors of the active backend.
// This is called by the postgres and mariadb packages to avoid import cycles.
func RegisterBackend(name string, employees func() EmployeeWriter, attendance func() AttendanceWriter) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	employeeWriter = employees
	attendanceWriter = attendance
}

// ResetBackend clears the registered backend. Used by tests and on shutdown.
func ResetBackend() {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = ""
	employeeWriter = nil
	attendanceWriter = nil
	faceIndex = nil
}

// BackendName returns the name of the registered backend, or "" if none.
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName != ""
}

// GetEmployeeWriter returns an EmployeeWriter from the active backend
func GetEmployeeWriter(ctx context.Context) (EmployeeWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if backendName == "" {
		return nil, ErrBackendNotInitialized
	}
	if employeeWriter == nil {
		return nil, fmt.Errorf("%s employee repository not registered", backendName)
	}
	return employeeWriter(), nil
}

// GetEmployeeReader returns an EmployeeReader from the active backend
func GetEmployeeReader(ctx context.Context) (EmployeeReader, error) {
	return GetEmployeeWriter(ctx)
}

// GetAttendanceWriter returns an AttendanceWriter from the active backend
func GetAttendanceWriter(ctx context.Context) (AttendanceWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if backendName == "" {
		return nil, ErrBackendNotInitialized
	}
	if attendanceWriter == nil {
		return nil, fmt.Errorf("%s attendance repository not registered", backendName)
	}
	return attendanceWriter(), nil
}

// GetAttendanceReader returns an AttendanceReader from the active backend
func GetAttendanceReader(ctx context.Context) (AttendanceReader, error) {
	return GetAttendanceWriter(ctx)
}

// RegisterFaceIndex registers the shared in-memory face index.
func RegisterFaceIndex(idx *FaceIndex) {
	backendMu.Lock()
	defer backendMu.Unlock()
	faceIndex = idx
}

// GetFaceIndex returns the registered face index, or nil if not registered.
func GetFaceIndex() *FaceIndex {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return faceIndex
}

// RebuildFaceIndex rebuilds the registered face index from the employee repository
// and persists it to path when path is not empty. It is a no-op without a registered index.
func RebuildFaceIndex(ctx context.Context, path string) (int, error) {
	idx := GetFaceIndex()
	if idx == nil {
		return 0, nil
	}

	repo, err := GetEmployeeReader(ctx)
	if err != nil {
		return 0, err
	}
	employees, err := repo.ListFaceDescriptors(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading face descriptors: %w", err)
	}
	if err := idx.Build(employees); err != nil {
		return 0, fmt.Errorf("building face index: %w", err)
	}
	if path != "" {
		if err := idx.Save(path); err != nil {
			return idx.Count(), fmt.Errorf("saving face index: %w", err)
		}
	}
	return idx.Count(), nil
}
