package database

import (
	"context"
	"time"
)

// EmployeeReader provides read-only access to employees
type EmployeeReader interface {
	// GetEmployee retrieves an employee by its EMP### identifier, returns nil if not found
	GetEmployee(ctx context.Context, employeeID string) (*Employee, error)
	// ListEmployees returns all employees ordered by employee id
	ListEmployees(ctx context.Context) ([]Employee, error)
	// CountEmployees returns the total number of employees
	CountEmployees(ctx context.Context) (int, error)
	// ListFaceDescriptors returns all employees that have a registered face descriptor
	ListFaceDescriptors(ctx context.Context) ([]Employee, error)
	// FindNearestFaces returns employees whose descriptors are closest (Euclidean) to descriptor,
	// nearest first, together with their distances
	FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]Employee, []float64, error)
}

// EmployeeWriter provides write access to employees
type EmployeeWriter interface {
	EmployeeReader

	// NextEmployeeID returns the next free sequential identifier (EMP001 when there are none)
	NextEmployeeID(ctx context.Context) (string, error)
	// CreateEmployee inserts a new employee. Returns ErrConflict if the employee id or email is taken.
	CreateEmployee(ctx context.Context, e *Employee) error
	// UpdateEmployee updates name, email, department and role. Returns ErrNotFound if absent.
	UpdateEmployee(ctx context.Context, e *Employee) error
	// DeleteEmployee removes an employee and its attendance records. Returns ErrNotFound if absent.
	DeleteEmployee(ctx context.Context, employeeID string) error
	// SetFaceDescriptor registers or replaces the face descriptor of an employee
	SetFaceDescriptor(ctx context.Context, employeeID string, descriptor []float32) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// FindRecord returns the record of an employee on a date, or nil if there is none
	FindRecord(ctx context.Context, employeeID string, date time.Time) (*AttendanceRecord, error)
	// ListByEmployee returns the records of one employee, newest date first
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]AttendanceRecord, error)
	// ListByDate returns all records of one date ordered by punch-in time
	ListByDate(ctx context.Context, date time.Time) ([]AttendanceRecord, error)
	// CountRemarks returns the number of records per remark on one date
	CountRemarks(ctx context.Context, date time.Time) ([]RemarkCount, error)
	// MonthlyReport returns present days per employee for dates in [from, to]
	MonthlyReport(ctx context.Context, from, to time.Time) ([]MonthlySummary, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// InsertRecord persists a new record, assigning ID and CreatedAt when unset.
	// Returns ErrConflict if a record for the same employee and date already exists.
	InsertRecord(ctx context.Context, rec *AttendanceRecord) error
}
