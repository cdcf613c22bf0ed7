// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
	"github.com/kozaktomas/punchclock/internal/rules"
)

// MockEmployeeRepository is a mock implementation of database.EmployeeWriter
type MockEmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]*database.Employee

	// Track calls
	SetFaceCalls []string

	// Error injection
	GetError     error
	ListError    error
	CountError   error
	NearestError error
	NextIDError  error
	CreateError  error
	UpdateError  error
	DeleteError  error
	SetFaceError error
}

// NewMockEmployeeRepository creates a new mock employee repository
func NewMockEmployeeRepository() *MockEmployeeRepository {
	return &MockEmployeeRepository{
		employees: make(map[string]*database.Employee),
	}
}

// AddEmployee adds an employee to the mock store
func (m *MockEmployeeRepository) AddEmployee(e database.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = database.NewRowID()
	}
	if e.Role == "" {
		e.Role = database.RoleEmployee
	}
	m.employees[e.EmployeeID] = &e
}

func (m *MockEmployeeRepository) sorted() []database.Employee {
	result := make([]database.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result
}

// GetEmployee returns a copy of the employee, or nil if absent
func (m *MockEmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[employeeID]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

// ListEmployees returns all employees ordered by employee id
func (m *MockEmployeeRepository) ListEmployees(ctx context.Context) ([]database.Employee, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(), nil
}

// CountEmployees returns the number of employees
func (m *MockEmployeeRepository) CountEmployees(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

// ListFaceDescriptors returns employees with a registered face
func (m *MockEmployeeRepository) ListFaceDescriptors(ctx context.Context) ([]database.Employee, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.Employee
	for _, e := range m.sorted() {
		if e.HasFace() {
			result = append(result, e)
		}
	}
	return result, nil
}

// FindNearestFaces does a linear Euclidean scan over registered faces
func (m *MockEmployeeRepository) FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.Employee, []float64, error) {
	if m.NearestError != nil {
		return nil, nil, m.NearestError
	}
	faces, err := m.ListFaceDescriptors(ctx)
	if err != nil {
		return nil, nil, err
	}

	type scored struct {
		e database.Employee
		d float64
	}
	var all []scored
	for _, e := range faces {
		d, err := facematch.Distance(descriptor, e.FaceDescriptor)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, scored{e: e, d: d})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].d < all[j].d })
	if len(all) > limit {
		all = all[:limit]
	}

	employees := make([]database.Employee, len(all))
	distances := make([]float64, len(all))
	for i, s := range all {
		employees[i] = s.e
		distances[i] = s.d
	}
	return employees, distances, nil
}

// NextEmployeeID returns the identifier after the highest EMP### in the store
func (m *MockEmployeeRepository) NextEmployeeID(ctx context.Context) (string, error) {
	if m.NextIDError != nil {
		return "", m.NextIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.employees))
	for id := range m.employees {
		ids = append(ids, id)
	}
	return database.NextEmployeeIDFrom(ids), nil
}

// CreateEmployee stores a new employee, rejecting duplicate ids and emails
func (m *MockEmployeeRepository) CreateEmployee(ctx context.Context, e *database.Employee) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[e.EmployeeID]; ok {
		return fmt.Errorf("employee %s: %w", e.EmployeeID, database.ErrConflict)
	}
	for _, existing := range m.employees {
		if e.Email != "" && existing.Email == e.Email {
			return fmt.Errorf("email %s: %w", e.Email, database.ErrConflict)
		}
	}
	if e.ID == "" {
		e.ID = database.NewRowID()
	}
	if e.Role == "" {
		e.Role = database.RoleEmployee
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	c := *e
	m.employees[e.EmployeeID] = &c
	return nil
}

// UpdateEmployee updates the profile fields of an employee
func (m *MockEmployeeRepository) UpdateEmployee(ctx context.Context, e *database.Employee) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.employees[e.EmployeeID]
	if !ok {
		return database.ErrNotFound
	}
	existing.Name = e.Name
	existing.Email = e.Email
	existing.Department = e.Department
	existing.Role = e.Role
	existing.UpdatedAt = time.Now()
	return nil
}

// DeleteEmployee removes an employee
func (m *MockEmployeeRepository) DeleteEmployee(ctx context.Context, employeeID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employeeID]; !ok {
		return database.ErrNotFound
	}
	delete(m.employees, employeeID)
	return nil
}

// SetFaceDescriptor registers a descriptor for an employee
func (m *MockEmployeeRepository) SetFaceDescriptor(ctx context.Context, employeeID string, descriptor []float32) error {
	if m.SetFaceError != nil {
		return m.SetFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[employeeID]
	if !ok {
		return database.ErrNotFound
	}
	e.FaceDescriptor = append([]float32(nil), descriptor...)
	e.UpdatedAt = time.Now()
	m.SetFaceCalls = append(m.SetFaceCalls, employeeID)
	return nil
}

// ResolveEmployee lets the mock act as the orchestrator's employee resolver
func (m *MockEmployeeRepository) ResolveEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	return m.GetEmployee(ctx, employeeID)
}

type recordKey struct {
	employeeID string
	date       string
}

// MockAttendanceRepository is a mock implementation of database.AttendanceWriter.
// Uniqueness of (employee, date) is enforced like the real stores.
type MockAttendanceRepository struct {
	mu      sync.RWMutex
	records map[recordKey]*database.AttendanceRecord

	// Track calls
	InsertCalls int

	// AfterFind is called after FindRecord released its lock; tests use it to line up concurrent attempts.
	AfterFind func(employeeID string)

	// Error injection
	FindError   error
	InsertError error
	ListError   error
	ReportError error
}

// NewMockAttendanceRepository creates a new mock attendance repository
func NewMockAttendanceRepository() *MockAttendanceRepository {
	return &MockAttendanceRepository{
		records: make(map[recordKey]*database.AttendanceRecord),
	}
}

func keyOf(employeeID string, date time.Time) recordKey {
	return recordKey{employeeID: employeeID, date: date.Format(database.DateLayout)}
}

// AddRecord seeds a record into the mock store
func (m *MockAttendanceRepository) AddRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Date = database.NormalizeDate(rec.Date)
	m.records[keyOf(rec.EmployeeID, rec.Date)] = &rec
}

// Count returns the number of stored records
func (m *MockAttendanceRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// FindRecord returns the record for employee and date, or nil
func (m *MockAttendanceRepository) FindRecord(ctx context.Context, employeeID string, date time.Time) (*database.AttendanceRecord, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	rec, ok := m.records[keyOf(employeeID, date)]
	var result *database.AttendanceRecord
	if ok {
		c := *rec
		result = &c
	}
	m.mu.RUnlock()

	if m.AfterFind != nil {
		m.AfterFind(employeeID)
	}
	return result, nil
}

// InsertRecord stores a record or returns database.ErrConflict
func (m *MockAttendanceRepository) InsertRecord(ctx context.Context, rec *database.AttendanceRecord) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	rec.Date = database.NormalizeDate(rec.Date)
	key := keyOf(rec.EmployeeID, rec.Date)
	if _, ok := m.records[key]; ok {
		return fmt.Errorf("attendance %s on %s: %w", rec.EmployeeID, key.date, database.ErrConflict)
	}
	if rec.ID == 0 {
		rec.ID = database.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	c := *rec
	m.records[key] = &c
	return nil
}

// ListByEmployee returns records of an employee, newest date first
func (m *MockAttendanceRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.AttendanceRecord
	for _, r := range m.records {
		if r.EmployeeID == employeeID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByDate returns records of a date ordered by punch-in
func (m *MockAttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	day := date.Format(database.DateLayout)
	var result []database.AttendanceRecord
	for k, r := range m.records {
		if k.date == day {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PunchIn.Before(result[j].PunchIn) })
	return result, nil
}

// CountRemarks counts records per remark on a date
func (m *MockAttendanceRepository) CountRemarks(ctx context.Context, date time.Time) ([]database.RemarkCount, error) {
	records, err := m.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Remark]++
	}
	result := make([]database.RemarkCount, 0, len(counts))
	for remark, n := range counts {
		result = append(result, database.RemarkCount{Remark: remark, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Remark < result[j].Remark })
	return result, nil
}

// MonthlyReport counts present days per employee between from and to inclusive
func (m *MockAttendanceRepository) MonthlyReport(ctx context.Context, from, to time.Time) ([]database.MonthlySummary, error) {
	if m.ReportError != nil {
		return nil, m.ReportError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	from, to = database.NormalizeDate(from), database.NormalizeDate(to)

	byEmployee := make(map[string]*database.MonthlySummary)
	for _, r := range m.records {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		s, ok := byEmployee[r.EmployeeID]
		if !ok {
			s = &database.MonthlySummary{EmployeeID: r.EmployeeID}
			byEmployee[r.EmployeeID] = s
		}
		s.PresentDays++
		if r.Remark != string(rules.RemarkOnTime) {
			s.LateDays++
		}
	}

	result := make([]database.MonthlySummary, 0, len(byEmployee))
	for _, s := range byEmployee {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}
