package mariadb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/facematch"
)

// jsonDescriptor stores a face descriptor as a JSON array of floats.
type jsonDescriptor []float32

func (d jsonDescriptor) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	data, err := json.Marshal([]float32(d))
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	return string(data), nil
}

func (d *jsonDescriptor) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported descriptor type %T", src)
	}
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("unmarshal descriptor: %w", err)
	}
	*d = values
	return nil
}

type employeeRow struct {
	database.Employee
	Descriptor jsonDescriptor `db:"face_descriptor"`
}

func (r employeeRow) toEmployee() database.Employee {
	e := r.Employee
	e.FaceDescriptor = r.Descriptor
	return e
}

const employeeColumns = `id, employee_id, name, email, department, role, face_descriptor, created_at, updated_at`

// EmployeeRepository provides MariaDB-backed employee storage.
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new MariaDB employee repository.
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// ResolveEmployee adapts GetEmployee to the punch orchestrator.
func (r *EmployeeRepository) ResolveEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	return r.GetEmployee(ctx, employeeID)
}

func (r *EmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	var row employeeRow
	err := r.pool.x.GetContext(ctx, &row,
		`SELECT `+employeeColumns+` FROM employees WHERE employee_id = ?`, employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	e := row.toEmployee()
	return &e, nil
}

func (r *EmployeeRepository) selectEmployees(ctx context.Context, query string, args ...any) ([]database.Employee, error) {
	var rows []employeeRow
	if err := r.pool.x.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	employees := make([]database.Employee, len(rows))
	for i := range rows {
		employees[i] = rows[i].toEmployee()
	}
	return employees, nil
}

func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]database.Employee, error) {
	return r.selectEmployees(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY employee_id`)
}

func (r *EmployeeRepository) CountEmployees(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.x.GetContext(ctx, &count, "SELECT COUNT(*) FROM employees"); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

func (r *EmployeeRepository) ListFaceDescriptors(ctx context.Context) ([]database.Employee, error) {
	return r.selectEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE face_descriptor IS NOT NULL ORDER BY employee_id`)
}

// FindNearestFaces scans all registered descriptors; MariaDB has no vector distance operator.
// Descriptors of a different length are skipped.
func (r *EmployeeRepository) FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.Employee, []float64, error) {
	faces, err := r.ListFaceDescriptors(ctx)
	if err != nil {
		return nil, nil, err
	}

	type scored struct {
		employee database.Employee
		distance float64
	}
	candidates := make([]scored, 0, len(faces))
	for _, e := range faces {
		if len(e.FaceDescriptor) != len(descriptor) {
			continue
		}
		d, err := facematch.Distance(descriptor, e.FaceDescriptor)
		if err != nil {
			return nil, nil, err
		}
		candidates = append(candidates, scored{employee: e, distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	employees := make([]database.Employee, len(candidates))
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		employees[i] = c.employee
		distances[i] = c.distance
	}
	return employees, distances, nil
}

func (r *EmployeeRepository) NextEmployeeID(ctx context.Context) (string, error) {
	var ids []string
	err := r.pool.x.SelectContext(ctx, &ids,
		"SELECT employee_id FROM employees WHERE employee_id LIKE ?", database.EmployeeIDPrefix+"%")
	if err != nil {
		return "", fmt.Errorf("list employee ids: %w", err)
	}
	return database.NextEmployeeIDFrom(ids), nil
}

func (r *EmployeeRepository) CreateEmployee(ctx context.Context, e *database.Employee) error {
	if e.ID == "" {
		e.ID = database.NewRowID()
	}
	if e.Role == "" {
		e.Role = database.RoleEmployee
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO employees (id, employee_id, name, email, department, role, face_descriptor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EmployeeID, e.Name, e.Email, e.Department, e.Role, jsonDescriptor(e.FaceDescriptor), e.CreatedAt, e.UpdatedAt)
	if isDuplicateEntry(err) {
		return fmt.Errorf("employee %s: %w", e.EmployeeID, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, e *database.Employee) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE employees SET name = ?, email = ?, department = ?, role = ?, updated_at = ?
		WHERE employee_id = ?
	`, e.Name, e.Email, e.Department, e.Role, e.UpdatedAt, e.EmployeeID)
	if isDuplicateEntry(err) {
		return fmt.Errorf("email %s: %w", e.Email, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return expectOneRow(res)
}

func (r *EmployeeRepository) DeleteEmployee(ctx context.Context, employeeID string) error {
	res, err := r.pool.db.ExecContext(ctx, "DELETE FROM employees WHERE employee_id = ?", employeeID)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return expectOneRow(res)
}

func (r *EmployeeRepository) SetFaceDescriptor(ctx context.Context, employeeID string, descriptor []float32) error {
	res, err := r.pool.db.ExecContext(ctx,
		"UPDATE employees SET face_descriptor = ?, updated_at = ? WHERE employee_id = ?",
		jsonDescriptor(descriptor), time.Now().UTC(), employeeID)
	if err != nil {
		return fmt.Errorf("set face descriptor: %w", err)
	}
	return expectOneRow(res)
}
