package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/punchclock/internal/database"
)

// nullVector scans a nullable vector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func (n nullVector) slice() []float32 {
	if !n.valid {
		return nil
	}
	return n.vec.Slice()
}

// employeeRow is an employees row as selected by employeeColumns.
type employeeRow struct {
	database.Employee
	Descriptor nullVector `db:"face_descriptor"`
}

func (r employeeRow) toEmployee() database.Employee {
	e := r.Employee
	e.FaceDescriptor = r.Descriptor.slice()
	return e
}

const employeeColumns = `id, employee_id, name, email, department, role, face_descriptor, created_at, updated_at`

// EmployeeRepository provides PostgreSQL-backed employee storage.
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new PostgreSQL employee repository.
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// ResolveEmployee adapts GetEmployee to the punch orchestrator.
func (r *EmployeeRepository) ResolveEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	return r.GetEmployee(ctx, employeeID)
}

// GetEmployee retrieves an employee by its EMP### identifier, returns nil if not found.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*database.Employee, error) {
	var row employeeRow
	err := r.pool.x.GetContext(ctx, &row,
		`SELECT `+employeeColumns+` FROM employees WHERE employee_id = $1`, employeeID)
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

// ListEmployees returns all employees ordered by employee id.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]database.Employee, error) {
	return r.selectEmployees(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY employee_id`)
}

// CountEmployees returns the total number of employees.
func (r *EmployeeRepository) CountEmployees(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

// ListFaceDescriptors returns all employees with a registered face descriptor.
func (r *EmployeeRepository) ListFaceDescriptors(ctx context.Context) ([]database.Employee, error) {
	return r.selectEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE face_descriptor IS NOT NULL ORDER BY employee_id`)
}

// FindNearestFaces returns the employees whose descriptors are closest to descriptor
// by Euclidean distance (pgvector <-> operator), nearest first.
func (r *EmployeeRepository) FindNearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.Employee, []float64, error) {
	query := `
		SELECT ` + employeeColumns + `, face_descriptor <-> $1::vector AS distance
		FROM employees
		WHERE face_descriptor IS NOT NULL AND vector_dims(face_descriptor) = $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := r.pool.x.QueryxContext(ctx, query, pgvector.NewVector(descriptor), len(descriptor), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest faces: %w", err)
	}
	defer rows.Close()

	var employees []database.Employee
	var distances []float64
	for rows.Next() {
		var row struct {
			database.Employee
			Descriptor nullVector `db:"face_descriptor"`
			Distance   float64    `db:"distance"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, nil, fmt.Errorf("scan nearest face: %w", err)
		}
		e := row.Employee
		e.FaceDescriptor = row.Descriptor.slice()
		employees = append(employees, e)
		distances = append(distances, row.Distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest faces: %w", err)
	}
	return employees, distances, nil
}

// NextEmployeeID returns the identifier following the highest EMP### in use.
func (r *EmployeeRepository) NextEmployeeID(ctx context.Context) (string, error) {
	var ids []string
	err := r.pool.x.SelectContext(ctx, &ids,
		"SELECT employee_id FROM employees WHERE employee_id LIKE $1", database.EmployeeIDPrefix+"%")
	if err != nil {
		return "", fmt.Errorf("list employee ids: %w", err)
	}
	return database.NextEmployeeIDFrom(ids), nil
}

// CreateEmployee inserts a new employee. Returns database.ErrConflict if the
// employee id or email is already taken.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, e *database.Employee) error {
	if e.ID == "" {
		e.ID = database.NewRowID()
	}
	if e.Role == "" {
		e.Role = database.RoleEmployee
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	var vec any
	if len(e.FaceDescriptor) > 0 {
		vec = pgvector.NewVector(e.FaceDescriptor)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO employees (id, employee_id, name, email, department, role, face_descriptor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.EmployeeID, e.Name, e.Email, e.Department, e.Role, vec, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("employee %s: %w", e.EmployeeID, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// UpdateEmployee updates name, email, department and role.
func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, e *database.Employee) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := r.pool.Exec(ctx, `
		UPDATE employees SET name = $2, email = $3, department = $4, role = $5, updated_at = $6
		WHERE employee_id = $1
	`, e.EmployeeID, e.Name, e.Email, e.Department, e.Role, e.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", e.Email, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return expectOneRow(res)
}

// DeleteEmployee removes an employee; attendance rows cascade.
func (r *EmployeeRepository) DeleteEmployee(ctx context.Context, employeeID string) error {
	res, err := r.pool.Exec(ctx, "DELETE FROM employees WHERE employee_id = $1", employeeID)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return expectOneRow(res)
}

// SetFaceDescriptor registers or replaces the face descriptor of an employee.
func (r *EmployeeRepository) SetFaceDescriptor(ctx context.Context, employeeID string, descriptor []float32) error {
	res, err := r.pool.Exec(ctx,
		"UPDATE employees SET face_descriptor = $2, updated_at = NOW() WHERE employee_id = $1",
		employeeID, pgvector.NewVector(descriptor))
	if err != nil {
		return fmt.Errorf("set face descriptor: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}
