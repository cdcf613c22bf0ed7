package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
)

const recordColumns = `id, employee_id, date, punch_in, status, remark, created_at`

// AttendanceRepository provides PostgreSQL-backed attendance storage.
// The (employee_id, date) unique constraint is the final guard against double punches.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func normalizeRecords(records []database.AttendanceRecord) []database.AttendanceRecord {
	for i := range records {
		records[i].Date = database.NormalizeDate(records[i].Date)
	}
	return records
}

// FindRecord returns the record of an employee on a date, or nil if there is none.
func (r *AttendanceRepository) FindRecord(ctx context.Context, employeeID string, date time.Time) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	err := r.pool.x.GetContext(ctx, &rec,
		`SELECT `+recordColumns+` FROM attendance WHERE employee_id = $1 AND date = $2`,
		employeeID, date.Format(database.DateLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	rec.Date = database.NormalizeDate(rec.Date)
	return &rec, nil
}

// InsertRecord persists a new record. Returns database.ErrConflict when the
// employee already has a record for that date.
func (r *AttendanceRepository) InsertRecord(ctx context.Context, rec *database.AttendanceRecord) error {
	if rec.ID == 0 {
		rec.ID = database.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (id, employee_id, date, punch_in, status, remark, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.EmployeeID, rec.DateString(), rec.PunchIn, rec.Status, rec.Remark, rec.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("attendance %s on %s: %w", rec.EmployeeID, rec.DateString(), database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// ListByEmployee returns the records of one employee, newest date first.
func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	err := r.pool.x.SelectContext(ctx, &records, `
		SELECT `+recordColumns+` FROM attendance
		WHERE employee_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance by employee: %w", err)
	}
	return normalizeRecords(records), nil
}

// ListByDate returns all records of one date ordered by punch-in time.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	err := r.pool.x.SelectContext(ctx, &records,
		`SELECT `+recordColumns+` FROM attendance WHERE date = $1 ORDER BY punch_in`,
		date.Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return normalizeRecords(records), nil
}

// CountRemarks returns the number of records per remark on one date.
func (r *AttendanceRepository) CountRemarks(ctx context.Context, date time.Time) ([]database.RemarkCount, error) {
	var counts []database.RemarkCount
	err := r.pool.x.SelectContext(ctx, &counts, `
		SELECT remark, COUNT(*) AS count FROM attendance
		WHERE date = $1
		GROUP BY remark
		ORDER BY remark
	`, date.Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("count remarks: %w", err)
	}
	return counts, nil
}

// MonthlyReport returns present and late days per employee for dates in [from, to].
func (r *AttendanceRepository) MonthlyReport(ctx context.Context, from, to time.Time) ([]database.MonthlySummary, error) {
	var summaries []database.MonthlySummary
	err := r.pool.x.SelectContext(ctx, &summaries, `
		SELECT a.employee_id, e.name,
		       COUNT(*) AS present_days,
		       COUNT(*) FILTER (WHERE a.remark <> $3) AS late_days
		FROM attendance a
		JOIN employees e ON e.employee_id = a.employee_id
		WHERE a.date BETWEEN $1 AND $2
		GROUP BY a.employee_id, e.name
		ORDER BY a.employee_id
	`, from.Format(database.DateLayout), to.Format(database.DateLayout), string(rules.RemarkOnTime))
	if err != nil {
		return nil, fmt.Errorf("monthly report: %w", err)
	}
	return summaries, nil
}
