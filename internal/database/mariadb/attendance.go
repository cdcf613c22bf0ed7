package mariadb

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

// AttendanceRepository provides MariaDB-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func (r *AttendanceRepository) FindRecord(ctx context.Context, employeeID string, date time.Time) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	err := r.pool.x.GetContext(ctx, &rec,
		`SELECT `+recordColumns+` FROM attendance WHERE employee_id = ? AND date = ?`,
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

func (r *AttendanceRepository) InsertRecord(ctx context.Context, rec *database.AttendanceRecord) error {
	if rec.ID == 0 {
		rec.ID = database.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (id, employee_id, date, punch_in, status, remark, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.EmployeeID, rec.DateString(), rec.PunchIn.UTC(), rec.Status, rec.Remark, rec.CreatedAt.UTC())
	if isDuplicateEntry(err) {
		return fmt.Errorf("attendance %s on %s: %w", rec.EmployeeID, rec.DateString(), database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	err := r.pool.x.SelectContext(ctx, &records,
		`SELECT `+recordColumns+` FROM attendance WHERE employee_id = ? ORDER BY date DESC LIMIT ?`,
		employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance by employee: %w", err)
	}
	for i := range records {
		records[i].Date = database.NormalizeDate(records[i].Date)
	}
	return records, nil
}

func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	err := r.pool.x.SelectContext(ctx, &records,
		`SELECT `+recordColumns+` FROM attendance WHERE date = ? ORDER BY punch_in`,
		date.Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	for i := range records {
		records[i].Date = database.NormalizeDate(records[i].Date)
	}
	return records, nil
}

func (r *AttendanceRepository) CountRemarks(ctx context.Context, date time.Time) ([]database.RemarkCount, error) {
	var counts []database.RemarkCount
	err := r.pool.x.SelectContext(ctx, &counts,
		`SELECT remark, COUNT(*) AS count FROM attendance WHERE date = ? GROUP BY remark ORDER BY remark`,
		date.Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("count remarks: %w", err)
	}
	return counts, nil
}

func (r *AttendanceRepository) MonthlyReport(ctx context.Context, from, to time.Time) ([]database.MonthlySummary, error) {
	var summaries []database.MonthlySummary
	err := r.pool.x.SelectContext(ctx, &summaries, `
		SELECT a.employee_id, e.name,
		       COUNT(*) AS present_days,
		       SUM(CASE WHEN a.remark <> ? THEN 1 ELSE 0 END) AS late_days
		FROM attendance a
		JOIN employees e ON e.employee_id = a.employee_id
		WHERE a.date BETWEEN ? AND ?
		GROUP BY a.employee_id, e.name
		ORDER BY a.employee_id
	`, string(rules.RemarkOnTime), from.Format(database.DateLayout), to.Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("monthly report: %w", err)
	}
	return summaries, nil
}
