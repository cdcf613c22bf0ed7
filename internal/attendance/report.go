package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
)

// MonthLayout is the format of a report month.
const MonthLayout = "2006-01"

// MonthRange returns the first and last day of a YYYY-MM month.
func MonthRange(month string) (time.Time, time.Time, error) {
	first, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	return first, first.AddDate(0, 1, -1), nil
}

// MonthlyReport counts present days per employee in [from, to]. Only employees
// with at least one record appear. Names missing from the backend result are
// filled from the employee list.
func MonthlyReport(ctx context.Context, employees database.EmployeeReader, records database.AttendanceReader, from, to time.Time) ([]database.MonthlySummary, error) {
	summaries, err := records.MonthlyReport(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly report: %w", err)
	}

	all, err := employees.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	names := make(map[string]string, len(all))
	for _, e := range all {
		names[e.EmployeeID] = e.Name
	}
	for i := range summaries {
		if summaries[i].Name == "" {
			summaries[i].Name = names[summaries[i].EmployeeID]
		}
	}
	return summaries, nil
}

// Absentees returns the employees that have no record among records, in input order.
func Absentees(employees []database.Employee, records []database.AttendanceRecord) []database.Employee {
	present := make(map[string]struct{}, len(records))
	for _, rec := range records {
		present[rec.EmployeeID] = struct{}{}
	}
	absent := make([]database.Employee, 0, len(employees))
	for _, e := range employees {
		if _, ok := present[e.EmployeeID]; !ok {
			absent = append(absent, e)
		}
	}
	return absent
}
