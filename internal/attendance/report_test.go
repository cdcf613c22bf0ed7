package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mock"
	"github.com/kozaktomas/punchclock/internal/rules"
)

func TestMonthRange(t *testing.T) {
	tests := []struct {
		month    string
		from, to string
		wantErr  bool
	}{
		{month: "2025-03", from: "2025-03-01", to: "2025-03-31"},
		{month: "2024-02", from: "2024-02-01", to: "2024-02-29"},
		{month: "2025-02", from: "2025-02-01", to: "2025-02-28"},
		{month: "2025-12", from: "2025-12-01", to: "2025-12-31"},
		{month: "2025-13", wantErr: true},
		{month: "March", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			from, to, err := MonthRange(tt.month)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MonthRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if from.Format(database.DateLayout) != tt.from || to.Format(database.DateLayout) != tt.to {
				t.Errorf("MonthRange() = %s..%s, want %s..%s",
					from.Format(database.DateLayout), to.Format(database.DateLayout), tt.from, tt.to)
			}
		})
	}
}

func reportRecord(employeeID, date string, remark rules.Remark) database.AttendanceRecord {
	d, _ := time.Parse(database.DateLayout, date)
	return database.AttendanceRecord{
		EmployeeID: employeeID,
		Date:       d,
		PunchIn:    d.Add(4 * time.Hour),
		Status:     string(rules.StatusPresent),
		Remark:     string(remark),
	}
}

func TestMonthlyReport(t *testing.T) {
	employees := mock.NewMockEmployeeRepository()
	employees.AddEmployee(database.Employee{EmployeeID: "EMP001", Name: "Asha Rao"})
	employees.AddEmployee(database.Employee{EmployeeID: "EMP002", Name: "Vikram Nair"})
	employees.AddEmployee(database.Employee{EmployeeID: "EMP003", Name: "Meena Iyer"})

	records := mock.NewMockAttendanceRepository()
	records.AddRecord(reportRecord("EMP001", "2025-03-03", rules.RemarkOnTime))
	records.AddRecord(reportRecord("EMP001", "2025-03-04", rules.RemarkLateEntry))
	records.AddRecord(reportRecord("EMP002", "2025-03-04", rules.RemarkHalfDay))
	records.AddRecord(reportRecord("EMP002", "2025-04-01", rules.RemarkOnTime))

	from, to, _ := MonthRange("2025-03")
	summaries, err := MonthlyReport(context.Background(), employees, records, from, to)
	if err != nil {
		t.Fatalf("MonthlyReport() error: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("expected 2 employees with attendance, got %+v", summaries)
	}
	if summaries[0].EmployeeID != "EMP001" || summaries[0].Name != "Asha Rao" ||
		summaries[0].PresentDays != 2 || summaries[0].LateDays != 1 {
		t.Errorf("unexpected EMP001 summary %+v", summaries[0])
	}
	if summaries[1].PresentDays != 1 {
		t.Errorf("April record must not count in March, got %+v", summaries[1])
	}
}

func TestMonthlyReport_Errors(t *testing.T) {
	from, to, _ := MonthRange("2025-03")

	records := mock.NewMockAttendanceRepository()
	records.ReportError = errors.New("db down")
	if _, err := MonthlyReport(context.Background(), mock.NewMockEmployeeRepository(), records, from, to); err == nil {
		t.Error("expected report error")
	}

	employees := mock.NewMockEmployeeRepository()
	employees.ListError = errors.New("db down")
	if _, err := MonthlyReport(context.Background(), employees, mock.NewMockAttendanceRepository(), from, to); err == nil {
		t.Error("expected employee list error")
	}
}

func TestAbsentees(t *testing.T) {
	employees := []database.Employee{
		{EmployeeID: "EMP001"},
		{EmployeeID: "EMP002"},
		{EmployeeID: "EMP003"},
	}
	records := []database.AttendanceRecord{{EmployeeID: "EMP002"}}

	absent := Absentees(employees, records)
	if len(absent) != 2 || absent[0].EmployeeID != "EMP001" || absent[1].EmployeeID != "EMP003" {
		t.Errorf("unexpected absentees %+v", absent)
	}

	if got := Absentees(employees, nil); len(got) != 3 {
		t.Errorf("everyone is absent without records, got %d", len(got))
	}
}
