package database

import (
	"time"
)

// DateLayout is the wire and column format of an attendance date.
const DateLayout = "2006-01-02"

// Roles carried by employees and identity tokens.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Employee is a registered person who may punch in.
type Employee struct {
	ID             string    `db:"id" json:"-"`
	EmployeeID     string    `db:"employee_id" json:"employee_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Department     string    `db:"department" json:"department"`
	Role           string    `db:"role" json:"role"`
	FaceDescriptor []float32 `db:"-" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasFace reports whether a face descriptor has been registered.
func (e *Employee) HasFace() bool {
	return e != nil && len(e.FaceDescriptor) > 0
}

// AttendanceRecord is a persisted punch-in. At most one exists per employee and date.
type AttendanceRecord struct {
	ID         int64     `db:"id" json:"id,string"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Date       time.Time `db:"date" json:"-"`
	PunchIn    time.Time `db:"punch_in" json:"punch_in"`
	Status     string    `db:"status" json:"status"`
	Remark     string    `db:"remark" json:"remark"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DateString returns the record's calendar day as YYYY-MM-DD.
func (r *AttendanceRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// NormalizeDate strips the time of day, keeping the calendar day of t as midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthlySummary is the number of present days of one employee in a month.
type MonthlySummary struct {
	EmployeeID  string `db:"employee_id" json:"employee_id"`
	Name        string `db:"name" json:"name"`
	PresentDays int    `db:"present_days" json:"present_days"`
	LateDays    int    `db:"late_days" json:"late_days"`
}

// RemarkCount is the number of records with a given remark on one day.
type RemarkCount struct {
	Remark string `db:"remark"`
	Count  int    `db:"count"`
}
