// Package rules classifies a punch-in instant into an attendance remark.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidBoundaries is returned when the rule set boundaries are malformed or out of order.
var ErrInvalidBoundaries = errors.New("invalid attendance rule boundaries")

// Status of an attendance record. Punch-in always yields StatusPresent.
type Status string

const StatusPresent Status = "present"

// Remark qualifies a present status by arrival time.
type Remark string

const (
	RemarkOnTime    Remark = "On Time"
	RemarkLateEntry Remark = "Late Entry"
	RemarkHalfDay   Remark = "Half Day"
	RemarkLate      Remark = "Late"
)

// Remarks lists all remarks in boundary order.
var Remarks = []Remark{RemarkOnTime, RemarkLateEntry, RemarkHalfDay, RemarkLate}

// TimeOfDay is a wall-clock time as seconds since local midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q is not HH:MM[:SS]", ErrInvalidBoundaries, s)
	}

	limits := []int{24, 60, 60}
	values := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q is not HH:MM[:SS]", ErrInvalidBoundaries, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("%w: %q is not HH:MM[:SS]", ErrInvalidBoundaries, s)
		}
		values[i] = n
	}

	return TimeOfDay(values[0]*3600 + values[1]*60 + values[2]), nil
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on error. Use for constants only.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall-clock time of t in loc, truncated to the second.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	local := t.In(loc)
	return TimeOfDay(local.Hour()*3600 + local.Minute()*60 + local.Second())
}

func (t TimeOfDay) String() string {
	s := int(t)
	if s%60 == 0 {
		return fmt.Sprintf("%02d:%02d", s/3600, s/60%60)
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// MarshalText lets TimeOfDay appear as "09:30" in JSON and YAML.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Classification is the outcome of the rule engine.
type Classification struct {
	Status Status `json:"status"`
	Remark Remark `json:"remark"`
}

// RuleSet holds the ordered boundaries and the site time zone they are expressed in.
type RuleSet struct {
	OfficeStart  TimeOfDay
	LateAfter    TimeOfDay
	HalfDayAfter TimeOfDay
	Location     *time.Location
}

// NewRuleSet validates officeStart <= lateAfter <= halfDayAfter.
// A nil location means UTC.
func NewRuleSet(officeStart, lateAfter, halfDayAfter TimeOfDay, loc *time.Location) (*RuleSet, error) {
	if officeStart > lateAfter || lateAfter > halfDayAfter {
		return nil, fmt.Errorf("%w: need office start %s <= late after %s <= half day after %s",
			ErrInvalidBoundaries, officeStart, lateAfter, halfDayAfter)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RuleSet{
		OfficeStart:  officeStart,
		LateAfter:    lateAfter,
		HalfDayAfter: halfDayAfter,
		Location:     loc,
	}, nil
}

// ParseRuleSet builds a RuleSet from "HH:MM[:SS]" strings.
func ParseRuleSet(officeStart, lateAfter, halfDayAfter string, loc *time.Location) (*RuleSet, error) {
	bounds := make([]TimeOfDay, 0, 3)
	for _, s := range []string{officeStart, lateAfter, halfDayAfter} {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, t)
	}
	return NewRuleSet(bounds[0], bounds[1], bounds[2], loc)
}

// Classify maps a punch-in instant to a status and remark. Upper edges are inclusive.
func (r *RuleSet) Classify(punchIn time.Time) Classification {
	return Classification{Status: StatusPresent, Remark: r.RemarkAt(TimeOfDayOf(punchIn, r.location()))}
}

// RemarkAt maps a local time of day to a remark.
func (r *RuleSet) RemarkAt(t TimeOfDay) Remark {
	switch {
	case t <= r.OfficeStart:
		return RemarkOnTime
	case t <= r.LateAfter:
		return RemarkLateEntry
	case t <= r.HalfDayAfter:
		return RemarkHalfDay
	default:
		return RemarkLate
	}
}

// LocalDate returns the site-local calendar day of t as midnight UTC,
// the representation used for the record's date column.
func (r *RuleSet) LocalDate(t time.Time) time.Time {
	y, m, d := t.In(r.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *RuleSet) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}
