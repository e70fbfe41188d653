package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DayOfWeek identifies a weekday the way the marketplace availability plan does
type DayOfWeek string

const (
	Monday    DayOfWeek = "mon"
	Tuesday   DayOfWeek = "tue"
	Wednesday DayOfWeek = "wed"
	Thursday  DayOfWeek = "thu"
	Friday    DayOfWeek = "fri"
	Saturday  DayOfWeek = "sat"
	Sunday    DayOfWeek = "sun"
)

// AvailabilityPlanTypeTime is the only plan type the editor produces
const AvailabilityPlanTypeTime = "availability-plan/time"

// WeekDays lists the days in calendar order
var WeekDays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// IsValid checks if the day is one of mon..sun
func (d DayOfWeek) IsValid() bool {
	for _, day := range WeekDays {
		if d == day {
			return true
		}
	}
	return false
}

// index returns the calendar position of the day (mon = 0)
func (d DayOfWeek) index() int {
	for i, day := range WeekDays {
		if d == day {
			return i
		}
	}
	return len(WeekDays)
}

// TimeRange is a single start/end selection within a day ("HH:MM" labels)
type TimeRange struct {
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

// Entry is one recurring weekly availability window
type Entry struct {
	DayOfWeek DayOfWeek `json:"dayOfWeek"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Seats     int       `json:"seats"`
}

// Range returns the start/end pair of the entry
func (e Entry) Range() TimeRange {
	return TimeRange{StartTime: e.StartTime, EndTime: e.EndTime}
}

// AvailabilityPlan is the host's recurring weekly offer
type AvailabilityPlan struct {
	Type     string  `json:"type"`
	Timezone string  `json:"timezone"`
	Entries  []Entry `json:"entries"`
}

// NewDefaultAvailabilityPlan returns an empty time-based plan in the given timezone
func NewDefaultAvailabilityPlan(timezone string) AvailabilityPlan {
	return AvailabilityPlan{
		Type:     AvailabilityPlanTypeTime,
		Timezone: timezone,
		Entries:  []Entry{},
	}
}

// PerDayView groups ranges by weekday. It is always derived from entries, never stored.
type PerDayView map[DayOfWeek][]TimeRange

// ParseClockLabel parses an "HH:MM" label into minutes since midnight
func ParseClockLabel(label string) (int, error) {
	if len(label) != 5 || label[2] != ':' || !isDigits(label[:2]) || !isDigits(label[3:]) {
		return 0, fmt.Errorf("invalid time label %q (expected HH:MM)", label)
	}
	hour, _ := strconv.Atoi(label[:2])
	minute, _ := strconv.Atoi(label[3:])
	// 24:00 is accepted as the end of day
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid time label %q: out of range", label)
	}
	return hour*60 + minute, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ValidateEntries checks the plan invariants: known days, start before end, at least one
// seat and no overlapping [start, end) windows within a day.
func ValidateEntries(entries []Entry) error {
	type window struct {
		start, end int
		label      string
	}
	byDay := make(map[DayOfWeek][]window)

	for i, e := range entries {
		if !e.DayOfWeek.IsValid() {
			return NewValidationError("entries", fmt.Sprintf("entry %d: invalid dayOfWeek %q", i, e.DayOfWeek))
		}
		start, err := ParseClockLabel(e.StartTime)
		if err != nil {
			return NewValidationError("entries", fmt.Sprintf("entry %d: %v", i, err))
		}
		end, err := ParseClockLabel(e.EndTime)
		if err != nil {
			return NewValidationError("entries", fmt.Sprintf("entry %d: %v", i, err))
		}
		if start >= end {
			return NewValidationError("entries", fmt.Sprintf("entry %d: startTime %s must be before endTime %s", i, e.StartTime, e.EndTime))
		}
		if e.Seats < 1 {
			return NewValidationError("entries", fmt.Sprintf("entry %d: seats must be at least 1", i))
		}
		byDay[e.DayOfWeek] = append(byDay[e.DayOfWeek], window{start, end, e.StartTime + "-" + e.EndTime})
	}

	days := make([]DayOfWeek, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].index() < days[j].index() })

	for _, day := range days {
		windows := byDay[day]
		sort.SliceStable(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
		for i := 1; i < len(windows); i++ {
			if windows[i].start < windows[i-1].end {
				return NewValidationError("entries", fmt.Sprintf(
					"%s: %s overlaps %s", day, windows[i].label, windows[i-1].label,
				))
			}
		}
	}

	return nil
}

// ParseDays converts raw day names into DayOfWeek values
func ParseDays(raw []string) ([]DayOfWeek, error) {
	days := make([]DayOfWeek, 0, len(raw))
	for _, r := range raw {
		day := DayOfWeek(strings.ToLower(strings.TrimSpace(r)))
		if !day.IsValid() {
			return nil, NewValidationError("daysOfWeek", fmt.Sprintf("invalid day %q", r))
		}
		days = append(days, day)
	}
	return days, nil
}
