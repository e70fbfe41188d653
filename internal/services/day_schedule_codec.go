package services

import (
	"github.com/rentalmarket/booking-backend/internal/models"
)

// DayScheduleCodec converts between the flat entry list of an availability plan and the
// per-day grouping the plan editor works with. It never validates; overlap is prevented
// upstream by the slot filter and checked by models.ValidateEntries at the plan boundary.
type DayScheduleCodec struct{}

// NewDayScheduleCodec creates a new codec
func NewDayScheduleCodec() *DayScheduleCodec {
	return &DayScheduleCodec{}
}

// ToEntries emits one single-seat entry per selected range, day by day in daysOfWeek
// order. Days not listed in daysOfWeek are dropped; a day listed twice is emitted once.
func (c *DayScheduleCodec) ToEntries(perDay models.PerDayView, daysOfWeek []models.DayOfWeek) []models.Entry {
	entries := []models.Entry{}
	seen := make(map[models.DayOfWeek]bool, len(daysOfWeek))

	for _, day := range daysOfWeek {
		if seen[day] {
			continue
		}
		seen[day] = true

		for _, r := range perDay[day] {
			entries = append(entries, models.Entry{
				DayOfWeek: day,
				StartTime: r.StartTime,
				EndTime:   r.EndTime,
				Seats:     1,
			})
		}
	}

	return entries
}

// ToPerDayView groups entries by day, keeping their relative order. When defaults is
// non-nil every weekday without entries is seeded with that single range.
func (c *DayScheduleCodec) ToPerDayView(entries []models.Entry, defaults *models.TimeRange) models.PerDayView {
	view := models.PerDayView{}

	for _, e := range entries {
		view[e.DayOfWeek] = append(view[e.DayOfWeek], e.Range())
	}

	if defaults != nil {
		for _, day := range models.WeekDays {
			if len(view[day]) == 0 {
				view[day] = []models.TimeRange{*defaults}
			}
		}
	}

	return view
}

// DaysPresent returns the distinct days of the entries in first-seen order
func (c *DayScheduleCodec) DaysPresent(entries []models.Entry) []models.DayOfWeek {
	days := []models.DayOfWeek{}
	seen := make(map[models.DayOfWeek]bool)

	for _, e := range entries {
		if !seen[e.DayOfWeek] {
			seen[e.DayOfWeek] = true
			days = append(days, e.DayOfWeek)
		}
	}

	return days
}
