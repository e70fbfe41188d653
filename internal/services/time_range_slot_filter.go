package services

import (
	"errors"
	"fmt"

	"github.com/rentalmarket/booking-backend/internal/config"
	"github.com/rentalmarket/booking-backend/internal/models"
)

var (
	// ErrInvalidDuration is returned for durations below one hour
	ErrInvalidDuration = errors.New("duration must be at least one hour")

	// ErrPastEndOfDay is returned when a window would end after 24:00
	ErrPastEndOfDay = errors.New("window ends past the end of the day")
)

// TimeRangeSlotFilter computes which start times are still offerable for a day so that
// hosts cannot build overlapping or duration-inconsistent windows.
type TimeRangeSlotFilter struct {
	candidates []string
}

// NewTimeRangeSlotFilter creates a filter over the configured candidate start times
func NewTimeRangeSlotFilter(cfg config.AvailabilityConfig) (*TimeRangeSlotFilter, error) {
	candidates, err := hourLabels(cfg.CandidateStart, cfg.CandidateEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid candidate start times: %w", err)
	}
	return &TimeRangeSlotFilter{candidates: candidates}, nil
}

// WithinWindow returns a filter whose candidates are restricted to the hour labels of
// window, both ends inclusive. A plan entry of 09:00-17:00 yields 09:00..17:00.
func (f *TimeRangeSlotFilter) WithinWindow(window models.TimeRange) (*TimeRangeSlotFilter, error) {
	labels, err := hourLabels(window.StartTime, window.EndTime)
	if err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}

	restricted := make([]string, 0, len(labels))
	for _, c := range f.candidates {
		if allowed[c] {
			restricted = append(restricted, c)
		}
	}
	return &TimeRangeSlotFilter{candidates: restricted}, nil
}

// Candidates returns a copy of the candidate start times
func (f *TimeRangeSlotFilter) Candidates() []string {
	return append([]string(nil), f.candidates...)
}

// AvailableStartTimes returns, in ascending order, the start times s for which a full
// window [s, s+duration] is still free. Every existing range except the one at
// excludeIndex (-1 for none) reserves duration+1 labels beginning at its start label.
// An empty result means no further range can be added.
func (f *TimeRangeSlotFilter) AvailableStartTimes(existing []models.TimeRange, duration int, excludeIndex int) []string {
	result := []string{}
	if duration < 1 {
		return result
	}

	remaining := append([]string(nil), f.candidates...)

	for i, r := range existing {
		if i == excludeIndex {
			continue
		}
		idx := indexOf(remaining, r.StartTime)
		if idx < 0 {
			// Already reserved by an earlier range
			continue
		}
		end := idx + duration + 1
		if end > len(remaining) {
			end = len(remaining)
		}
		remaining = append(remaining[:idx], remaining[end:]...)
	}

	for _, s := range remaining {
		endTime, err := f.EndTimeFor(duration, s)
		if err != nil {
			continue
		}
		if indexOf(remaining, endTime) >= 0 {
			result = append(result, s)
		}
	}

	return result
}

// EndTimeFor returns the hour label duration hours after start. Labels are wall-clock
// values in the plan's timezone and are never converted.
func (f *TimeRangeSlotFilter) EndTimeFor(duration int, start string) (string, error) {
	if duration < 1 {
		return "", ErrInvalidDuration
	}

	minutes, err := models.ParseClockLabel(start)
	if err != nil {
		return "", err
	}
	if minutes%60 != 0 {
		return "", fmt.Errorf("start time %q is not on the hour", start)
	}

	hour := minutes/60 + duration
	if hour > 24 {
		return "", fmt.Errorf("%s + %dh: %w", start, duration, ErrPastEndOfDay)
	}

	return formatHourLabel(hour), nil
}

// CanAddRange reports whether at least one more range fits next to existing
func (f *TimeRangeSlotFilter) CanAddRange(existing []models.TimeRange, duration int) bool {
	return len(f.AvailableStartTimes(existing, duration, -1)) > 0
}

// hourLabels lists "HH:00" labels from start to end inclusive
func hourLabels(start, end string) ([]string, error) {
	from, err := models.ParseClockLabel(start)
	if err != nil {
		return nil, err
	}
	to, err := models.ParseClockLabel(end)
	if err != nil {
		return nil, err
	}
	if from%60 != 0 || to%60 != 0 {
		return nil, fmt.Errorf("labels %s..%s must be on the hour", start, end)
	}
	if from > to {
		return nil, fmt.Errorf("%s is after %s", start, end)
	}

	labels := make([]string, 0, (to-from)/60+1)
	for h := from / 60; h <= to/60; h++ {
		labels = append(labels, formatHourLabel(h))
	}
	return labels, nil
}

func formatHourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
