package services

import (
	"fmt"
	"time"

	"github.com/rentalmarket/booking-backend/internal/config"
	"github.com/rentalmarket/booking-backend/internal/models"
)

// AvailabilityFormService backs the availability plan editor: duration options, the
// duration-change reset rule and conversion between editor state and plan entries.
type AvailabilityFormService struct {
	config config.AvailabilityConfig
	codec  *DayScheduleCodec
}

// NewAvailabilityFormService creates a new availability form service
func NewAvailabilityFormService(cfg config.AvailabilityConfig, codec *DayScheduleCodec) *AvailabilityFormService {
	return &AvailabilityFormService{
		config: cfg,
		codec:  codec,
	}
}

// DurationOptions returns the configured durations as selectable options
func (s *AvailabilityFormService) DurationOptions() []models.DurationOption {
	options := make([]models.DurationOption, 0, len(s.config.Durations))
	for _, d := range s.config.Durations {
		label := fmt.Sprintf("%d hours", d)
		if d == 1 {
			label = "1 hour"
		}
		options = append(options, models.DurationOption{Key: d, Label: label})
	}
	return options
}

// AllowsDuration reports whether duration is one of the offered options
func (s *AvailabilityFormService) AllowsDuration(duration int) bool {
	return s.config.AllowsDuration(duration)
}

// ChangeDuration applies a duration change to the form. Any change of duration
// resets every day selection, since ranges picked for the old duration no longer fit.
// Re-selecting the current duration leaves the form untouched.
func (s *AvailabilityFormService) ChangeDuration(form models.AvailabilityFormState, duration int) (models.AvailabilityFormState, error) {
	if !s.AllowsDuration(duration) {
		return form, models.NewValidationError("duration", fmt.Sprintf("%d is not an offered duration", duration))
	}
	if form.Duration == duration {
		return form, nil
	}

	days := make(models.PerDayView, len(models.WeekDays))
	for _, day := range models.WeekDays {
		days[day] = []models.TimeRange{}
	}

	return models.AvailabilityFormState{
		Duration:   duration,
		DaysOfWeek: []models.DayOfWeek{},
		Days:       days,
	}, nil
}

// BuildPlan turns editor selections into a validated availability plan. An empty
// timezone falls back to the configured one.
func (s *AvailabilityFormService) BuildPlan(req models.PlanRequest) (models.AvailabilityPlan, error) {
	timezone := req.Timezone
	if timezone == "" {
		timezone = s.config.Timezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return models.AvailabilityPlan{}, models.NewValidationError("timezone", fmt.Sprintf("unknown timezone %q", timezone))
	}

	days, err := models.ParseDays(req.DaysOfWeek)
	if err != nil {
		return models.AvailabilityPlan{}, err
	}

	plan := models.NewDefaultAvailabilityPlan(timezone)
	plan.Entries = s.codec.ToEntries(models.PerDayView(req.Days), days)

	if err := models.ValidateEntries(plan.Entries); err != nil {
		return models.AvailabilityPlan{}, err
	}

	return plan, nil
}

// PerDayView seeds the editor from stored entries. Days without entries get the
// configured default range.
func (s *AvailabilityFormService) PerDayView(entries []models.Entry) models.PerDayViewResponse {
	defaults := s.DefaultRange()
	return models.PerDayViewResponse{
		DaysOfWeek: s.codec.DaysPresent(entries),
		Days:       s.codec.ToPerDayView(entries, &defaults),
	}
}

// DefaultRange returns the configured default time range
func (s *AvailabilityFormService) DefaultRange() models.TimeRange {
	return models.TimeRange{
		StartTime: s.config.DefaultStartTime,
		EndTime:   s.config.DefaultEndTime,
	}
}
