package services

import (
	"testing"

	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAvailabilityForm() *AvailabilityFormService {
	return NewAvailabilityFormService(testAvailabilityConfig(), NewDayScheduleCodec())
}

func TestDurationOptions(t *testing.T) {
	svc := setupAvailabilityForm()

	assert.Equal(t, []models.DurationOption{
		{Key: 1, Label: "1 hour"},
		{Key: 2, Label: "2 hours"},
		{Key: 3, Label: "3 hours"},
		{Key: 4, Label: "4 hours"},
	}, svc.DurationOptions())
}

func TestChangeDuration_ResetsSelections(t *testing.T) {
	svc := setupAvailabilityForm()

	form := models.AvailabilityFormState{
		Duration:   2,
		DaysOfWeek: []models.DayOfWeek{models.Monday, models.Friday},
		Days: models.PerDayView{
			models.Monday: {{StartTime: "09:00", EndTime: "11:00"}},
			models.Friday: {{StartTime: "14:00", EndTime: "16:00"}},
		},
	}

	next, err := svc.ChangeDuration(form, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, next.Duration)
	assert.Empty(t, next.DaysOfWeek)
	require.Len(t, next.Days, 7)
	for _, day := range models.WeekDays {
		assert.Empty(t, next.Days[day], "day %s", day)
	}

	// The input form is not mutated
	assert.Len(t, form.Days[models.Monday], 1)
}

func TestChangeDuration_SameDurationKeepsForm(t *testing.T) {
	svc := setupAvailabilityForm()

	form := models.AvailabilityFormState{
		Duration:   3,
		DaysOfWeek: []models.DayOfWeek{models.Sunday},
		Days:       models.PerDayView{models.Sunday: {{StartTime: "10:00", EndTime: "13:00"}}},
	}

	next, err := svc.ChangeDuration(form, 3)
	require.NoError(t, err)
	assert.Equal(t, form, next)
}

func TestChangeDuration_RejectsUnknownDuration(t *testing.T) {
	svc := setupAvailabilityForm()

	_, err := svc.ChangeDuration(models.AvailabilityFormState{Duration: 2}, 7)
	require.Error(t, err)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "duration", vErr.Field)

	_, err = svc.ChangeDuration(models.AvailabilityFormState{Duration: 2}, 0)
	assert.Error(t, err)
}

func TestBuildPlan(t *testing.T) {
	svc := setupAvailabilityForm()

	plan, err := svc.BuildPlan(models.PlanRequest{
		DaysOfWeek: []string{"mon", "tue"},
		Days: map[models.DayOfWeek][]models.TimeRange{
			models.Monday:   {{StartTime: "09:00", EndTime: "13:00"}, {StartTime: "14:00", EndTime: "18:00"}},
			models.Tuesday:  {{StartTime: "10:00", EndTime: "14:00"}},
			models.Saturday: {{StartTime: "10:00", EndTime: "14:00"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.AvailabilityPlanTypeTime, plan.Type)
	assert.Equal(t, "Etc/UTC", plan.Timezone)
	assert.Len(t, plan.Entries, 3)
	for _, e := range plan.Entries {
		assert.Equal(t, 1, e.Seats)
		assert.NotEqual(t, models.Saturday, e.DayOfWeek)
	}
}

func TestBuildPlan_Errors(t *testing.T) {
	svc := setupAvailabilityForm()

	tests := []struct {
		name    string
		req     models.PlanRequest
		wantErr string
	}{
		{
			name:    "unknown timezone",
			req:     models.PlanRequest{Timezone: "Mars/Olympus"},
			wantErr: "timezone",
		},
		{
			name:    "unknown day",
			req:     models.PlanRequest{DaysOfWeek: []string{"someday"}},
			wantErr: "invalid day",
		},
		{
			name: "overlapping ranges",
			req: models.PlanRequest{
				DaysOfWeek: []string{"wed"},
				Days: map[models.DayOfWeek][]models.TimeRange{
					models.Wednesday: {{StartTime: "09:00", EndTime: "13:00"}, {StartTime: "12:00", EndTime: "16:00"}},
				},
			},
			wantErr: "overlaps",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.BuildPlan(tc.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPerDayView_SeedsDefaults(t *testing.T) {
	svc := setupAvailabilityForm()

	view := svc.PerDayView([]models.Entry{
		{DayOfWeek: models.Thursday, StartTime: "08:00", EndTime: "12:00", Seats: 1},
	})

	assert.Equal(t, []models.DayOfWeek{models.Thursday}, view.DaysOfWeek)
	assert.Equal(t, []models.TimeRange{{StartTime: "08:00", EndTime: "12:00"}}, view.Days[models.Thursday])
	assert.Equal(t, []models.TimeRange{{StartTime: "00:00", EndTime: "23:00"}}, view.Days[models.Monday])
}
