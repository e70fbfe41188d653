package services

import (
	"fmt"
	"testing"

	"github.com/rentalmarket/booking-backend/internal/config"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAvailabilityConfig() config.AvailabilityConfig {
	return config.AvailabilityConfig{
		CandidateStart:   "00:00",
		CandidateEnd:     "23:00",
		Durations:        []int{1, 2, 3, 4},
		DefaultStartTime: "00:00",
		DefaultEndTime:   "23:00",
		Timezone:         "Etc/UTC",
	}
}

func setupSlotFilter(t *testing.T) *TimeRangeSlotFilter {
	filter, err := NewTimeRangeSlotFilter(testAvailabilityConfig())
	require.NoError(t, err)
	return filter
}

func hourOf(t *testing.T, label string) int {
	minutes, err := models.ParseClockLabel(label)
	require.NoError(t, err)
	return minutes / 60
}

func TestNewTimeRangeSlotFilter_Candidates(t *testing.T) {
	filter := setupSlotFilter(t)

	candidates := filter.Candidates()
	require.Len(t, candidates, 24)
	assert.Equal(t, "00:00", candidates[0])
	assert.Equal(t, "09:00", candidates[9])
	assert.Equal(t, "23:00", candidates[23])
}

func TestNewTimeRangeSlotFilter_InvalidConfig(t *testing.T) {
	cfg := testAvailabilityConfig()
	cfg.CandidateStart = "9am"

	_, err := NewTimeRangeSlotFilter(cfg)
	assert.Error(t, err)
}

func TestAvailableStartTimes_EmptySelectionFitsUniverse(t *testing.T) {
	filter := setupSlotFilter(t)

	for d := 1; d <= 23; d++ {
		t.Run(fmt.Sprintf("duration_%d", d), func(t *testing.T) {
			got := filter.AvailableStartTimes(nil, d, -1)

			// s is offered exactly when s+d is itself a candidate label
			var want []string
			for h := 0; h+d <= 23; h++ {
				want = append(want, fmt.Sprintf("%02d:00", h))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestAvailableStartTimes_MondayWindow(t *testing.T) {
	filter := setupSlotFilter(t)

	monday, err := filter.WithinWindow(models.TimeRange{StartTime: "09:00", EndTime: "17:00"})
	require.NoError(t, err)

	got := monday.AvailableStartTimes(nil, 4, -1)
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00"}, got)

	// Selecting 09:00 reserves 09:00..13:00; 14:00 + 4 is past the window
	selected := []models.TimeRange{{StartTime: "09:00", EndTime: "13:00"}}
	assert.Empty(t, monday.AvailableStartTimes(selected, 4, -1))
	assert.False(t, monday.CanAddRange(selected, 4))

	// Editing the selected range itself offers the full window again
	assert.Equal(t, got, monday.AvailableStartTimes(selected, 4, 0))
}

func TestAvailableStartTimes_NoOverlapWithExisting(t *testing.T) {
	filter := setupSlotFilter(t)

	tests := []struct {
		name     string
		duration int
		existing []models.TimeRange
	}{
		{"single morning range", 2, []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
		{"two ranges", 3, []models.TimeRange{
			{StartTime: "06:00", EndTime: "09:00"},
			{StartTime: "15:00", EndTime: "18:00"},
		}},
		{"range at start of day", 4, []models.TimeRange{{StartTime: "00:00", EndTime: "04:00"}}},
		{"range at end of day", 1, []models.TimeRange{{StartTime: "22:00", EndTime: "23:00"}}},
		{"dense day", 1, []models.TimeRange{
			{StartTime: "00:00", EndTime: "01:00"},
			{StartTime: "02:00", EndTime: "03:00"},
			{StartTime: "04:00", EndTime: "05:00"},
			{StartTime: "10:00", EndTime: "11:00"},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := filter.AvailableStartTimes(tc.existing, tc.duration, -1)
			require.NotEmpty(t, got)

			for _, s := range got {
				start := hourOf(t, s)
				end := start + tc.duration
				for _, r := range tc.existing {
					rs, re := hourOf(t, r.StartTime), hourOf(t, r.EndTime)
					assert.False(t, start < re && rs < end,
						"window %s+%dh overlaps %s-%s", s, tc.duration, r.StartTime, r.EndTime)
				}
			}
		})
	}
}

func TestAvailableStartTimes_ExcludeIndex(t *testing.T) {
	filter := setupSlotFilter(t)
	existing := []models.TimeRange{
		{StartTime: "08:00", EndTime: "10:00"},
		{StartTime: "14:00", EndTime: "16:00"},
	}

	all := filter.AvailableStartTimes(existing, 2, -1)
	assert.NotContains(t, all, "08:00")
	assert.NotContains(t, all, "14:00")

	editingFirst := filter.AvailableStartTimes(existing, 2, 0)
	assert.Contains(t, editingFirst, "08:00")
	assert.NotContains(t, editingFirst, "14:00")
}

func TestAvailableStartTimes_UnknownStartIsIgnored(t *testing.T) {
	filter := setupSlotFilter(t)

	existing := []models.TimeRange{
		{StartTime: "08:00", EndTime: "10:00"},
		// Starts inside the block the first range already reserved
		{StartTime: "09:00", EndTime: "11:00"},
	}

	got := filter.AvailableStartTimes(existing, 2, -1)
	assert.Equal(t, filter.AvailableStartTimes(existing[:1], 2, -1), got)
}

func TestAvailableStartTimes_InvalidDuration(t *testing.T) {
	filter := setupSlotFilter(t)

	assert.Empty(t, filter.AvailableStartTimes(nil, 0, -1))
	assert.Empty(t, filter.AvailableStartTimes(nil, -3, -1))
}

func TestAvailableStartTimes_NoWrapPastMidnight(t *testing.T) {
	filter := setupSlotFilter(t)

	got := filter.AvailableStartTimes(nil, 4, -1)
	assert.NotContains(t, got, "23:00")
	assert.NotContains(t, got, "20:00")
	assert.Equal(t, "19:00", got[len(got)-1])
}

func TestEndTimeFor(t *testing.T) {
	filter := setupSlotFilter(t)

	tests := []struct {
		duration int
		start    string
		want     string
		wantErr  bool
	}{
		{1, "00:00", "01:00", false},
		{4, "09:00", "13:00", false},
		{2, "21:00", "23:00", false},
		{4, "20:00", "24:00", false},
		{4, "23:00", "", true},
		{0, "09:00", "", true},
		{2, "9:00", "", true},
		{2, "09:30", "", true},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s+%d", tc.start, tc.duration), func(t *testing.T) {
			got, err := filter.EndTimeFor(tc.duration, tc.start)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEndTimeFor_IsWindowLength(t *testing.T) {
	filter := setupSlotFilter(t)

	for d := 1; d <= 23; d++ {
		for _, s := range filter.AvailableStartTimes(nil, d, -1) {
			end, err := filter.EndTimeFor(d, s)
			require.NoError(t, err)
			assert.Equal(t, d, hourOf(t, end)-hourOf(t, s))
		}
	}
}

func TestEndTimeFor_PastEndOfDay(t *testing.T) {
	filter := setupSlotFilter(t)

	_, err := filter.EndTimeFor(3, "22:00")
	assert.ErrorIs(t, err, ErrPastEndOfDay)
}

func TestWithinWindow_Invalid(t *testing.T) {
	filter := setupSlotFilter(t)

	_, err := filter.WithinWindow(models.TimeRange{StartTime: "17:00", EndTime: "09:00"})
	assert.Error(t, err)

	_, err = filter.WithinWindow(models.TimeRange{StartTime: "09:15", EndTime: "17:00"})
	assert.Error(t, err)
}
