package models

// StartTimesRequest asks which start times remain offerable for one day
type StartTimesRequest struct {
	ExistingRanges []TimeRange `json:"existingRanges"`
	Duration       int         `json:"duration" binding:"required,min=1"`
	ExcludeIndex   *int        `json:"excludeIndex"`
	Window         *TimeRange  `json:"window"` // Optional; restricts candidates to the plan window
}

// StartTimesResponse lists the offerable start times in ascending order
type StartTimesResponse struct {
	StartTimes []string `json:"startTimes"`
	CanAdd     bool     `json:"canAdd"` // Whether a new range still fits next to all existing ones
}

// EndTimeResponse is the end label matching a start label and duration
type EndTimeResponse struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Duration  int    `json:"duration"`
}

// PlanRequest carries editor selections to be turned into plan entries
type PlanRequest struct {
	Timezone   string                    `json:"timezone"`
	DaysOfWeek []string                  `json:"daysOfWeek"`
	Days       map[DayOfWeek][]TimeRange `json:"days"`
}

// PerDayViewRequest carries stored entries to be grouped for the editor
type PerDayViewRequest struct {
	Entries []Entry `json:"entries"`
}

// PerDayViewResponse seeds the editor from an existing plan
type PerDayViewResponse struct {
	DaysOfWeek []DayOfWeek `json:"daysOfWeek"`
	Days       PerDayView  `json:"days"`
}

// AvailabilityFormState is the plan editor's form state
type AvailabilityFormState struct {
	Duration   int         `json:"duration"`
	DaysOfWeek []DayOfWeek `json:"daysOfWeek"`
	Days       PerDayView  `json:"days"`
}

// ChangeDurationRequest asks the form reducer to apply a new duration
type ChangeDurationRequest struct {
	Form     AvailabilityFormState `json:"form"`
	Duration int                   `json:"duration" binding:"required,min=1"`
}

// DurationOption is one selectable duration
type DurationOption struct {
	Key   int    `json:"key"`
	Label string `json:"label"`
}
