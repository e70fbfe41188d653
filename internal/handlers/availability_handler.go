package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AvailabilityHandler serves the availability plan editor
type AvailabilityHandler struct {
	slotFilter *services.TimeRangeSlotFilter
	form       *services.AvailabilityFormService
	logger     *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(
	slotFilter *services.TimeRangeSlotFilter,
	form *services.AvailabilityFormService,
	logger *logrus.Logger,
) *AvailabilityHandler {
	return &AvailabilityHandler{
		slotFilter: slotFilter,
		form:       form,
		logger:     logger,
	}
}

// GetDurations returns the selectable durations
// GET /api/v1/availability/durations
func (h *AvailabilityHandler) GetDurations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"durations":    h.form.DurationOptions(),
		"defaultRange": h.form.DefaultRange(),
	})
}

// GetStartTimes lists the start times still free for one day
// POST /api/v1/availability/start-times
func (h *AvailabilityHandler) GetStartTimes(c *gin.Context) {
	var req models.StartTimesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if !h.form.AllowsDuration(req.Duration) {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("duration %d is not an offered duration", req.Duration))
		return
	}

	excludeIndex := -1
	if req.ExcludeIndex != nil {
		excludeIndex = *req.ExcludeIndex
	}

	filter := h.slotFilter
	if req.Window != nil {
		restricted, err := filter.WithinWindow(*req.Window)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		filter = restricted
	}

	startTimes := filter.AvailableStartTimes(req.ExistingRanges, req.Duration, excludeIndex)

	c.JSON(http.StatusOK, models.StartTimesResponse{
		StartTimes: startTimes,
		CanAdd:     filter.CanAddRange(req.ExistingRanges, req.Duration),
	})
}

// GetEndTime returns the end label for a start label and duration
// GET /api/v1/availability/end-time?duration=2&startTime=09:00
func (h *AvailabilityHandler) GetEndTime(c *gin.Context) {
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil || duration < 1 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "duration must be a positive whole number of hours")
		return
	}

	startTime := c.Query("startTime")
	endTime, err := h.slotFilter.EndTimeFor(duration, startTime)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.EndTimeResponse{
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
	})
}

// BuildPlan converts editor selections into a validated availability plan
// POST /api/v1/availability/plan
func (h *AvailabilityHandler) BuildPlan(c *gin.Context) {
	var req models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	plan, err := h.form.BuildPlan(req)
	if err != nil {
		h.respondFormError(c, "build_plan", err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// PerDayView groups plan entries into the editor's per-day view
// POST /api/v1/availability/per-day-view
func (h *AvailabilityHandler) PerDayView(c *gin.Context) {
	var req models.PerDayViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.form.PerDayView(req.Entries))
}

// ChangeDuration applies a duration change to the editor form
// POST /api/v1/availability/form/duration
func (h *AvailabilityHandler) ChangeDuration(c *gin.Context) {
	var req models.ChangeDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	form, err := h.form.ChangeDuration(req.Form, req.Duration)
	if err != nil {
		h.respondFormError(c, "change_duration", err)
		return
	}

	c.JSON(http.StatusOK, form)
}

func (h *AvailabilityHandler) respondFormError(c *gin.Context, operation string, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.logger.WithFields(logrus.Fields{
			"operation": operation,
			"field":     validationErr.Field,
		}).Debug("Availability request rejected")
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, validationErr.Error())
		return
	}
	handleServiceError(c, h.logger, operation, err)
}
