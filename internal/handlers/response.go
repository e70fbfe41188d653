package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/pkg/marketplace"
	"github.com/sirupsen/logrus"
)

// Error codes of locally generated envelopes
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = "internal_error"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.NewErrorEnvelope(status, code, message))
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
}

// respondUpstream writes the marketplace triple with its own status
func respondUpstream(c *gin.Context, resp *marketplace.Response) {
	c.JSON(resp.Status, models.NewEnvelope(resp.Status, resp.StatusText, resp.Data))
}

// handleServiceError maps a service error onto the response envelope. Upstream
// rejections keep their status and body, validation errors become 400, ownership
// errors 403 and anything else is a 500.
func handleServiceError(c *gin.Context, logger *logrus.Logger, operation string, err error) {
	fields := logrus.Fields{
		"operation": operation,
		"path":      c.Request.URL.Path,
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		logger.WithFields(fields).WithError(err).Warn("Rejected malformed request")
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, validationErr.Error())
		return
	}

	var forbiddenErr *models.ForbiddenError
	if errors.As(err, &forbiddenErr) {
		logger.WithFields(fields).WithError(err).Warn("Rejected request for another user's resource")
		respondError(c, http.StatusForbidden, ErrCodeForbidden, forbiddenErr.Error())
		return
	}

	var apiErr *marketplace.APIError
	if errors.As(err, &apiErr) {
		fields["upstream_status"] = apiErr.Status
		fields["endpoint"] = apiErr.Endpoint
		logger.WithFields(fields).WithError(err).Warn("Marketplace rejected request")
		respondUpstream(c, apiErr.Response())
		return
	}

	logger.WithFields(fields).WithError(err).Error("Request failed")
	respondError(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
