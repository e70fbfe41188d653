package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rentalmarket/booking-backend/internal/middleware"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/internal/services"
	"github.com/rentalmarket/booking-backend/internal/utils"
	"github.com/rentalmarket/booking-backend/pkg/marketplace"
	"github.com/sirupsen/logrus"
)

// TransactionOrchestrator is implemented by services.TransactionOrchestratorService
type TransactionOrchestrator interface {
	CancelByCustomer(ctx context.Context, caller services.Caller, req *models.CancelByCustomerRequest) (*marketplace.Response, error)
	Initiate(ctx context.Context, caller services.Caller, req *models.InitiateRequest) (*marketplace.Response, error)
	UpdateFirstBooking(ctx context.Context, caller services.Caller, req *models.UpdateFirstBookingRequest) (*marketplace.Response, error)
}

// TransactionHandler handles the transaction lifecycle endpoints
type TransactionHandler struct {
	orchestrator TransactionOrchestrator
	logger       *logrus.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(orchestrator TransactionOrchestrator, logger *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// caller builds the caller identity from the auth middleware context
func (h *TransactionHandler) caller(c *gin.Context) (services.Caller, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user not authenticated")
		return services.Caller{}, false
	}

	return services.Caller{
		UserToken: userCtx.Token,
		UserID:    userCtx.UserID,
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}, true
}

// ============================================================================
// CANCEL BY CUSTOMER - POST /api/v1/transactions/cancel-by-customer
// ============================================================================

// CancelByCustomer cancels a transaction on behalf of its customer
func (h *TransactionHandler) CancelByCustomer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req models.CancelByCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.orchestrator.CancelByCustomer(c.Request.Context(), caller, &req)
	if err != nil {
		handleServiceError(c, h.logger, "cancel_by_customer", err)
		return
	}

	respondUpstream(c, resp)
}

// ============================================================================
// INITIATE - POST /api/v1/transactions/initiate
// ============================================================================

// Initiate starts (or speculatively prices) a booking transaction
func (h *TransactionHandler) Initiate(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req models.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.orchestrator.Initiate(c.Request.Context(), caller, &req)
	if err != nil {
		handleServiceError(c, h.logger, "initiate", err)
		return
	}

	respondUpstream(c, resp)
}

// ============================================================================
// UPDATE FIRST BOOKING - POST /api/v1/transactions/update-first-booking
// ============================================================================

// UpdateFirstBooking settles the customer's first booking marker for a finalized
// transaction
func (h *TransactionHandler) UpdateFirstBooking(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req models.UpdateFirstBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.orchestrator.UpdateFirstBooking(c.Request.Context(), caller, &req)
	if err != nil {
		handleServiceError(c, h.logger, "update_first_booking", err)
		return
	}

	respondUpstream(c, resp)
}
