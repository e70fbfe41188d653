package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/pkg/marketplace"
	"github.com/sirupsen/logrus"
)

// MarketplaceClient is the subset of the marketplace API the orchestrator drives
type MarketplaceClient interface {
	CurrentUser(ctx context.Context, userToken string) (*marketplace.Response, error)
	ShowListing(ctx context.Context, userToken, listingID string) (*marketplace.Response, error)
	ExchangeTrustedToken(ctx context.Context, userToken string) (string, error)
	InitiateTransaction(ctx context.Context, trustedToken string, body map[string]interface{}, queryParams map[string]interface{}, speculative bool) (*marketplace.Response, error)
	Transition(ctx context.Context, trustedToken, transactionID, transition string, params map[string]interface{}) (*marketplace.Response, error)
	UpdateProfile(ctx context.Context, userID string, metadata interface{}) (*marketplace.Response, error)
}

// Caller identifies who issued a request
type Caller struct {
	UserToken string
	UserID    string
	IPAddress string
	UserAgent string
}

func (c Caller) userUUID() *uuid.UUID {
	if c.UserID == "" {
		return nil
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil
	}
	return &id
}

// Step names used in partial failure reports
const (
	StepProfileUpdate = "profile_update"
	StepTrustedToken  = "trusted_token"
	StepTransition    = "transition"
	StepCurrentUser   = "current_user"
	StepShowListing   = "show_listing"
	StepLineItems     = "line_items"
	StepInitiate      = "initiate"
)

// PartialFailureError is returned when a step fails after earlier steps already
// mutated marketplace state. Nothing is undone.
type PartialFailureError struct {
	Operation      string
	Step           string
	CompletedSteps []string
	Err            error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s failed at %s after [%s]: %v", e.Operation, e.Step, strings.Join(e.CompletedSteps, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// TransactionOrchestratorConfig holds configuration for the orchestrator
type TransactionOrchestratorConfig struct {
	ProfileUpdateTimeout time.Duration // Deadline for the background profile update (default 30s)
}

// DefaultTransactionOrchestratorConfig returns default configuration
func DefaultTransactionOrchestratorConfig() TransactionOrchestratorConfig {
	return TransactionOrchestratorConfig{
		ProfileUpdateTimeout: 30 * time.Second,
	}
}

// TransactionOrchestratorService sequences the marketplace calls behind the
// cancel-by-customer, initiate and update-first-booking surfaces
type TransactionOrchestratorService struct {
	client   MarketplaceClient
	resolver *BookingTransitionResolver
	tracker  *FirstBookingFlagTracker
	pricing  LineItemCalculator
	audit    AuditRecorder
	config   TransactionOrchestratorConfig
	logger   *logrus.Logger

	now        func() time.Time
	dispatch   func(func())
	background sync.WaitGroup
}

// NewTransactionOrchestratorService creates a new orchestrator service
func NewTransactionOrchestratorService(
	client MarketplaceClient,
	resolver *BookingTransitionResolver,
	tracker *FirstBookingFlagTracker,
	pricing LineItemCalculator,
	audit AuditRecorder,
	config TransactionOrchestratorConfig,
	logger *logrus.Logger,
) *TransactionOrchestratorService {
	s := &TransactionOrchestratorService{
		client:   client,
		resolver: resolver,
		tracker:  tracker,
		pricing:  pricing,
		audit:    audit,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
	s.dispatch = s.runInBackground
	return s
}

func (s *TransactionOrchestratorService) runInBackground(task func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		task()
	}()
}

// Wait blocks until every background profile update has finished
func (s *TransactionOrchestratorService) Wait() {
	s.background.Wait()
}

// ============================================================================
// CANCEL BY CUSTOMER
// ============================================================================

// CancelByCustomer clears the customer's first-booking marker if it points at this
// transaction, then moves the transaction along the cancellation transition the
// resolver picks. The marker is read from the stored profile of the authenticated
// caller, who must be the transaction's customer. The transition response is
// returned as is.
func (s *TransactionOrchestratorService) CancelByCustomer(
	ctx context.Context,
	caller Caller,
	req *models.CancelByCustomerRequest,
) (*marketplace.Response, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx := req.Transaction

	// 2. Load the caller's stored profile
	_, customer, err := s.loadCustomer(ctx, caller, tx.Customer.ID)
	if err != nil {
		return nil, err
	}
	caller.UserID = customer.ID.String()
	var completed []string

	// 3. Compare-and-clear the first booking marker
	patch := s.tracker.OnFinalize(customer.ID, tx.ID, customer.StoredFirstTransactionID())
	if patch.Changed {
		_, err := s.client.UpdateProfile(ctx, customer.ID.String(), patch.Metadata())
		s.recordMutation(caller, patch, tx.ID, AuditActionFirstBookingClear, err)
		if err != nil {
			return nil, err
		}
		completed = append(completed, StepProfileUpdate)
	} else {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID.String(),
			"customer_id":    customer.ID.String(),
		}).Debug("First booking marker does not point at transaction, profile left untouched")
	}

	// 4. Exchange the user token for trusted credentials
	trustedToken, err := s.client.ExchangeTrustedToken(ctx, caller.UserToken)
	if err != nil {
		return nil, s.partialFailure("cancel_by_customer", StepTrustedToken, completed, tx.ID, err)
	}

	// 5. Resolve the cancellation transition
	now := s.now()
	createdAt := tx.Attributes.CreatedAt
	next := s.resolver.Resolve(tx.Attributes.LastTransition, createdAt, now)
	if !next.IsCustomerCancel() {
		err := fmt.Errorf("resolved transition %q is not a customer cancellation", next)
		return nil, s.partialFailure("cancel_by_customer", StepTransition, completed, tx.ID, err)
	}
	withinWindow := s.resolver.WithinRefundWindow(createdAt, now)
	if err := s.audit.LogTransitionResolved(caller, tx.ID, tx.Attributes.LastTransition, next, createdAt, withinWindow); err != nil {
		s.logger.WithError(err).Warn("Failed to record transition audit event")
	}

	// 6. Request the transition
	resp, err := s.client.Transition(ctx, trustedToken, tx.ID.String(), next.String(), map[string]interface{}{})
	if err != nil {
		return nil, s.partialFailure("cancel_by_customer", StepTransition, completed, tx.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"transaction_id":  tx.ID.String(),
		"last_transition": tx.Attributes.LastTransition.String(),
		"transition":      next.String(),
		"within_window":   withinWindow,
	}).Info("Customer cancellation transitioned")

	return resp, nil
}

// ============================================================================
// INITIATE
// ============================================================================

// Initiate prices the booking and starts the transaction. For a genuine first
// booking the profile marker is written in the background; the initiate response
// is returned without waiting for it.
func (s *TransactionOrchestratorService) Initiate(
	ctx context.Context,
	caller Caller,
	req *models.InitiateRequest,
) (*marketplace.Response, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	listingID, _ := req.ListingID()

	// 2. Load the current user and derive first booking
	userResp, err := s.client.CurrentUser(ctx, caller.UserToken)
	if err != nil {
		return nil, err
	}
	user, err := decodeDocument[models.User](userResp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode current user: %w", err)
	}
	isFirstBooking := !user.HasFirstTransaction()

	// 3. Load the listing
	listingResp, err := s.client.ShowListing(ctx, caller.UserToken, listingID.String())
	if err != nil {
		return nil, err
	}
	listing, err := decodeDocument[models.Listing](listingResp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	// 4. Compute line items
	lineItems, err := s.pricing.Compute(&listing, req.BookingData, isFirstBooking)
	if err != nil {
		return nil, err
	}
	body, err := req.BodyWithLineItems(lineItems)
	if err != nil {
		return nil, err
	}

	// 5. Initiate with trusted credentials
	trustedToken, err := s.client.ExchangeTrustedToken(ctx, caller.UserToken)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.InitiateTransaction(ctx, trustedToken, body, req.QueryParams, req.IsSpeculative)
	if err != nil {
		return nil, err
	}

	logFields := logrus.Fields{
		"customer_id":      user.ID.String(),
		"listing_id":       listingID.String(),
		"speculative":      req.IsSpeculative,
		"first_booking":    isFirstBooking,
		"line_items_count": len(lineItems),
	}
	if total, err := Total(lineItems); err == nil {
		logFields["payin_total"] = total.Amount
		logFields["currency"] = total.Currency
	} else {
		logFields["payin_total_error"] = err.Error()
	}

	if req.IsSpeculative || !isFirstBooking {
		s.logger.WithFields(logFields).Info("Transaction initiated")
		return resp, nil
	}

	// 6. Record the first booking marker without holding the response
	created, err := decodeDocument[struct {
		ID models.EntityID `json:"id"`
	}](resp.Data)
	if err != nil || created.ID.IsZero() {
		s.logger.WithFields(logFields).Warn("Initiate response carries no transaction id, first booking marker not recorded")
		return resp, nil
	}
	logFields["transaction_id"] = created.ID.String()

	if patch, ok := s.tracker.OnInitiate(user.ID, isFirstBooking, req.IsSpeculative, created.ID); ok {
		detached := context.WithoutCancel(ctx)
		s.dispatch(func() {
			s.applyInitiatePatch(detached, caller, *patch, created.ID)
		})
	}

	s.logger.WithFields(logFields).Info("Transaction initiated")
	return resp, nil
}

// applyInitiatePatch writes the first booking marker. Failures are logged; the
// transaction already exists upstream.
func (s *TransactionOrchestratorService) applyInitiatePatch(ctx context.Context, caller Caller, patch FirstBookingPatch, transactionID models.EntityID) {
	if s.config.ProfileUpdateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ProfileUpdateTimeout)
		defer cancel()
	}

	_, err := s.client.UpdateProfile(ctx, patch.CustomerID.String(), patch.Metadata())
	s.recordMutation(caller, patch, transactionID, AuditActionFirstBookingSet, err)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"transaction_id":  transactionID.String(),
			"customer_id":     patch.CustomerID.String(),
			"partial_failure": true,
			"completed_steps": []string{StepInitiate},
			"failed_step":     StepProfileUpdate,
			"error":           err.Error(),
		}).Error("First booking marker not recorded")
	}
}

// ============================================================================
// UPDATE FIRST BOOKING
// ============================================================================

// UpdateFirstBooking compare-and-clears the marker for a finalized transaction. The
// marker is read from the caller's stored profile; the copy in the request body is
// only checked for shape. When nothing changes the profile is not written and the
// stored profile is returned.
func (s *TransactionOrchestratorService) UpdateFirstBooking(
	ctx context.Context,
	caller Caller,
	req *models.UpdateFirstBookingRequest,
) (*marketplace.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	userResp, customer, err := s.loadCustomer(ctx, caller, req.Customer.ID)
	if err != nil {
		return nil, err
	}
	caller.UserID = customer.ID.String()

	patch := s.tracker.OnFinalize(customer.ID, req.ID, customer.StoredFirstTransactionID())
	if !patch.Changed {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": req.ID.String(),
			"customer_id":    customer.ID.String(),
		}).Debug("First booking marker already settled, profile left untouched")
		return userResp, nil
	}

	resp, err := s.client.UpdateProfile(ctx, customer.ID.String(), patch.Metadata())
	s.recordMutation(caller, patch, req.ID, AuditActionFirstBookingClear, err)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// loadCustomer fetches the user behind the caller's token. The marketplace checks
// the token, so the returned profile is the one the caller owns; a request naming
// any other customer is refused. Callers replace the token's unverified subject
// with the returned id before auditing.
func (s *TransactionOrchestratorService) loadCustomer(ctx context.Context, caller Caller, customerID models.EntityID) (*marketplace.Response, models.User, error) {
	userResp, err := s.client.CurrentUser(ctx, caller.UserToken)
	if err != nil {
		return nil, models.User{}, err
	}
	user, err := decodeDocument[models.User](userResp.Data)
	if err != nil {
		return nil, models.User{}, fmt.Errorf("failed to decode current user: %w", err)
	}

	if user.ID != customerID {
		s.logger.WithFields(logrus.Fields{
			"user_id":     user.ID.String(),
			"customer_id": customerID.String(),
			"ip_address":  caller.IPAddress,
		}).Warn("Caller is not the customer of the request")
		return nil, models.User{}, models.NewForbiddenError("customer does not match the authenticated user")
	}

	return userResp, user, nil
}

func (s *TransactionOrchestratorService) recordMutation(caller Caller, patch FirstBookingPatch, transactionID models.EntityID, action string, mutationErr error) {
	if err := s.audit.LogFirstBookingMutation(caller, patch, transactionID, action, mutationErr); err != nil {
		s.logger.WithError(err).Warn("Failed to record first booking audit event")
	}
}

// partialFailure reports a failed step. When nothing was mutated yet the error is
// returned unchanged.
func (s *TransactionOrchestratorService) partialFailure(operation, step string, completed []string, transactionID models.EntityID, err error) error {
	if len(completed) == 0 {
		return err
	}

	fields := logrus.Fields{
		"operation":       operation,
		"transaction_id":  transactionID.String(),
		"partial_failure": true,
		"completed_steps": completed,
		"failed_step":     step,
		"error":           err.Error(),
	}
	var apiErr *marketplace.APIError
	if errors.As(err, &apiErr) {
		fields["upstream_status"] = apiErr.Status
	}
	s.logger.WithFields(fields).Error("Sequence failed after earlier steps succeeded")

	return &PartialFailureError{
		Operation:      operation,
		Step:           step,
		CompletedSteps: completed,
		Err:            err,
	}
}

func decodeDocument[T any](data json.RawMessage) (T, error) {
	var doc models.Document[T]
	if len(data) == 0 {
		return doc.Data, errors.New("empty response body")
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc.Data, err
	}
	return doc.Data, nil
}
