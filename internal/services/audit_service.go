package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentalmarket/booking-backend/internal/database"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// Audit actions
const (
	AuditActionTransitionResolved = "cancel_transition_resolved"
	AuditActionFirstBookingSet    = "first_booking_flag_set"
	AuditActionFirstBookingClear  = "first_booking_flag_cleared"
)

// AuditRecorder receives one event per resolved transition and one per flag mutation
type AuditRecorder interface {
	LogTransitionResolved(caller Caller, transactionID models.EntityID, last, next models.Transition, createdAt time.Time, withinWindow bool) error
	LogFirstBookingMutation(caller Caller, patch FirstBookingPatch, transactionID models.EntityID, action string, mutationErr error) error
}

// AuditService writes audit events to the structured log and, when a database is
// configured, to the audit_logs table
type AuditService struct {
	db     database.DB
	logger *logrus.Logger
}

// NewAuditService creates a new audit service. db may be nil, in which case events
// are only logged.
func NewAuditService(db database.DB, logger *logrus.Logger) *AuditService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuditService{
		db:     db,
		logger: logger,
	}
}

// AuditEvent represents an engine decision or mutation to be recorded
type AuditEvent struct {
	UserID     *uuid.UUID             // Caller, nil for integration-only calls
	Action     string                 // Action type (e.g., "cancel_transition_resolved")
	EntityType string                 // Type of entity affected (e.g., "transaction", "profile")
	EntityID   *uuid.UUID             // ID of the affected entity
	IPAddress  string                 // Client IP address
	UserAgent  string                 // Client user agent
	Details    map[string]interface{} // Additional details as JSONB
}

// LogTransitionResolved records the transition chosen for a customer cancellation
func (s *AuditService) LogTransitionResolved(caller Caller, transactionID models.EntityID, last, next models.Transition, createdAt time.Time, withinWindow bool) error {
	details := map[string]interface{}{
		"last_transition": last.String(),
		"next_transition": next.String(),
		"created_at":      createdAt.UTC().Format(time.RFC3339),
		"within_window":   withinWindow,
		"with_refund":     next.WithRefund(),
		"device_info":     utils.ParseUserAgent(caller.UserAgent),
	}

	return s.logEvent(AuditEvent{
		UserID:     caller.userUUID(),
		Action:     AuditActionTransitionResolved,
		EntityType: "transaction",
		EntityID:   entityUUID(transactionID),
		IPAddress:  caller.IPAddress,
		UserAgent:  caller.UserAgent,
		Details:    details,
	})
}

// LogFirstBookingMutation records a write (or attempted write) of firstTransactionId
func (s *AuditService) LogFirstBookingMutation(caller Caller, patch FirstBookingPatch, transactionID models.EntityID, action string, mutationErr error) error {
	details := map[string]interface{}{
		"transaction_id":       transactionID.String(),
		"first_transaction_id": patch.FirstTransactionID.Ptr(),
		"changed":              patch.Changed,
		"success":              mutationErr == nil,
		"device_info":          utils.ParseUserAgent(caller.UserAgent),
	}
	if mutationErr != nil {
		details["error"] = mutationErr.Error()
	}

	return s.logEvent(AuditEvent{
		UserID:     caller.userUUID(),
		Action:     action,
		EntityType: "profile",
		EntityID:   entityUUID(patch.CustomerID),
		IPAddress:  caller.IPAddress,
		UserAgent:  caller.UserAgent,
		Details:    details,
	})
}

// logEvent logs the event and writes it to the audit_logs table
func (s *AuditService) logEvent(event AuditEvent) error {
	fields := logrus.Fields{
		"audit_action": event.Action,
		"entity_type":  event.EntityType,
		"ip_address":   event.IPAddress,
	}
	if event.EntityID != nil {
		fields["entity_id"] = event.EntityID.String()
	}
	if event.UserID != nil {
		fields["user_id"] = event.UserID.String()
	}
	for k, v := range event.Details {
		if k != "device_info" {
			fields[k] = v
		}
	}
	s.logger.WithFields(fields).Info("Audit event")

	if s.db == nil {
		return nil
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = s.db.Exec(
		query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		string(details),
	)

	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(olderThan time.Duration) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	cutoffTime := time.Now().Add(-olderThan)

	query := `
		DELETE FROM audit_logs
		WHERE created_at < $1
	`

	result, err := s.db.Exec(query, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func entityUUID(id models.EntityID) *uuid.UUID {
	if id.IsZero() {
		return nil
	}
	u := id.UUID
	return &u
}
