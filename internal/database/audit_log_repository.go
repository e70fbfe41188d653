package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentalmarket/booking-backend/internal/models"
)

// AuditLogRepository reads the audit trail written by the audit service
type AuditLogRepository struct {
	db DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// GetByEntityID retrieves the most recent audit entries for a transaction or profile
func (r *AuditLogRepository) GetByEntityID(entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	logs := []models.AuditLog{}
	query := `
		SELECT id, user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.Select(&logs, query, entityID, limit); err != nil {
		return nil, fmt.Errorf("failed to get audit logs by entity: %w", err)
	}

	return logs, nil
}

// CountByActionSince counts the entries of one action recorded after since
func (r *AuditLogRepository) CountByActionSince(action string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM audit_logs
		WHERE action = $1
		AND created_at > $2`

	if err := r.db.Get(&count, query, action, since); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}
