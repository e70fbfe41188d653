package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is a row of the audit_logs table
type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	UserID     uuid.NullUUID   `db:"user_id" json:"user_id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.NullUUID   `db:"entity_id" json:"entity_id"`
	IPAddress  *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string         `db:"user_agent" json:"user_agent,omitempty"`
	Details    json.RawMessage `db:"details" json:"details"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
