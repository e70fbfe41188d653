package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func TestGetByEntityID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditLogRepository(db)

	t.Run("Success", func(t *testing.T) {
		entityID := uuid.New()
		userID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM audit_logs`).
			WithArgs(entityID, 10).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "action", "entity_type", "entity_id",
				"ip_address", "user_agent", "details", "created_at",
			}).
				AddRow(2, userID.String(), "cancel_transition_resolved", "transaction", entityID.String(),
					"203.0.113.7", "curl/8.0", []byte(`{"with_refund":true}`), now).
				AddRow(1, nil, "first_booking_flag_set", "transaction", entityID.String(),
					nil, nil, []byte(`{}`), now.Add(-time.Hour)))

		logs, err := repo.GetByEntityID(entityID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)

		assert.Equal(t, "cancel_transition_resolved", logs[0].Action)
		assert.True(t, logs[0].UserID.Valid)
		assert.Equal(t, userID, logs[0].UserID.UUID)
		require.NotNil(t, logs[0].IPAddress)
		assert.Equal(t, "203.0.113.7", *logs[0].IPAddress)
		assert.JSONEq(t, `{"with_refund":true}`, string(logs[0].Details))

		assert.False(t, logs[1].UserID.Valid)
		assert.Nil(t, logs[1].IPAddress)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Default limit", func(t *testing.T) {
		entityID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM audit_logs`).
			WithArgs(entityID, 50).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		logs, err := repo.GetByEntityID(entityID, 0)
		require.NoError(t, err)
		assert.Empty(t, logs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM audit_logs`).
			WillReturnError(fmt.Errorf("database error"))

		logs, err := repo.GetByEntityID(uuid.New(), 5)
		assert.Error(t, err)
		assert.Nil(t, logs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountByActionSince(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditLogRepository(db)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WithArgs("cancel_transition_resolved", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByActionSince("cancel_transition_resolved", since)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureAuditSchema(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureAuditSchema(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureAuditSchema_Error(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_logs`).
		WillReturnError(fmt.Errorf("permission denied"))

	err := EnsureAuditSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit_logs table")
}
