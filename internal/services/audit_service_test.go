package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentalmarket/booking-backend/internal/database"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

func setupAuditTest(t *testing.T) (*AuditService, sqlmock.Sqlmock, *test.Hook) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	postgresDB := &database.PostgresDB{DB: sqlxDB}

	logger, hook := test.NewNullLogger()
	return NewAuditService(postgresDB, logger), mock, hook
}

func testCaller() Caller {
	return Caller{
		UserToken: "user-token",
		UserID:    "0b7c1d2e-3f40-4a5b-8c6d-7e8f9a0b1c2d",
		IPAddress: "203.0.113.7",
		UserAgent: testUserAgent,
	}
}

func TestLogTransitionResolved(t *testing.T) {
	service, mock, hook := setupAuditTest(t)
	txID := models.NewEntityID(uuid.New())

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), AuditActionTransitionResolved, "transaction", sqlmock.AnyArg(),
			"203.0.113.7", testUserAgent, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.LogTransitionResolved(testCaller(), txID, models.TransitionAccept,
		models.TransitionCancelAfterAcceptedWithRefund, time.Now().Add(-time.Hour), true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, AuditActionTransitionResolved, entry.Data["audit_action"])
	assert.Equal(t, txID.String(), entry.Data["entity_id"])
	assert.Equal(t, true, entry.Data["with_refund"])
}

func TestLogFirstBookingMutation(t *testing.T) {
	service, mock, hook := setupAuditTest(t)
	customer := models.NewEntityID(uuid.New())
	txID := models.NewEntityID(uuid.New())

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), AuditActionFirstBookingClear, "profile", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	patch := FirstBookingPatch{CustomerID: customer, FirstTransactionID: models.NullID(), Changed: true}
	err := service.LogFirstBookingMutation(testCaller(), patch, txID, AuditActionFirstBookingClear, errors.New("upstream 500"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, false, entry.Data["success"])
	assert.Equal(t, "upstream 500", entry.Data["error"])
	assert.Equal(t, customer.String(), entry.Data["entity_id"])
}

func TestLogEvent_DatabaseError(t *testing.T) {
	service, mock, _ := setupAuditTest(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errors.New("connection refused"))

	err := service.LogTransitionResolved(testCaller(), models.NewEntityID(uuid.New()),
		models.TransitionRequest, models.TransitionCancelBeforeAccepted, time.Now(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to log audit event")
}

func TestLogEvent_WithoutDatabase(t *testing.T) {
	logger, hook := test.NewNullLogger()
	service := NewAuditService(nil, logger)

	err := service.LogTransitionResolved(Caller{}, models.NewEntityID(uuid.New()),
		models.TransitionRequest, models.TransitionCancelBeforeAccepted, time.Now(), false)
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 1)
	_, hasUser := hook.LastEntry().Data["user_id"]
	assert.False(t, hasUser)

	removed, err := service.CleanupOldAuditLogs(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCleanupOldAuditLogs(t *testing.T) {
	service, mock, _ := setupAuditTest(t)

	mock.ExpectExec("DELETE FROM audit_logs").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := service.CleanupOldAuditLogs(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
