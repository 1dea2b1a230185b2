package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuditRepo(t *testing.T) (*PaymentAuditRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewPaymentAuditRepository(sqlxDB, logger), mock, func() { db.Close() }
}

func sampleCheckout() *models.Checkout {
	c := models.NewCheckout("tab-1")
	c.State = models.CheckoutBookingFailed
	c.Order = &models.PendingOrder{OrderID: "order_123", AmountMinorUnits: 35000, Currency: "INR"}
	c.PaymentID = "pay_456"
	return c
}

func TestPaymentAuditRepository_Log(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	audit := models.NewPaymentAudit(sampleCheckout(), models.PaymentEventBookingConfirmFailed, models.PaymentSourceBackend).
		SetFromState(models.CheckoutPaymentSucceeded).
		SetSeats([]string{"L1", "S4"}).
		SetError("seat S4: Seat already booked")

	args := make([]driver.Value, 18)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO payment_audits").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Log(context.Background(), audit)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "order_123", *audit.OrderID)
	assert.Equal(t, int64(35000), *audit.AmountMinor)
	assert.Equal(t, "PAYMENT_SUCCEEDED", *audit.FromState)
	assert.Equal(t, "BOOKING_FAILED", *audit.ToState)
}

func TestPaymentAuditRepository_LogError(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO payment_audits").WillReturnError(errors.New("connection reset"))

	err := repo.Log(context.Background(), models.NewPaymentAudit(sampleCheckout(), models.PaymentEventFailed, models.PaymentSourceWidget))
	assert.ErrorContains(t, err, "failed to log payment audit")
}

func TestPaymentAuditRepository_LogNil(t *testing.T) {
	repo, _, cleanup := setupAuditRepo(t)
	defer cleanup()

	assert.Error(t, repo.Log(context.Background(), nil))
}

func TestPaymentAuditRepository_GetByOrderID(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	checkoutID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "checkout_id", "tab_id", "order_id", "event_type", "event_source", "created_at"}).
		AddRow(uuid.New().String(), checkoutID.String(), "tab-1", "order_123", "order_created", "gateway", time.Now()).
		AddRow(uuid.New().String(), checkoutID.String(), "tab-1", "order_123", "payment_success", "widget", time.Now())

	mock.ExpectQuery("SELECT \\* FROM payment_audits").
		WithArgs("order_123").
		WillReturnRows(rows)

	audits, err := repo.GetByOrderID(context.Background(), "order_123")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, checkoutID, audits[0].CheckoutID)
	assert.Equal(t, models.PaymentEventSuccess, audits[1].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
