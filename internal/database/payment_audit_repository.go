package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an entry to the checkout ledger
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, checkout_id, tab_id, order_id, payment_id,
			event_type, event_source, from_state, to_state,
			amount_minor, currency, seat_numbers,
			error_message,
			ip_address, user_agent, device_info,
			processing_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13,
			$14, $15, $16,
			$17, $18
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.CheckoutID, audit.TabID, audit.OrderID, audit.PaymentID,
		audit.EventType, audit.EventSource, audit.FromState, audit.ToState,
		audit.AmountMinor, audit.Currency, audit.SeatNumbers,
		audit.ErrorMessage,
		audit.IPAddress, audit.UserAgent, audit.DeviceInfo,
		audit.ProcessingTimeMs, audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":  audit.EventType,
			"checkout_id": audit.CheckoutID,
			"order_id":    audit.OrderID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// GetByOrderID retrieves the ledger for a gateway order, oldest first
func (r *PaymentAuditRepository) GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE order_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by order ID: %w", err)
	}

	return audits, nil
}

// GetByCheckoutID retrieves all entries for one checkout
func (r *PaymentAuditRepository) GetByCheckoutID(ctx context.Context, checkoutID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE checkout_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by checkout ID: %w", err)
	}

	return audits, nil
}

// GetUnresolvedBookingFailures lists charged-but-unbooked orders for support
func (r *PaymentAuditRepository) GetUnresolvedBookingFailures(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE event_type = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &audits, query, models.PaymentEventBookingConfirmFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking failures: %w", err)
	}

	return audits, nil
}
