package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditStore persists checkout audit rows
type AuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	GetByCheckoutID(ctx context.Context, checkoutID uuid.UUID) ([]*models.PaymentAudit, error)
	GetUnresolvedBookingFailures(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// RequestMeta is the caller information attached to audit rows
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta stores caller information on the context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditEntry describes one checkout step for the ledger
type AuditEntry struct {
	Checkout *models.Checkout
	From     models.CheckoutState
	Event    models.PaymentEventType
	Source   models.PaymentEventSource
	Seats    []string
	Error    string
	Started  time.Time
}

// AuditService records every checkout step in the payment audit ledger.
// A nil store turns it into a logger only.
type AuditService struct {
	store  AuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// Record writes the entry. Failures are logged and never reach the checkout.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	audit := models.NewPaymentAudit(entry.Checkout, entry.Event, entry.Source)
	if entry.From != "" {
		audit.SetFromState(entry.From)
	}
	if len(entry.Seats) > 0 {
		audit.SetSeats(entry.Seats)
	}
	if entry.Error != "" {
		audit.SetError(entry.Error)
	}
	if !entry.Started.IsZero() {
		audit.SetProcessingTime(entry.Started)
	}

	meta := requestMetaFrom(ctx)
	var device models.JSONB
	if meta.UserAgent != "" {
		device = models.JSONB(utils.ParseUserAgent(meta.UserAgent).Map())
	}
	audit.SetMetadata(meta.IPAddress, meta.UserAgent, device)

	fields := logrus.Fields{
		"checkout_id": entry.Checkout.ID,
		"tab_id":      entry.Checkout.TabID,
		"event":       entry.Event,
		"state":       entry.Checkout.State,
	}
	if orderID := entry.Checkout.OrderID(); orderID != "" {
		fields["order_id"] = orderID
	}
	s.logger.WithFields(fields).Info("Checkout event")

	if s.store == nil {
		return
	}
	if err := s.store.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Failed to write payment audit")
	}
}

// History returns the ledger rows of one checkout
func (s *AuditService) History(ctx context.Context, checkoutID uuid.UUID) ([]*models.PaymentAudit, error) {
	if s.store == nil {
		return []*models.PaymentAudit{}, nil
	}
	return s.store.GetByCheckoutID(ctx, checkoutID)
}

// UnresolvedBookingFailures lists charged checkouts whose seats were not booked
func (s *AuditService) UnresolvedBookingFailures(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	if s.store == nil {
		return []*models.PaymentAudit{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.GetUnresolvedBookingFailures(ctx, limit)
}
