package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of checkout event
type PaymentEventType string

const (
	PaymentEventOrderCreated         PaymentEventType = "order_created"
	PaymentEventOrderFailed          PaymentEventType = "order_failed"
	PaymentEventWidgetOpened         PaymentEventType = "widget_opened"
	PaymentEventSuccess              PaymentEventType = "payment_success"
	PaymentEventFailed               PaymentEventType = "payment_failed"
	PaymentEventCancelled            PaymentEventType = "payment_cancelled"
	PaymentEventBookingConfirmed     PaymentEventType = "booking_confirmed"
	PaymentEventBookingConfirmFailed PaymentEventType = "booking_confirmation_failed"
	PaymentEventFinalized            PaymentEventType = "finalized"
	PaymentEventFinalizeFailed       PaymentEventType = "finalize_failed"
	PaymentEventDuplicateCallback    PaymentEventType = "duplicate_callback"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceGateway PaymentEventSource = "gateway"
	PaymentSourceWidget  PaymentEventSource = "widget"
	PaymentSourceBackend PaymentEventSource = "backend"
	PaymentSourceUser    PaymentEventSource = "user"
)

// PaymentAudit is an immutable ledger row for one checkout transition
type PaymentAudit struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CheckoutID uuid.UUID `json:"checkout_id" db:"checkout_id"`
	TabID      string    `json:"tab_id" db:"tab_id"`
	OrderID    *string   `json:"order_id,omitempty" db:"order_id"`
	PaymentID  *string   `json:"payment_id,omitempty" db:"payment_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`
	FromState   *string            `json:"from_state,omitempty" db:"from_state"`
	ToState     *string            `json:"to_state,omitempty" db:"to_state"`

	// Amount in minor units as sent to the gateway
	AmountMinor *int64      `json:"amount_minor,omitempty" db:"amount_minor"`
	Currency    *string     `json:"currency,omitempty" db:"currency"`
	SeatNumbers StringArray `json:"seat_numbers,omitempty" db:"seat_numbers"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo JSONB   `json:"device_info,omitempty" db:"device_info"`

	ProcessingTimeMs *int      `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates an audit entry for a checkout
func NewPaymentAudit(checkout *Checkout, eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	pa := &PaymentAudit{
		ID:          uuid.New(),
		CheckoutID:  checkout.ID,
		TabID:       checkout.TabID,
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
	to := string(checkout.State)
	pa.ToState = &to
	if orderID := checkout.OrderID(); orderID != "" {
		pa.OrderID = &orderID
		pa.AmountMinor = &checkout.Order.AmountMinorUnits
		pa.Currency = &checkout.Order.Currency
	}
	if checkout.PaymentID != "" {
		pa.PaymentID = &checkout.PaymentID
	}
	return pa
}

// SetFromState records the state left by the transition
func (pa *PaymentAudit) SetFromState(state CheckoutState) *PaymentAudit {
	s := string(state)
	pa.FromState = &s
	return pa
}

// SetSeats records the seats involved
func (pa *PaymentAudit) SetSeats(numbers []string) *PaymentAudit {
	pa.SeatNumbers = StringArray(numbers)
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string, device JSONB) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	pa.DeviceInfo = device
	return pa
}

// SetProcessingTime records how long the step took
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}
