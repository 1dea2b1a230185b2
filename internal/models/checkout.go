package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// CHECKOUT STATE MACHINE
// ============================================================================

// CheckoutState is where a tab's payment currently stands
type CheckoutState string

const (
	CheckoutIdle             CheckoutState = "IDLE"
	CheckoutOrderCreated     CheckoutState = "ORDER_CREATED"
	CheckoutPaymentPending   CheckoutState = "PAYMENT_PENDING"   // Widget open in the browser
	CheckoutPaymentSucceeded CheckoutState = "PAYMENT_SUCCEEDED" // Money captured, bookings in flight
	CheckoutBookingPersisted CheckoutState = "BOOKING_PERSISTED"
	CheckoutFinalizing       CheckoutState = "FINALIZING"
	CheckoutDone             CheckoutState = "DONE"
	CheckoutPaymentFailed    CheckoutState = "PAYMENT_FAILED"
	CheckoutPaymentCancelled CheckoutState = "PAYMENT_CANCELLED"
	CheckoutBookingFailed    CheckoutState = "BOOKING_FAILED" // Charged but not booked, needs support
)

// ErrInvalidTransition is returned for a move the state machine forbids
var ErrInvalidTransition = errors.New("invalid checkout transition")

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:             {CheckoutOrderCreated},
	CheckoutOrderCreated:     {CheckoutPaymentPending},
	CheckoutPaymentPending:   {CheckoutPaymentSucceeded, CheckoutPaymentFailed, CheckoutPaymentCancelled},
	CheckoutPaymentSucceeded: {CheckoutBookingPersisted, CheckoutBookingFailed},
	CheckoutBookingPersisted: {CheckoutFinalizing},
	CheckoutFinalizing:       {CheckoutDone},
	CheckoutPaymentFailed:    {CheckoutIdle},
	CheckoutPaymentCancelled: {CheckoutIdle},
	CheckoutDone:             {},
	CheckoutBookingFailed:    {},
}

// IsValid returns true for a known state
func (s CheckoutState) IsValid() bool {
	_, ok := checkoutTransitions[s]
	return ok
}

// CanTransitionTo reports whether next may follow s.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true when nothing can follow s.
func (s CheckoutState) IsTerminal() bool {
	allowed, ok := checkoutTransitions[s]
	return !ok || len(allowed) == 0
}

// Charged reports whether the customer has paid by the time s is reached.
func (s CheckoutState) Charged() bool {
	switch s {
	case CheckoutPaymentSucceeded, CheckoutBookingPersisted, CheckoutFinalizing,
		CheckoutDone, CheckoutBookingFailed:
		return true
	}
	return false
}

// InFlight is true from order creation until the checkout settles. The
// booking session is frozen meanwhile.
func (s CheckoutState) InFlight() bool {
	switch s {
	case CheckoutOrderCreated, CheckoutPaymentPending, CheckoutPaymentSucceeded,
		CheckoutBookingPersisted, CheckoutFinalizing:
		return true
	}
	return false
}

// ParseCheckoutState converts a stored string back to a state
func ParseCheckoutState(s string) (CheckoutState, error) {
	state := CheckoutState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid checkout state: %s", s)
	}
	return state, nil
}

// ============================================================================
// CHECKOUT RECORD
// ============================================================================

// PendingOrder is the payment order created for one checkout.
type PendingOrder struct {
	OrderID          string `json:"orderId"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
}

// PassengerDetails is what the details form collects for one seat.
type PassengerDetails struct {
	SeatNumber string `json:"seatNumber" binding:"required"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email,omitempty"` // Defaults to the customer's email
}

// Checkout is the persisted state of one payment attempt for a tab.
// Seats is the priced selection as it stood when the order was created;
// bookings are made from it, never from the live session.
type Checkout struct {
	ID            uuid.UUID          `json:"id"`
	TabID         string             `json:"tabId"`
	State         CheckoutState      `json:"state"`
	Order         *PendingOrder      `json:"order,omitempty"`
	BusID         string             `json:"busId,omitempty"`
	TravelDate    string             `json:"travelDate,omitempty"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	Seats         []SelectedSeat     `json:"seats,omitempty"`
	Total         float64            `json:"total"`
	Passengers    []PassengerDetails `json:"passengers,omitempty"`
	PaymentID     string             `json:"paymentId,omitempty"`
	FailedSeats   []string           `json:"failedSeats,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// SeatNumbers lists the seats the checkout pays for
func (c *Checkout) SeatNumbers() []string {
	out := make([]string, len(c.Seats))
	for i, seat := range c.Seats {
		out[i] = seat.Number
	}
	return out
}

// NewCheckout starts an idle checkout for a tab
func NewCheckout(tabID string) *Checkout {
	now := time.Now()
	return &Checkout{
		ID:        uuid.New(),
		TabID:     tabID,
		State:     CheckoutIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the checkout to next, refusing moves the state machine does not allow.
func (c *Checkout) Transition(next CheckoutState) error {
	if !c.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, next)
	}
	c.State = next
	c.UpdatedAt = time.Now()
	return nil
}

// Encode serializes the checkout for the handoff store
func (c *Checkout) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCheckout restores a checkout written by Encode
func DecodeCheckout(data []byte) (*Checkout, error) {
	var c Checkout
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout: %w", err)
	}
	return &c, nil
}

// OrderID returns the order id or "" before an order exists
func (c *Checkout) OrderID() string {
	if c.Order == nil {
		return ""
	}
	return c.Order.OrderID
}

// ============================================================================
// PAYMENT WIDGET BOUNDARY
// ============================================================================

// WidgetOptions is handed to the browser to open the checkout widget.
type WidgetOptions struct {
	Key         string         `json:"key"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	OrderID     string         `json:"order_id"`
	Prefill     WidgetPrefill  `json:"prefill"`
	Theme       map[string]any `json:"theme,omitempty"`
}

// WidgetPrefill fills the widget's contact fields
type WidgetPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentSuccess is the widget's success callback.
type PaymentSuccess struct {
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	Signature string `json:"razorpay_signature,omitempty"`
}

// PaymentFailure is the widget's failure callback.
type PaymentFailure struct {
	OrderID     string `json:"orderId"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
}
