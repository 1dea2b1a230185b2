package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCheckoutNotFound is returned for callbacks on a tab with no checkout
	ErrCheckoutNotFound = errors.New("no checkout in progress")
	// ErrCheckoutInProgress is returned when a tab already has an open widget
	ErrCheckoutInProgress = errors.New("a payment is already in progress for this booking")
	// ErrOrderMismatch is returned when a callback names a different order
	ErrOrderMismatch = errors.New("payment callback does not match the current order")
	// ErrCheckoutClosed is returned for callbacks after the checkout left PAYMENT_PENDING
	ErrCheckoutClosed = errors.New("checkout is no longer awaiting payment")
	// ErrPublisherClosed is returned for events published after shutdown
	ErrPublisherClosed = errors.New("checkout event publisher is closed")
)

// ValidationError is raised before any network call and changes no state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SeatFailure is one seat the backend refused to book
type SeatFailure struct {
	SeatNumber string `json:"seatNumber"`
	Reason     string `json:"reason"`
}

// BookingFailedError means the customer paid but at least one seat was not booked.
// It is never retried; the order id goes to support.
type BookingFailedError struct {
	OrderID   string        `json:"orderId"`
	PaymentID string        `json:"paymentId"`
	Failures  []SeatFailure `json:"failures"`
}

func (e *BookingFailedError) Error() string {
	return fmt.Sprintf("payment %s succeeded but booking failed for seats %s; contact support with order id %s",
		e.PaymentID, strings.Join(e.FailedSeats(), ", "), e.OrderID)
}

// FailedSeats lists the seat numbers that were not booked
func (e *BookingFailedError) FailedSeats() []string {
	seats := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		seats[i] = f.SeatNumber
	}
	return seats
}
