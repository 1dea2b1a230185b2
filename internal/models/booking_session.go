package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onlinebus/booking-gateway/pkg/fare"
)

// ============================================================================
// BOOKING SESSION (seat selection → passenger details handoff)
// ============================================================================

var (
	// ErrSessionNotFound means the tab has no booking in progress
	ErrSessionNotFound = errors.New("booking session not found")
	// ErrSessionInvalid means the stored booking cannot be priced
	ErrSessionInvalid = errors.New("booking session is missing route information")
	// ErrSeatNotInSession means the seat number is not part of the booking
	ErrSeatNotInSession = errors.New("seat is not part of this booking")
)

// BookingSession carries a tab's selected seats from the seat map to the passenger form.
type BookingSession struct {
	BusID      string         `json:"busId"`
	BusName    string         `json:"busName"`
	TravelDate string         `json:"travelDate"`
	RouteStops Route          `json:"routeStops"`
	Seats      []SelectedSeat `json:"seats"`
	UserEmail  string         `json:"userEmail"`
	UserName   string         `json:"userName"`
}

// Encode serializes the session for the handoff slot
func (s *BookingSession) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking session: %w", err)
	}
	return data, nil
}

// DecodeBookingSession restores a session written by Encode.
// An empty token yields ErrSessionNotFound.
func DecodeBookingSession(token []byte) (*BookingSession, error) {
	if len(token) == 0 {
		return nil, ErrSessionNotFound
	}
	var s BookingSession
	if err := json.Unmarshal(token, &s); err != nil {
		return nil, fmt.Errorf("failed to decode booking session: %w", err)
	}
	return &s, nil
}

// Total is the sum of the seats' chargeable fares.
func (s *BookingSession) Total() float64 {
	fares := make([]float64, len(s.Seats))
	for i, seat := range s.Seats {
		fares[i] = seat.DynamicFare
	}
	return fare.Total(fares...)
}

// SeatIndex returns the position of a seat number, -1 when absent.
func (s *BookingSession) SeatIndex(number string) int {
	for i, seat := range s.Seats {
		if seat.Number == number {
			return i
		}
	}
	return -1
}

// SeatNumbers lists the seat numbers in selection order
func (s *BookingSession) SeatNumbers() []string {
	numbers := make([]string, len(s.Seats))
	for i, seat := range s.Seats {
		numbers[i] = seat.Number
	}
	return numbers
}

// ============================================================================
// READ-ONCE STATUS FLAGS
// ============================================================================

// BookingStatusFlag is written when bookings are confirmed
type BookingStatusFlag string

const (
	BookingStatusSuccess BookingStatusFlag = "success"
)

// EmailStatusFlag records how ticket finalization went
type EmailStatusFlag string

const (
	EmailStatusSent   EmailStatusFlag = "sent"
	EmailStatusFailed EmailStatusFlag = "failed"
)

// StatusFlags is the pair the dashboard reads once after a booking.
type StatusFlags struct {
	BookingStatus BookingStatusFlag `json:"bookingStatus,omitempty"`
	EmailStatus   EmailStatusFlag   `json:"emailStatus,omitempty"`
}

// Empty reports whether neither flag was set
func (f StatusFlags) Empty() bool {
	return f.BookingStatus == "" && f.EmailStatus == ""
}
