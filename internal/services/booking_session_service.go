package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/sirupsen/logrus"
)

// HandoffStore holds a tab's transient booking state between views
type HandoffStore interface {
	Put(ctx context.Context, tabID, slot string, value []byte) error
	Get(ctx context.Context, tabID, slot string) ([]byte, error)
	Take(ctx context.Context, tabID string, slots ...string) (map[string][]byte, error)
	Delete(ctx context.Context, tabID string, slots ...string) error
}

// SeatFare is the priced state of one seat on the details view
type SeatFare struct {
	SeatNumber    string  `json:"seatNumber"`
	PassengerFrom string  `json:"passengerFrom"`
	PassengerTo   string  `json:"passengerTo"`
	Fare          float64 `json:"fare"`
	Display       string  `json:"display"`
	Warning       string  `json:"warning,omitempty"`
}

// DetailsView is what the passenger details page renders
type DetailsView struct {
	Session *models.BookingSession `json:"session"`
	Fares   []SeatFare             `json:"fares"`
	Total   float64                `json:"total"`
}

// SegmentUpdate is the result of editing one passenger's segment
type SegmentUpdate struct {
	Seat  SeatFare `json:"seat"`
	Total float64  `json:"total"`
}

// BookingSessionService owns the bookingDetails handoff slot
type BookingSessionService struct {
	store  HandoffStore
	logger *logrus.Logger
}

// NewBookingSessionService creates a new booking session service
func NewBookingSessionService(store HandoffStore, logger *logrus.Logger) *BookingSessionService {
	return &BookingSessionService{
		store:  store,
		logger: logger,
	}
}

// Save writes the session to the tab's bookingDetails slot. A tab whose
// checkout is in flight gets ErrCheckoutInProgress.
func (s *BookingSessionService) Save(ctx context.Context, tabID string, session *models.BookingSession) error {
	if err := s.ensureEditable(ctx, tabID); err != nil {
		return err
	}
	return s.save(ctx, tabID, session)
}

func (s *BookingSessionService) save(ctx context.Context, tabID string, session *models.BookingSession) error {
	token, err := session.Encode()
	if err != nil {
		return err
	}
	return s.store.Put(ctx, tabID, database.SlotBookingDetails, token)
}

// Load reads the session, ErrSessionNotFound when the tab has none
func (s *BookingSessionService) Load(ctx context.Context, tabID string) (*models.BookingSession, error) {
	token, err := s.store.Get(ctx, tabID, database.SlotBookingDetails)
	if errors.Is(err, database.ErrSlotEmpty) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeBookingSession(token)
}

// ensureEditable refuses changes while an order exists and the checkout has
// not settled
func (s *BookingSessionService) ensureEditable(ctx context.Context, tabID string) error {
	data, err := s.store.Get(ctx, tabID, database.SlotCheckout)
	if errors.Is(err, database.ErrSlotEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	checkout, err := models.DecodeCheckout(data)
	if err != nil {
		return err
	}
	if checkout.State.InFlight() {
		return ErrCheckoutInProgress
	}
	return nil
}

// Clear drops the session
func (s *BookingSessionService) Clear(ctx context.Context, tabID string) error {
	return s.store.Delete(ctx, tabID, database.SlotBookingDetails)
}

// OpenDetails loads the session for the details view and resets every seat
// to the full route. A session without stops is discarded.
func (s *BookingSessionService) OpenDetails(ctx context.Context, tabID string) (*DetailsView, error) {
	if err := s.ensureEditable(ctx, tabID); err != nil {
		return nil, err
	}
	session, err := s.Load(ctx, tabID)
	if err != nil {
		return nil, err
	}

	if len(session.RouteStops) == 0 {
		if err := s.Clear(ctx, tabID); err != nil {
			s.logger.WithError(err).WithField("tab_id", tabID).Warn("Failed to discard invalid booking session")
		}
		return nil, models.ErrSessionInvalid
	}

	first, last := session.RouteStops.First(), session.RouteStops.Last()
	fares := make([]SeatFare, len(session.Seats))
	for i := range session.Seats {
		fares[i] = s.price(session, i, first, last)
	}

	if err := s.save(ctx, tabID, session); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tab_id": tabID,
		"bus_id": session.BusID,
		"seats":  len(session.Seats),
		"total":  session.Total(),
	}).Debug("Booking session opened")

	return &DetailsView{Session: session, Fares: fares, Total: session.Total()}, nil
}

// UpdateSegment changes one passenger's boarding and alighting stops.
// Only that seat is repriced.
func (s *BookingSessionService) UpdateSegment(ctx context.Context, tabID, seatNumber, from, to string) (*SegmentUpdate, error) {
	if err := s.ensureEditable(ctx, tabID); err != nil {
		return nil, err
	}
	session, err := s.Load(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if len(session.RouteStops) == 0 {
		return nil, models.ErrSessionInvalid
	}

	idx := session.SeatIndex(seatNumber)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrSeatNotInSession, seatNumber)
	}

	seat := s.price(session, idx, from, to)
	if err := s.save(ctx, tabID, session); err != nil {
		return nil, err
	}
	return &SegmentUpdate{Seat: seat, Total: session.Total()}, nil
}

// price sets the segment and strict fare of session.Seats[idx]
func (s *BookingSessionService) price(session *models.BookingSession, idx int, from, to string) SeatFare {
	seat := &session.Seats[idx]
	res := fare.Compute(seat.Price, session.RouteStops, from, to, fare.Strict)

	seat.PassengerFrom = from
	seat.PassengerTo = to
	seat.DynamicFare = res.Amount

	return SeatFare{
		SeatNumber:    seat.Number,
		PassengerFrom: from,
		PassengerTo:   to,
		Fare:          res.Amount,
		Display:       res.Display(),
		Warning:       res.Warning,
	}
}

// ============================================================================
// COMPLETION FLAGS
// ============================================================================

// MarkBooked drops the session once every seat is confirmed and leaves the
// bookingStatus flag for the next view.
func (s *BookingSessionService) MarkBooked(ctx context.Context, tabID string) error {
	if err := s.Clear(ctx, tabID); err != nil {
		return fmt.Errorf("failed to clear booking session: %w", err)
	}
	if err := s.store.Put(ctx, tabID, database.SlotBookingStatus, []byte(models.BookingStatusSuccess)); err != nil {
		return fmt.Errorf("failed to record booking status: %w", err)
	}
	return nil
}

// RecordEmailStatus leaves the ticket email outcome for the next view
func (s *BookingSessionService) RecordEmailStatus(ctx context.Context, tabID string, status models.EmailStatusFlag) error {
	return s.store.Put(ctx, tabID, database.SlotEmailStatus, []byte(status))
}

// TakeStatusFlags returns the completion flags and removes them.
func (s *BookingSessionService) TakeStatusFlags(ctx context.Context, tabID string) (models.StatusFlags, error) {
	taken, err := s.store.Take(ctx, tabID, database.SlotBookingStatus, database.SlotEmailStatus)
	if err != nil {
		return models.StatusFlags{}, err
	}
	return models.StatusFlags{
		BookingStatus: models.BookingStatusFlag(taken[database.SlotBookingStatus]),
		EmailStatus:   models.EmailStatusFlag(taken[database.SlotEmailStatus]),
	}, nil
}
