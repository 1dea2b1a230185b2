package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSelectionNotFound is returned when the tab never loaded a seat map
	ErrSelectionNotFound = errors.New("no seat map loaded for this tab")
	// ErrNoSeatLayout is returned for a bus whose operator has not saved seats
	ErrNoSeatLayout = errors.New("no seat information available for this bus")
)

// SeatCatalog is the part of the backend the seat map reads
type SeatCatalog interface {
	SeatLayoutByBus(ctx context.Context, busID string) (*models.SeatLayout, error)
	BookedSeats(ctx context.Context, busID, date string) ([]string, error)
	RouteStops(ctx context.Context, busID string) (models.Route, error)
}

// SeatMapRequest identifies the trip whose seats are shown
type SeatMapRequest struct {
	BusID      string `form:"busId" json:"busId"`
	BusName    string `form:"busName" json:"busName"`
	TravelDate string `form:"date" json:"date"`
	From       string `form:"from" json:"from"`
	To         string `form:"to" json:"to"`
}

// Identity is the signed-in customer proceeding to checkout
type Identity struct {
	Email string
	Name  string
}

// SeatMap is the rendered seat plan with the current selection
type SeatMap struct {
	BusID      string                `json:"busId"`
	BusName    string                `json:"busName"`
	TravelDate string                `json:"travelDate"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	RouteStops models.Route          `json:"routeStops"`
	Seats      []models.SeatView     `json:"seats"`
	Selected   []models.SelectedSeat `json:"selected"`
	Total      float64               `json:"total"`
	MaxSeats   int                   `json:"maxSeats"`
}

// SeatSelectionService drives the seat map and hands the selection to the details view
type SeatSelectionService struct {
	catalog  SeatCatalog
	store    HandoffStore
	sessions *BookingSessionService
	maxSeats int
	logger   *logrus.Logger
}

// NewSeatSelectionService creates a new seat selection service
func NewSeatSelectionService(
	catalog SeatCatalog,
	store HandoffStore,
	sessions *BookingSessionService,
	maxSeats int,
	logger *logrus.Logger,
) *SeatSelectionService {
	return &SeatSelectionService{
		catalog:  catalog,
		store:    store,
		sessions: sessions,
		maxSeats: maxSeats,
		logger:   logger,
	}
}

// LoadSeatMap fetches layout, sold seats and stops for a trip and starts a fresh selection
func (s *SeatSelectionService) LoadSeatMap(ctx context.Context, tabID string, req SeatMapRequest) (*SeatMap, error) {
	if req.BusID == "" || req.TravelDate == "" {
		return nil, newValidationError("busId", "Bus and travel date are required")
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		return nil, newValidationError("from", "Origin and destination are required")
	}

	var (
		layout *models.SeatLayout
		booked []string
		stops  models.Route
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		layout, err = s.catalog.SeatLayoutByBus(gctx, req.BusID)
		return err
	})
	g.Go(func() error {
		var err error
		booked, err = s.catalog.BookedSeats(gctx, req.BusID, req.TravelDate)
		return err
	})
	g.Go(func() error {
		var err error
		stops, err = s.catalog.RouteStops(gctx, req.BusID)
		if err != nil {
			// The seat map still works on the searched endpoints alone
			s.logger.WithError(err).WithField("bus_id", req.BusID).Warn("Failed to load route stops, using search endpoints")
			stops = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if layout == nil || len(layout.Seats) == 0 {
		return nil, ErrNoSeatLayout
	}
	if len(stops) < 2 {
		stops = models.Route{req.From, req.To}
	}

	selection := &models.SeatSelection{
		BusID:      req.BusID,
		BusName:    req.BusName,
		TravelDate: req.TravelDate,
		From:       req.From,
		To:         req.To,
		RouteStops: stops,
		Layout:     layout.Seats,
		Booked:     booked,
		Selected:   []models.SelectedSeat{},
	}
	if err := s.save(ctx, tabID, selection); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tab_id": tabID,
		"bus_id": req.BusID,
		"seats":  len(layout.Seats),
		"booked": len(booked),
		"stops":  len(stops),
	}).Debug("Seat map loaded")

	return s.view(selection), nil
}

// ToggleSeat selects or releases a seat
func (s *SeatSelectionService) ToggleSeat(ctx context.Context, tabID, number string) (*SeatMap, error) {
	selection, err := s.load(ctx, tabID)
	if err != nil {
		return nil, err
	}

	var seat models.Seat
	found := false
	for _, candidate := range selection.Layout {
		if candidate.Number == number {
			seat, found = candidate, true
			break
		}
	}
	if !found {
		return nil, newValidationError("seatNumber", "Seat %s does not exist on this bus", number)
	}
	if selection.IsBooked(number) {
		return nil, newValidationError("seatNumber", "Seat %s is already booked", number)
	}

	if idx := selection.SelectedIndex(number); idx >= 0 {
		selection.Selected = append(selection.Selected[:idx], selection.Selected[idx+1:]...)
	} else {
		if len(selection.Selected) >= s.maxSeats {
			return nil, newValidationError("seatNumber", "You can select up to %d seats", s.maxSeats)
		}
		estimate := fare.Compute(seat.Price, selection.RouteStops, selection.From, selection.To, fare.Estimate)
		selection.Selected = append(selection.Selected, models.SelectedSeat{
			Seat:          seat,
			DynamicFare:   estimate.Amount,
			PassengerFrom: selection.From,
			PassengerTo:   selection.To,
		})
	}

	if err := s.save(ctx, tabID, selection); err != nil {
		return nil, err
	}
	return s.view(selection), nil
}

// CurrentSeatMap re-renders the tab's selection without refetching
func (s *SeatSelectionService) CurrentSeatMap(ctx context.Context, tabID string) (*SeatMap, error) {
	selection, err := s.load(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return s.view(selection), nil
}

// Proceed turns the selection into the booking session for the details view
func (s *SeatSelectionService) Proceed(ctx context.Context, tabID string, user Identity) (*models.BookingSession, error) {
	selection, err := s.load(ctx, tabID)
	if err != nil {
		return nil, err
	}

	if len(selection.Selected) == 0 {
		return nil, newValidationError("seats", "Please select at least one seat")
	}
	if selection.BusID == "" || selection.TravelDate == "" {
		return nil, newValidationError("busId", "Bus or travel date is missing, please search again")
	}
	if len(selection.RouteStops) < 2 {
		return nil, newValidationError("routeStops", "Route information is missing, please search again")
	}

	seats := make([]models.SelectedSeat, len(selection.Selected))
	copy(seats, selection.Selected)

	session := &models.BookingSession{
		BusID:      selection.BusID,
		BusName:    selection.BusName,
		TravelDate: selection.TravelDate,
		RouteStops: selection.RouteStops,
		Seats:      seats,
		UserEmail:  user.Email,
		UserName:   user.Name,
	}
	if err := s.sessions.Save(ctx, tabID, session); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, tabID, database.SlotSeatSelection); err != nil {
		s.logger.WithError(err).WithField("tab_id", tabID).Warn("Failed to drop seat selection after proceeding")
	}

	s.logger.WithFields(logrus.Fields{
		"tab_id": tabID,
		"bus_id": session.BusID,
		"seats":  session.SeatNumbers(),
	}).Info("Seat selection handed to booking session")

	return session, nil
}

func (s *SeatSelectionService) view(selection *models.SeatSelection) *SeatMap {
	seats := make([]models.SeatView, len(selection.Layout))
	for i, seat := range selection.Layout {
		estimate := fare.Compute(seat.Price, selection.RouteStops, selection.From, selection.To, fare.Estimate)
		state := models.SeatAvailable
		switch {
		case selection.IsBooked(seat.Number):
			state = models.SeatBooked
		case selection.SelectedIndex(seat.Number) >= 0:
			state = models.SeatSelected
		}
		seats[i] = models.SeatView{
			Seat:         seat,
			State:        state,
			EstimateFare: estimate.Amount,
			Display:      estimate.Display(),
		}
	}

	fares := make([]float64, len(selection.Selected))
	for i, seat := range selection.Selected {
		fares[i] = seat.DynamicFare
	}

	return &SeatMap{
		BusID:      selection.BusID,
		BusName:    selection.BusName,
		TravelDate: selection.TravelDate,
		From:       selection.From,
		To:         selection.To,
		RouteStops: selection.RouteStops,
		Seats:      seats,
		Selected:   selection.Selected,
		Total:      fare.Total(fares...),
		MaxSeats:   s.maxSeats,
	}
}

func (s *SeatSelectionService) load(ctx context.Context, tabID string) (*models.SeatSelection, error) {
	data, err := s.store.Get(ctx, tabID, database.SlotSeatSelection)
	if errors.Is(err, database.ErrSlotEmpty) {
		return nil, ErrSelectionNotFound
	}
	if err != nil {
		return nil, err
	}
	var selection models.SeatSelection
	if err := json.Unmarshal(data, &selection); err != nil {
		return nil, fmt.Errorf("failed to decode seat selection: %w", err)
	}
	return &selection, nil
}

func (s *SeatSelectionService) save(ctx context.Context, tabID string, selection *models.SeatSelection) error {
	data, err := json.Marshal(selection)
	if err != nil {
		return fmt.Errorf("failed to encode seat selection: %w", err)
	}
	return s.store.Put(ctx, tabID, database.SlotSeatSelection, data)
}
