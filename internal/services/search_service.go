package services

import (
	"context"
	"strings"

	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BusFinder is the part of the backend the search page reads
type BusFinder interface {
	SearchBuses(ctx context.Context, from, to, date string) ([]models.BusSearchResult, error)
	SeatLayoutByBus(ctx context.Context, busID string) (*models.SeatLayout, error)
	RouteStops(ctx context.Context, busID string) (models.Route, error)
}

// SearchRequest is the user's search form
type SearchRequest struct {
	From string `form:"from" json:"from"`
	To   string `form:"to" json:"to"`
	Date string `form:"date" json:"date"`
}

// Validate checks the search form
func (r *SearchRequest) Validate() error {
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)
	if r.From == "" || r.To == "" {
		return newValidationError("from", "Please enter both origin and destination")
	}
	if strings.EqualFold(r.From, r.To) {
		return newValidationError("to", "Origin and destination cannot be the same")
	}
	if r.Date == "" {
		return newValidationError("date", "Please choose a travel date")
	}
	return nil
}

// SearchService handles business logic for bus search
type SearchService struct {
	finder BusFinder
	logger *logrus.Logger
}

// NewSearchService creates a new search service
func NewSearchService(finder BusFinder, logger *logrus.Logger) *SearchService {
	return &SearchService{
		finder: finder,
		logger: logger,
	}
}

// Search lists buses for a route and date with a segment fare estimate per bus
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) ([]models.SearchResultView, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"from": req.From,
		"to":   req.To,
		"date": req.Date,
	}).Info("Processing search request")

	buses, err := s.finder.SearchBuses(ctx, req.From, req.To, req.Date)
	if err != nil {
		return nil, err
	}

	views := make([]models.SearchResultView, len(buses))
	g, gctx := errgroup.WithContext(ctx)
	for i := range buses {
		i := i
		g.Go(func() error {
			bus := buses[i]
			estimate := s.estimate(gctx, bus, req.From, req.To)
			bus.EstimatedFare = estimate
			display := fare.NotAvailable
			if estimate > 0 {
				display = fare.Format(estimate)
			}
			views[i] = models.SearchResultView{BusSearchResult: bus, FareDisplay: display}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.WithField("results", len(views)).Debug("Search completed")
	return views, nil
}

// estimate returns the cheapest valid segment fare on the bus, or the backend's own figure
func (s *SearchService) estimate(ctx context.Context, bus models.BusSearchResult, from, to string) float64 {
	busID := bus.BusID
	if busID == "" {
		busID = bus.ID
	}

	var (
		layout *models.SeatLayout
		stops  models.Route
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		layout, err = s.finder.SeatLayoutByBus(gctx, busID)
		return err
	})
	g.Go(func() error {
		var err error
		stops, err = s.finder.RouteStops(gctx, busID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithField("bus_id", busID).Debug("Fare lookup failed, using backend estimate")
		return bus.EstimatedFare
	}
	if layout == nil || len(stops) < 2 {
		return bus.EstimatedFare
	}

	cheapest := 0.0
	for _, seat := range layout.Seats {
		res := fare.Compute(seat.Price, stops, from, to, fare.Estimate)
		if !res.Valid || !res.Chargeable() {
			continue
		}
		if cheapest == 0 || res.Amount < cheapest {
			cheapest = res.Amount
		}
	}
	if cheapest == 0 {
		return bus.EstimatedFare
	}
	return cheapest
}
