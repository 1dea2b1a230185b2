package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryStore is an in-process HandoffStore
type memoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{slots: make(map[string][]byte)}
}

func (m *memoryStore) key(tabID, slot string) string {
	return tabID + ":" + slot
}

func (m *memoryStore) Put(_ context.Context, tabID, slot string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[m.key(tabID, slot)] = append([]byte(nil), value...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, tabID, slot string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.slots[m.key(tabID, slot)]
	if !ok {
		return nil, database.ErrSlotEmpty
	}
	return value, nil
}

func (m *memoryStore) Take(_ context.Context, tabID string, slots ...string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := make(map[string][]byte)
	for _, slot := range slots {
		if value, ok := m.slots[m.key(tabID, slot)]; ok {
			taken[slot] = value
			delete(m.slots, m.key(tabID, slot))
		}
	}
	return taken, nil
}

func (m *memoryStore) Delete(_ context.Context, tabID string, slots ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slots {
		delete(m.slots, m.key(tabID, slot))
	}
	return nil
}

func (m *memoryStore) has(tabID, slot string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[m.key(tabID, slot)]
	return ok
}

// fakeBackend records calls and answers from canned values
type fakeBackend struct {
	mu sync.Mutex

	layout    *models.SeatLayout
	layoutErr error
	booked    []string
	stops     models.Route
	stopsErr  error
	buses     []models.BusSearchResult

	orderErr    error
	bookFail    map[string]error
	finalizeMsg string
	finalizeErr error

	orderCalls    int
	orderAmount   int64
	bookCalls     []*models.BookingRequest
	finalizeCalls []*models.FinalizeRequest
}

func (f *fakeBackend) SeatLayoutByBus(_ context.Context, _ string) (*models.SeatLayout, error) {
	return f.layout, f.layoutErr
}

func (f *fakeBackend) BookedSeats(_ context.Context, _, _ string) ([]string, error) {
	return f.booked, nil
}

func (f *fakeBackend) RouteStops(_ context.Context, _ string) (models.Route, error) {
	return f.stops, f.stopsErr
}

func (f *fakeBackend) SearchBuses(_ context.Context, _, _, _ string) ([]models.BusSearchResult, error) {
	return f.buses, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, amountMinor int64, currency string) (*PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	f.orderAmount = amountMinor
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return &PaymentOrder{ID: fmt.Sprintf("order_%d", f.orderCalls), Amount: amountMinor, Currency: currency}, nil
}

func (f *fakeBackend) BookSeat(_ context.Context, req *models.BookingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls = append(f.bookCalls, req)
	if err := f.bookFail[req.SeatNumber]; err != nil {
		return "", err
	}
	return "Booking successful", nil
}

func (f *fakeBackend) FinalizeBooking(_ context.Context, req *models.FinalizeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls = append(f.finalizeCalls, req)
	return f.finalizeMsg, f.finalizeErr
}

func (f *fakeBackend) calls() (orders, books, finalizes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderCalls, len(f.bookCalls), len(f.finalizeCalls)
}

// fakePublisher collects published events
type fakePublisher struct {
	mu     sync.Mutex
	events []CheckoutEvent
}

func (p *fakePublisher) Publish(_ context.Context, event CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []models.PaymentEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.PaymentEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

func fiveStopRoute() models.Route {
	return models.Route{"Chennai", "Vellore", "Krishnagiri", "Hosur", "Bengaluru"}
}

func sessionWithSeats(prices ...float64) *models.BookingSession {
	session := &models.BookingSession{
		BusID:      "bus-1",
		BusName:    "Night Rider",
		TravelDate: "2026-11-02",
		RouteStops: fiveStopRoute(),
		UserEmail:  "asha@example.com",
		UserName:   "Asha",
	}
	for i, p := range prices {
		session.Seats = append(session.Seats, models.SelectedSeat{
			Seat:        models.Seat{Number: fmt.Sprintf("S%d", i+1), Type: models.SeatTypeSeater, Deck: models.DeckLower, Price: p},
			DynamicFare: p,
		})
	}
	return session
}
