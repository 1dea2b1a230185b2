package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/onlinebus/booking-gateway/pkg/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// finalizeSuccessMarker is how the backend reports that tickets were emailed
const finalizeSuccessMarker = "successfully"

// PaymentBackend is the part of the backend the checkout drives
type PaymentBackend interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (*PaymentOrder, error)
	BookSeat(ctx context.Context, req *models.BookingRequest) (string, error)
	FinalizeBooking(ctx context.Context, req *models.FinalizeRequest) (string, error)
}

// EventPublisher streams checkout transitions
type EventPublisher interface {
	Publish(ctx context.Context, event CheckoutEvent) error
}

// PaymentOrchestratorService handles the Order → Widget → Book → Finalize checkout
type PaymentOrchestratorService struct {
	backend  PaymentBackend
	store    HandoffStore
	sessions *BookingSessionService
	audit    *AuditService
	events   EventPublisher
	config   config.PaymentConfig
	logger   *logrus.Logger

	phones   *validator.PhoneValidator
	locks    *tabLocks
	waiters  *checkoutBroker
	finalize sync.WaitGroup
}

// NewPaymentOrchestratorService creates a new orchestrator service
func NewPaymentOrchestratorService(
	backend PaymentBackend,
	store HandoffStore,
	sessions *BookingSessionService,
	audit *AuditService,
	events EventPublisher,
	cfg config.PaymentConfig,
	logger *logrus.Logger,
) *PaymentOrchestratorService {
	return &PaymentOrchestratorService{
		backend:  backend,
		store:    store,
		sessions: sessions,
		audit:    audit,
		events:   events,
		config:   cfg,
		logger:   logger,
		phones:   validator.NewPhoneValidator(),
		locks:    newTabLocks(),
		waiters:  newCheckoutBroker(),
	}
}

// ============================================================================
// INITIATE (IDLE → ORDER_CREATED → PAYMENT_PENDING)
// ============================================================================

// Initiate creates the payment order for the tab's booking and returns the
// options the browser opens the widget with.
func (s *PaymentOrchestratorService) Initiate(
	ctx context.Context,
	tabID string,
	passengers []models.PassengerDetails,
) (*models.WidgetOptions, *models.Checkout, error) {
	unlock := s.locks.lock(tabID)
	defer unlock()

	existing, err := s.load(ctx, tabID)
	if err != nil && !errors.Is(err, ErrCheckoutNotFound) {
		return nil, nil, err
	}
	if existing != nil && existing.State.InFlight() {
		return nil, nil, ErrCheckoutInProgress
	}
	if existing != nil && existing.State == models.CheckoutBookingFailed {
		// The failed attempt stays in the audit ledger; the tab starts over.
		s.logger.WithFields(logrus.Fields{
			"tab_id":      tabID,
			"checkout_id": existing.ID,
			"order_id":    existing.OrderID(),
		}).Info("Replacing failed checkout with a new one")
	}

	session, err := s.sessions.Load(ctx, tabID)
	if err != nil {
		return nil, nil, err
	}

	total := session.Total()
	if total <= 0 {
		return nil, nil, newValidationError("total", "Total fare must be greater than 0. Please select a valid route.")
	}
	passengers, err = s.validatePassengers(session, passengers)
	if err != nil {
		return nil, nil, err
	}

	checkout := models.NewCheckout(tabID)
	checkout.BusID = session.BusID
	checkout.TravelDate = session.TravelDate
	checkout.CustomerEmail = session.UserEmail
	checkout.Seats = append([]models.SelectedSeat(nil), session.Seats...)
	checkout.Total = total
	checkout.Passengers = passengers

	started := time.Now()
	amountMinor := fare.MinorUnits(total)
	order, err := s.backend.CreateOrder(ctx, amountMinor, s.config.Currency)
	if err != nil {
		checkout.Reason = err.Error()
		s.record(ctx, AuditEntry{
			Checkout: checkout,
			Event:    models.PaymentEventOrderFailed,
			Source:   models.PaymentSourceBackend,
			Seats:    session.SeatNumbers(),
			Error:    err.Error(),
			Started:  started,
		})
		return nil, nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	pending := &models.PendingOrder{
		OrderID:          order.ID,
		AmountMinorUnits: order.Amount,
		Currency:         order.Currency,
	}
	if pending.AmountMinorUnits == 0 {
		pending.AmountMinorUnits = amountMinor
	}
	if pending.Currency == "" {
		pending.Currency = s.config.Currency
	}
	checkout.Order = pending

	if err := s.advance(ctx, checkout, models.CheckoutOrderCreated, AuditEntry{
		Event:   models.PaymentEventOrderCreated,
		Source:  models.PaymentSourceBackend,
		Seats:   session.SeatNumbers(),
		Started: started,
	}); err != nil {
		return nil, nil, err
	}
	if err := s.advance(ctx, checkout, models.CheckoutPaymentPending, AuditEntry{
		Event:  models.PaymentEventWidgetOpened,
		Source: models.PaymentSourceGateway,
	}); err != nil {
		return nil, nil, err
	}

	options := &models.WidgetOptions{
		Key:         s.config.KeyID,
		Amount:      pending.AmountMinorUnits,
		Currency:    pending.Currency,
		Name:        s.config.MerchantName,
		Description: fmt.Sprintf("Payment for %d seat(s)", len(session.Seats)),
		OrderID:     pending.OrderID,
		Prefill: models.WidgetPrefill{
			Name:  session.UserName,
			Email: session.UserEmail,
		},
	}
	if s.config.ThemeColor != "" {
		options.Theme = map[string]any{"color": s.config.ThemeColor}
	}

	return options, checkout, nil
}

func (s *PaymentOrchestratorService) validatePassengers(
	session *models.BookingSession,
	passengers []models.PassengerDetails,
) ([]models.PassengerDetails, error) {
	if len(passengers) != len(session.Seats) {
		return nil, newValidationError("passengers", "Please fill out all required passenger fields.")
	}

	seen := make(map[string]bool, len(passengers))
	cleaned := make([]models.PassengerDetails, len(passengers))
	for i, p := range passengers {
		if session.SeatIndex(p.SeatNumber) < 0 || seen[p.SeatNumber] {
			return nil, newValidationError("seatNumber", "Passenger details do not match the selected seats")
		}
		seen[p.SeatNumber] = true

		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, newValidationError("name", "Please enter the passenger name for seat %s", p.SeatNumber)
		}
		if p.Age < 1 || p.Age > 120 {
			return nil, newValidationError("age", "Please enter a valid age for seat %s", p.SeatNumber)
		}
		mobile, err := s.phones.Validate(p.Mobile)
		if err != nil {
			return nil, newValidationError("mobile", "Seat %s: %s", p.SeatNumber, err.Error())
		}
		p.Mobile = mobile

		if strings.TrimSpace(p.Email) == "" {
			p.Email = session.UserEmail
		}
		email, err := validator.ValidateEmail(p.Email)
		if err != nil {
			return nil, newValidationError("email", "Seat %s: %s", p.SeatNumber, err.Error())
		}
		p.Email = email

		cleaned[i] = p
	}
	return cleaned, nil
}

// ============================================================================
// WIDGET CALLBACKS
// ============================================================================

// PaymentSucceeded books every seat of a paid checkout.
//
// All seats are booked in parallel and joined. If any seat fails the checkout
// ends in BOOKING_FAILED and a *BookingFailedError is returned. Nothing from
// here on is retried.
func (s *PaymentOrchestratorService) PaymentSucceeded(
	ctx context.Context,
	tabID string,
	callback models.PaymentSuccess,
) (*models.Checkout, error) {
	unlock := s.locks.lock(tabID)
	defer unlock()

	checkout, err := s.pendingCheckout(ctx, tabID, callback.OrderID)
	if err != nil {
		return nil, err
	}

	// The customer has been charged; stop honouring their cancellation.
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	checkout.PaymentID = callback.PaymentID
	if err := s.advance(ctx, checkout, models.CheckoutPaymentSucceeded, AuditEntry{
		Event:  models.PaymentEventSuccess,
		Source: models.PaymentSourceWidget,
	}); err != nil {
		return nil, err
	}

	failures := s.bookSeats(ctx, checkout)
	if len(failures) > 0 {
		bookingErr := &BookingFailedError{
			OrderID:   checkout.OrderID(),
			PaymentID: checkout.PaymentID,
			Failures:  failures,
		}
		checkout.FailedSeats = bookingErr.FailedSeats()
		checkout.Reason = bookingErr.Error()
		if err := s.advance(ctx, checkout, models.CheckoutBookingFailed, AuditEntry{
			Event:   models.PaymentEventBookingConfirmFailed,
			Source:  models.PaymentSourceBackend,
			Seats:   checkout.FailedSeats,
			Error:   checkout.Reason,
			Started: started,
		}); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"tab_id":   tabID,
				"order_id": checkout.OrderID(),
			}).Error("Failed to persist booking failure")
		}
		// The checkout and the ledger keep the seats for support
		if err := s.sessions.Clear(ctx, tabID); err != nil {
			s.logger.WithError(err).WithField("tab_id", tabID).Warn("Failed to clear booking session")
		}
		return checkout, bookingErr
	}

	if err := s.sessions.MarkBooked(ctx, tabID); err != nil {
		s.logger.WithError(err).WithField("tab_id", tabID).Error("Failed to record booking completion flags")
	}
	if err := s.advance(ctx, checkout, models.CheckoutBookingPersisted, AuditEntry{
		Event:   models.PaymentEventBookingConfirmed,
		Source:  models.PaymentSourceBackend,
		Seats:   checkout.SeatNumbers(),
		Started: started,
	}); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, checkout, models.CheckoutFinalizing); err != nil {
		return nil, err
	}
	s.dispatchFinalize(ctx, *checkout, &models.FinalizeRequest{
		Email:       checkout.CustomerEmail,
		BusID:       checkout.BusID,
		TravelDate:  checkout.TravelDate,
		SeatNumbers: checkout.SeatNumbers(),
	})

	if err := s.transition(ctx, checkout, models.CheckoutDone); err != nil {
		return nil, err
	}
	return checkout, nil
}

// bookSeats books every seat at the fare and segment that was charged and
// waits for all of them
func (s *PaymentOrchestratorService) bookSeats(ctx context.Context, checkout *models.Checkout) []SeatFailure {
	passengers := make(map[string]models.PassengerDetails, len(checkout.Passengers))
	for _, p := range checkout.Passengers {
		passengers[p.SeatNumber] = p
	}

	results := make([]error, len(checkout.Seats))
	var g errgroup.Group
	for i, seat := range checkout.Seats {
		i, seat := i, seat
		passenger, ok := passengers[seat.Number]
		if !ok {
			results[i] = fmt.Errorf("no passenger details for seat %s", seat.Number)
			continue
		}
		g.Go(func() error {
			_, err := s.backend.BookSeat(ctx, &models.BookingRequest{
				BusID:             checkout.BusID,
				TravelDate:        checkout.TravelDate,
				CustomerEmail:     checkout.CustomerEmail,
				SeatNumber:        seat.Number,
				Fare:              seat.DynamicFare,
				PassengerName:     passenger.Name,
				PassengerAge:      passenger.Age,
				PassengerMobile:   passenger.Mobile,
				PassengerFrom:     seat.PassengerFrom,
				PassengerTo:       seat.PassengerTo,
				PassengerEmail:    passenger.Email,
				RazorpayPaymentID: checkout.PaymentID,
				RazorpayOrderID:   checkout.OrderID(),
			})
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var failures []SeatFailure
	for i, err := range results {
		if err == nil {
			continue
		}
		failures = append(failures, SeatFailure{SeatNumber: checkout.Seats[i].Number, Reason: err.Error()})
	}
	return failures
}

// dispatchFinalize asks the backend for tickets in the background and leaves
// the email outcome for the dashboard.
func (s *PaymentOrchestratorService) dispatchFinalize(ctx context.Context, checkout models.Checkout, req *models.FinalizeRequest) {
	s.finalize.Add(1)
	go func() {
		defer s.finalize.Done()
		started := time.Now()

		status := models.EmailStatusSent
		event := models.PaymentEventFinalized
		message, err := s.backend.FinalizeBooking(ctx, req)
		if err != nil || !strings.Contains(message, finalizeSuccessMarker) {
			status = models.EmailStatusFailed
			event = models.PaymentEventFinalizeFailed
			if err != nil {
				checkout.Reason = err.Error()
			} else {
				checkout.Reason = message
			}
		}

		if err := s.sessions.RecordEmailStatus(ctx, checkout.TabID, status); err != nil {
			s.logger.WithError(err).WithField("tab_id", checkout.TabID).Warn("Failed to record email status")
		}
		s.record(ctx, AuditEntry{
			Checkout: &checkout,
			From:     models.CheckoutFinalizing,
			Event:    event,
			Source:   models.PaymentSourceBackend,
			Seats:    req.SeatNumbers,
			Error:    checkout.Reason,
			Started:  started,
		})
	}()
}

// PaymentFailed records a provider failure. No booking or finalize call is made
// and the tab may start a new payment.
func (s *PaymentOrchestratorService) PaymentFailed(
	ctx context.Context,
	tabID string,
	callback models.PaymentFailure,
) (*models.Checkout, error) {
	reason := callback.Description
	if reason == "" {
		reason = "Payment failed"
	}
	return s.abandon(ctx, tabID, callback.OrderID, models.CheckoutPaymentFailed, AuditEntry{
		Event:  models.PaymentEventFailed,
		Source: models.PaymentSourceWidget,
		Error:  reason,
	})
}

// PaymentDismissed records the customer closing the widget without paying
func (s *PaymentOrchestratorService) PaymentDismissed(ctx context.Context, tabID string) (*models.Checkout, error) {
	return s.abandon(ctx, tabID, "", models.CheckoutPaymentCancelled, AuditEntry{
		Event:  models.PaymentEventCancelled,
		Source: models.PaymentSourceUser,
		Error:  "Payment cancelled",
	})
}

func (s *PaymentOrchestratorService) abandon(
	ctx context.Context,
	tabID, orderID string,
	state models.CheckoutState,
	entry AuditEntry,
) (*models.Checkout, error) {
	unlock := s.locks.lock(tabID)
	defer unlock()

	checkout, err := s.pendingCheckout(ctx, tabID, orderID)
	if err != nil {
		return nil, err
	}

	checkout.Reason = entry.Error
	if err := s.advance(ctx, checkout, state, entry); err != nil {
		return nil, err
	}
	snapshot := *checkout

	if err := checkout.Transition(models.CheckoutIdle); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, tabID, database.SlotCheckout); err != nil {
		return nil, fmt.Errorf("failed to reset checkout: %w", err)
	}
	return &snapshot, nil
}

// ============================================================================
// STATUS
// ============================================================================

// Status returns the tab's checkout, an idle one when none exists
func (s *PaymentOrchestratorService) Status(ctx context.Context, tabID string) (*models.Checkout, error) {
	checkout, err := s.load(ctx, tabID)
	if errors.Is(err, ErrCheckoutNotFound) {
		return models.NewCheckout(tabID), nil
	}
	return checkout, err
}

// Await blocks while the tab's checkout is PAYMENT_PENDING. There is no
// timeout; it returns when a callback moves the checkout or ctx ends.
func (s *PaymentOrchestratorService) Await(ctx context.Context, tabID string) (*models.Checkout, error) {
	updates, cancel := s.waiters.subscribe(tabID)
	defer cancel()

	checkout, err := s.Status(ctx, tabID)
	if err != nil {
		return nil, err
	}
	for checkout.State == models.CheckoutPaymentPending {
		select {
		case checkout = <-updates:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return checkout, nil
}

// Wait blocks until background finalize calls have finished
func (s *PaymentOrchestratorService) Wait() {
	s.finalize.Wait()
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *PaymentOrchestratorService) pendingCheckout(ctx context.Context, tabID, orderID string) (*models.Checkout, error) {
	checkout, err := s.load(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if checkout.State != models.CheckoutPaymentPending {
		s.record(ctx, AuditEntry{
			Checkout: checkout,
			Event:    models.PaymentEventDuplicateCallback,
			Source:   models.PaymentSourceWidget,
			Error:    fmt.Sprintf("callback in state %s", checkout.State),
		})
		return nil, fmt.Errorf("%w (state %s)", ErrCheckoutClosed, checkout.State)
	}
	if orderID != "" && orderID != checkout.OrderID() {
		s.logger.WithFields(logrus.Fields{
			"tab_id":         tabID,
			"order_id":       checkout.OrderID(),
			"callback_order": orderID,
		}).Warn("Payment callback for a different order")
		return nil, ErrOrderMismatch
	}
	return checkout, nil
}

// advance transitions, persists, audits and publishes
func (s *PaymentOrchestratorService) advance(ctx context.Context, checkout *models.Checkout, next models.CheckoutState, entry AuditEntry) error {
	from := checkout.State
	if err := s.transition(ctx, checkout, next); err != nil {
		return err
	}
	entry.Checkout = checkout
	entry.From = from
	s.record(ctx, entry)
	return nil
}

// transition moves, persists and wakes any waiter
func (s *PaymentOrchestratorService) transition(ctx context.Context, checkout *models.Checkout, next models.CheckoutState) error {
	if err := checkout.Transition(next); err != nil {
		return err
	}
	if err := s.save(ctx, checkout); err != nil {
		return err
	}
	s.waiters.notify(checkout)
	return nil
}

func (s *PaymentOrchestratorService) record(ctx context.Context, entry AuditEntry) {
	s.audit.Record(ctx, entry)
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, newCheckoutEvent(entry.Checkout, entry.From, entry.Event)); err != nil {
		s.logger.WithError(err).WithField("checkout_id", entry.Checkout.ID).Warn("Failed to publish checkout event")
	}
}

func (s *PaymentOrchestratorService) load(ctx context.Context, tabID string) (*models.Checkout, error) {
	data, err := s.store.Get(ctx, tabID, database.SlotCheckout)
	if errors.Is(err, database.ErrSlotEmpty) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeCheckout(data)
}

func (s *PaymentOrchestratorService) save(ctx context.Context, checkout *models.Checkout) error {
	data, err := checkout.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode checkout: %w", err)
	}
	if err := s.store.Put(ctx, checkout.TabID, database.SlotCheckout, data); err != nil {
		return fmt.Errorf("failed to save checkout: %w", err)
	}
	return nil
}

// tabLocks serializes checkout transitions per tab
type tabLocks struct {
	mu    sync.Mutex
	locks map[string]*tabLock
}

type tabLock struct {
	sync.Mutex
	refs int
}

func newTabLocks() *tabLocks {
	return &tabLocks{locks: make(map[string]*tabLock)}
}

func (t *tabLocks) lock(tabID string) func() {
	t.mu.Lock()
	l, ok := t.locks[tabID]
	if !ok {
		l = &tabLock{}
		t.locks[tabID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, tabID)
		}
		t.mu.Unlock()
	}
}

// checkoutBroker fans checkout updates out to Await callers
type checkoutBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan *models.Checkout]struct{}
}

func newCheckoutBroker() *checkoutBroker {
	return &checkoutBroker{subs: make(map[string]map[chan *models.Checkout]struct{})}
}

func (b *checkoutBroker) subscribe(tabID string) (<-chan *models.Checkout, func()) {
	ch := make(chan *models.Checkout, 1)
	b.mu.Lock()
	if b.subs[tabID] == nil {
		b.subs[tabID] = make(map[chan *models.Checkout]struct{})
	}
	b.subs[tabID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs[tabID], ch)
		if len(b.subs[tabID]) == 0 {
			delete(b.subs, tabID)
		}
		b.mu.Unlock()
	}
}

// notify delivers the latest state; a slow subscriber only sees the newest one
func (b *checkoutBroker) notify(checkout *models.Checkout) {
	snapshot := *checkout
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[checkout.TabID] {
		select {
		case <-ch:
		default:
		}
		ch <- &snapshot
	}
}
