package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tab = "tab-1"

func newOrchestrator(t *testing.T, backend *fakeBackend, session *models.BookingSession) (*PaymentOrchestratorService, *memoryStore, *fakePublisher) {
	t.Helper()
	store := newMemoryStore()
	sessions := NewBookingSessionService(store, testLogger())
	if session != nil {
		require.NoError(t, sessions.Save(context.Background(), tab, session))
	}
	publisher := &fakePublisher{}
	cfg := config.PaymentConfig{KeyID: "rzp_test_key", Currency: "INR", MerchantName: "Online Bus Booking", ThemeColor: "#3399cc"}
	svc := NewPaymentOrchestratorService(backend, store, sessions, NewAuditService(nil, testLogger()), publisher, cfg, testLogger())
	return svc, store, publisher
}

func passengersFor(session *models.BookingSession) []models.PassengerDetails {
	out := make([]models.PassengerDetails, len(session.Seats))
	for i, seat := range session.Seats {
		out[i] = models.PassengerDetails{SeatNumber: seat.Number, Name: "Passenger " + seat.Number, Age: 30, Mobile: "+91 98765 43210"}
	}
	return out
}

func initiate(t *testing.T, svc *PaymentOrchestratorService, session *models.BookingSession) *models.WidgetOptions {
	t.Helper()
	options, _, err := svc.Initiate(context.Background(), tab, passengersFor(session))
	require.NoError(t, err)
	return options
}

func state(t *testing.T, svc *PaymentOrchestratorService) models.CheckoutState {
	t.Helper()
	checkout, err := svc.Status(context.Background(), tab)
	require.NoError(t, err)
	return checkout.State
}

func TestInitiate_ZeroTotalMakesNoNetworkCall(t *testing.T) {
	session := sessionWithSeats(200)
	session.Seats[0].DynamicFare = 0
	backend := &fakeBackend{}
	svc, _, _ := newOrchestrator(t, backend, session)

	_, _, err := svc.Initiate(context.Background(), tab, passengersFor(session))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	orders, _, _ := backend.calls()
	assert.Equal(t, 0, orders)
	assert.Equal(t, models.CheckoutIdle, state(t, svc))
}

func TestInitiate_OpensWidget(t *testing.T) {
	session := sessionWithSeats(200, 150)
	backend := &fakeBackend{}
	svc, _, publisher := newOrchestrator(t, backend, session)

	options := initiate(t, svc, session)

	assert.Equal(t, int64(35000), backend.orderAmount)
	assert.Equal(t, int64(35000), options.Amount)
	assert.Equal(t, "INR", options.Currency)
	assert.Equal(t, "order_1", options.OrderID)
	assert.Equal(t, "rzp_test_key", options.Key)
	assert.Equal(t, "Payment for 2 seat(s)", options.Description)
	assert.Equal(t, "asha@example.com", options.Prefill.Email)
	assert.Equal(t, models.CheckoutPaymentPending, state(t, svc))
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventOrderCreated, models.PaymentEventWidgetOpened}, publisher.types())
}

func TestInitiate_RejectsBadPassengerDetails(t *testing.T) {
	session := sessionWithSeats(200)
	backend := &fakeBackend{}
	svc, _, _ := newOrchestrator(t, backend, session)

	passengers := passengersFor(session)
	passengers[0].Mobile = "12345"
	_, _, err := svc.Initiate(context.Background(), tab, passengers)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "mobile", ve.Field)
	orders, _, _ := backend.calls()
	assert.Equal(t, 0, orders)
}

func TestInitiate_OrderFailureStaysIdle(t *testing.T) {
	session := sessionWithSeats(200)
	backend := &fakeBackend{orderErr: &APIError{StatusCode: 500, Message: "gateway down"}}
	svc, _, _ := newOrchestrator(t, backend, session)

	_, _, err := svc.Initiate(context.Background(), tab, passengersFor(session))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.CheckoutIdle, state(t, svc))
}

func TestInitiate_RefusedWhileWidgetOpen(t *testing.T) {
	session := sessionWithSeats(200)
	svc, _, _ := newOrchestrator(t, &fakeBackend{}, session)
	initiate(t, svc, session)

	_, _, err := svc.Initiate(context.Background(), tab, passengersFor(session))
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
}

func TestPaymentSucceeded_BooksEverySeatAndFinalizes(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200, 150)
	backend := &fakeBackend{finalizeMsg: "Booking finalized successfully and email sent"}
	svc, store, publisher := newOrchestrator(t, backend, session)
	options := initiate(t, svc, session)

	checkout, err := svc.PaymentSucceeded(ctx, tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: options.OrderID})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, models.CheckoutDone, checkout.State)
	assert.Equal(t, models.CheckoutDone, state(t, svc))
	_, books, finalizes := backend.calls()
	assert.Equal(t, 2, books)
	assert.Equal(t, 1, finalizes)
	for _, req := range backend.bookCalls {
		assert.Equal(t, "pay_1", req.RazorpayPaymentID)
		assert.Equal(t, options.OrderID, req.RazorpayOrderID)
		assert.Equal(t, "9876543210", req.PassengerMobile)
		assert.Equal(t, "asha@example.com", req.PassengerEmail)
	}
	assert.ElementsMatch(t, []string{"S1", "S2"}, backend.finalizeCalls[0].SeatNumbers)

	assert.False(t, store.has(tab, database.SlotBookingDetails))
	flags, err := NewBookingSessionService(store, testLogger()).TakeStatusFlags(ctx, tab)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusSuccess, flags.BookingStatus)
	assert.Equal(t, models.EmailStatusSent, flags.EmailStatus)
	assert.Contains(t, publisher.types(), models.PaymentEventFinalized)
}

func TestPaymentSucceeded_FinalizeWithoutConfirmationMarksEmailFailed(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200)
	backend := &fakeBackend{finalizeMsg: "Booking saved"}
	svc, store, _ := newOrchestrator(t, backend, session)
	options := initiate(t, svc, session)

	_, err := svc.PaymentSucceeded(ctx, tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: options.OrderID})
	require.NoError(t, err)
	svc.Wait()

	flags, err := NewBookingSessionService(store, testLogger()).TakeStatusFlags(ctx, tab)
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusFailed, flags.EmailStatus)
}

func TestPaymentSucceeded_AnySeatFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200, 150)
	backend := &fakeBackend{bookFail: map[string]error{"S2": &APIError{StatusCode: 409, Message: "Seat already booked"}}}
	svc, store, _ := newOrchestrator(t, backend, session)
	options := initiate(t, svc, session)

	checkout, err := svc.PaymentSucceeded(ctx, tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: options.OrderID})

	var bookingErr *BookingFailedError
	require.True(t, errors.As(err, &bookingErr))
	assert.Equal(t, []string{"S2"}, bookingErr.FailedSeats())
	assert.Equal(t, options.OrderID, bookingErr.OrderID)
	assert.Equal(t, models.CheckoutBookingFailed, checkout.State)
	assert.Equal(t, models.CheckoutBookingFailed, state(t, svc))
	assert.False(t, store.has(tab, database.SlotBookingDetails))
	assert.ElementsMatch(t, []string{"S1", "S2"}, checkout.SeatNumbers())

	// A repeated callback is not retried
	_, err = svc.PaymentSucceeded(ctx, tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: options.OrderID})
	assert.ErrorIs(t, err, ErrCheckoutClosed)
	svc.Wait()
	_, books, finalizes := backend.calls()
	assert.Equal(t, 2, books)
	assert.Equal(t, 0, finalizes)

	// The tab is not locked out: a fresh selection starts a new checkout
	_, _, err = svc.Initiate(ctx, tab, passengersFor(session))
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	sessions := NewBookingSessionService(store, testLogger())
	require.NoError(t, sessions.Save(ctx, tab, sessionWithSeats(300)))
	options, next, err := svc.Initiate(ctx, tab, passengersFor(sessionWithSeats(300)))
	require.NoError(t, err)
	assert.NotEqual(t, checkout.ID, next.ID)
	assert.Equal(t, int64(30000), options.Amount)
	assert.Equal(t, models.CheckoutPaymentPending, state(t, svc))
}

func TestPaymentSucceeded_BooksWhatWasCharged(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200, 150)
	backend := &fakeBackend{finalizeMsg: "Booking finalized successfully"}
	svc, store, _ := newOrchestrator(t, backend, session)
	sessions := NewBookingSessionService(store, testLogger())
	options := initiate(t, svc, session)
	require.Equal(t, int64(35000), options.Amount)

	// The session is frozen while the widget is open
	_, err := sessions.UpdateSegment(ctx, tab, "S1", "Bengaluru", "Chennai")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = sessions.OpenDetails(ctx, tab)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.ErrorIs(t, sessions.Save(ctx, tab, sessionWithSeats(999)), ErrCheckoutInProgress)

	// Even a session rewritten behind its back does not change the bookings
	edited := sessionWithSeats(200, 150)
	edited.Seats[0].DynamicFare = 0
	edited.Seats[0].PassengerFrom, edited.Seats[0].PassengerTo = "Bengaluru", "Chennai"
	require.NoError(t, sessions.save(ctx, tab, edited))

	_, err = svc.PaymentSucceeded(ctx, tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: options.OrderID})
	require.NoError(t, err)
	svc.Wait()

	booked := map[string]*models.BookingRequest{}
	sum := 0.0
	for _, req := range backend.bookCalls {
		booked[req.SeatNumber] = req
		sum += req.Fare
	}
	require.Len(t, booked, 2)
	assert.Equal(t, 200.0, booked["S1"].Fare)
	assert.Empty(t, booked["S1"].PassengerFrom)
	assert.Equal(t, 150.0, booked["S2"].Fare)
	assert.Equal(t, options.Amount, fare.MinorUnits(sum))
}

func TestBookingSession_EditableAgainAfterDismiss(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200)
	svc, store, _ := newOrchestrator(t, &fakeBackend{}, session)
	sessions := NewBookingSessionService(store, testLogger())
	initiate(t, svc, session)

	_, err := svc.PaymentDismissed(ctx, tab)
	require.NoError(t, err)

	update, err := sessions.UpdateSegment(ctx, tab, "S1", "Chennai", "Hosur")
	require.NoError(t, err)
	assert.Equal(t, 150.0, update.Total)
}

func TestPaymentSucceeded_OrderMismatch(t *testing.T) {
	session := sessionWithSeats(200)
	backend := &fakeBackend{}
	svc, _, _ := newOrchestrator(t, backend, session)
	initiate(t, svc, session)

	_, err := svc.PaymentSucceeded(context.Background(), tab, models.PaymentSuccess{PaymentID: "pay_1", OrderID: "order_other"})
	assert.ErrorIs(t, err, ErrOrderMismatch)
	assert.Equal(t, models.CheckoutPaymentPending, state(t, svc))
}

func TestPaymentFailedAndDismissedHaveNoSideEffects(t *testing.T) {
	ctx := context.Background()
	session := sessionWithSeats(200)
	backend := &fakeBackend{}
	svc, store, _ := newOrchestrator(t, backend, session)

	options := initiate(t, svc, session)
	failed, err := svc.PaymentFailed(ctx, tab, models.PaymentFailure{OrderID: options.OrderID, Description: "Card declined"})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutPaymentFailed, failed.State)
	assert.Equal(t, "Card declined", failed.Reason)
	assert.Equal(t, models.CheckoutIdle, state(t, svc))

	initiate(t, svc, session)
	cancelled, err := svc.PaymentDismissed(ctx, tab)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutPaymentCancelled, cancelled.State)
	assert.Equal(t, models.CheckoutIdle, state(t, svc))

	orders, books, finalizes := backend.calls()
	assert.Equal(t, 2, orders)
	assert.Equal(t, 0, books)
	assert.Equal(t, 0, finalizes)
	assert.True(t, store.has(tab, database.SlotBookingDetails))

	_, err = svc.PaymentDismissed(ctx, tab)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestAwait(t *testing.T) {
	session := sessionWithSeats(200)
	svc, _, _ := newOrchestrator(t, &fakeBackend{}, session)

	idle, err := svc.Await(context.Background(), tab)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutIdle, idle.State)

	initiate(t, svc, session)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Await(ctx, tab)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *models.Checkout, 1)
	go func() {
		checkout, err := svc.Await(context.Background(), tab)
		if err == nil {
			done <- checkout
		}
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	_, err = svc.PaymentDismissed(context.Background(), tab)
	require.NoError(t, err)

	select {
	case checkout := <-done:
		require.NotNil(t, checkout)
		assert.Contains(t, []models.CheckoutState{models.CheckoutPaymentCancelled, models.CheckoutIdle}, checkout.State)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after the widget was dismissed")
	}
}
