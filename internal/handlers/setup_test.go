package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/onlinebus/booking-gateway/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testTabID      = "3f1c7a52-9d4e-4b8a-a1f0-6c2d9e8b7a41"
	testSearchPath = "/user/search"
	testDashboard  = "/user/dashboard"
)

// fakeBookingBackend stands in for the Spring backend
type fakeBookingBackend struct {
	mu          sync.Mutex
	server      *httptest.Server
	layout      []models.Seat
	booked      []string
	stops       models.Route
	failSeat    string
	orderCalls  int
	bookCalls   int
	finalizes   int
	bookedFares []float64
	addedBuses  []models.Bus
	agents      []models.Agent
	finalizeMsg string
}

func newFakeBookingBackend(t *testing.T) *fakeBookingBackend {
	f := &fakeBookingBackend{
		layout: []models.Seat{
			{Number: "A1", Type: models.SeatTypeSeater, Deck: models.DeckLower, Price: 1000},
			{Number: "A2", Type: models.SeatTypeSeater, Deck: models.DeckLower, Price: 1000},
			{Number: "U1", Type: models.SeatTypeSleeper, Deck: models.DeckUpper, Price: 1600},
		},
		booked:      []string{"U1"},
		stops:       models.Route{"Chennai", "Vellore", "Krishnagiri", "Hosur", "Bengaluru"},
		finalizeMsg: "Tickets sent successfully",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/api/search-buses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.BusSearchResult{{ID: "s1", BusID: "bus-1", BusName: "KPN Travels", EstimatedFare: 900}})
	})
	mux.HandleFunc("GET /api/seats/by-bus/{busId}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, models.SeatLayout{BusID: r.PathValue("busId"), Seats: f.layout})
	})
	mux.HandleFunc("GET /user/api/booked-seats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.booked)
	})
	mux.HandleFunc("GET /user/api/route/stops/{busId}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.stops)
	})
	mux.HandleFunc("POST /api/payments/create-order", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.orderCalls++
		f.mu.Unlock()
		amount, _ := strconv.ParseInt(r.FormValue("amount"), 10, 64)
		writeJSON(w, services.PaymentOrder{ID: "order_test_1", Amount: amount, Currency: r.FormValue("currency")})
	})
	mux.HandleFunc("POST /user/api/bookings/book", func(w http.ResponseWriter, r *http.Request) {
		var req models.BookingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.bookCalls++
		f.bookedFares = append(f.bookedFares, req.Fare)
		fail := req.SeatNumber == f.failSeat
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("Seat " + req.SeatNumber + " already booked"))
			return
		}
		_, _ = w.Write([]byte("Booking successful"))
	})
	mux.HandleFunc("POST /user/api/finalize-booking", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.finalizes++
		msg := f.finalizeMsg
		f.mu.Unlock()
		_, _ = w.Write([]byte(msg))
	})
	mux.HandleFunc("GET /user/api/bookings/by-user/{email}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.BookingRecord{{ID: "bk-1", CustomerEmail: r.PathValue("email"), SeatNumber: "A1", Status: "CONFIRMED"}})
	})
	mux.HandleFunc("GET /user/api/bookings/download-ticket/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="ticket_`+r.PathValue("id")+`.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 ticket"))
	})
	mux.HandleFunc("POST /buses/api/add", func(w http.ResponseWriter, r *http.Request) {
		var bus models.Bus
		_ = json.NewDecoder(r.Body).Decode(&bus)
		f.mu.Lock()
		f.addedBuses = append(f.addedBuses, bus)
		f.mu.Unlock()
		_, _ = w.Write([]byte("Bus added successfully"))
	})
	mux.HandleFunc("GET /agent/api/agents/all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.agents)
	})
	mux.HandleFunc("POST /api/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["otp"] != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Invalid OTP"))
			return
		}
		_, _ = w.Write([]byte("Email verified"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBookingBackend) counts() (orders, books, finalizes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderCalls, f.bookCalls, f.finalizes
}

func (f *fakeBookingBackend) bookedFareTotal() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0.0
	for _, fare := range f.bookedFares {
		total += fare
	}
	return total
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	backend      *fakeBookingBackend
	router       *gin.Engine
	orchestrator *services.PaymentOrchestratorService
	jwt          *jwt.Service
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend := newFakeBookingBackend(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := database.NewRedisHandoffStore(client, time.Hour)

	backendClient := services.NewBackendClient(config.BackendConfig{BaseURL: backend.server.URL}, logger)
	sessions := services.NewBookingSessionService(store, logger)
	seats := services.NewSeatSelectionService(backendClient, store, sessions, 6, logger)
	search := services.NewSearchService(backendClient, logger)
	audit := services.NewAuditService(nil, logger)
	orchestrator := services.NewPaymentOrchestratorService(backendClient, store, sessions, audit, nil, config.PaymentConfig{
		KeyID:        "rzp_test_key",
		Currency:     "INR",
		MerchantName: "Online Bus Booking",
	}, logger)

	jwtService := jwt.NewService("handler-access-secret", "handler-refresh-secret", time.Hour, 24*time.Hour)
	auth := services.NewAuthService(backendClient, jwtService, config.JWTConfig{
		AccessTokenExpiry: time.Hour,
		AdminEmails:       []string{"admin@example.com"},
	}, logger)

	router := gin.New()
	router.Use(middleware.TabSession(), middleware.RequestContext())
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Auth:     NewAuthHandler(auth, false, logger),
		Search:   NewSearchHandler(search, seats, 0, "/user/booking-details", logger),
		Booking:  NewBookingHandler(sessions, testSearchPath, logger),
		Checkout: NewCheckoutHandler(orchestrator, 0, testDashboard, logger),
		User:     NewUserBookingHandler(backendClient, logger),
		Agent:    NewAgentHandler(backendClient, logger),
		Admin:    NewAdminHandler(backendClient, audit, logger),
	}, middleware.AuthMiddleware(jwtService, logger))

	t.Cleanup(orchestrator.Wait)
	return &testEnv{backend: backend, router: router, orchestrator: orchestrator, jwt: jwtService}
}

func (e *testEnv) token(t *testing.T, email, name string, roles ...string) string {
	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	token, err := e.jwt.GenerateAccessToken(jwt.UserIDForEmail(email), email, name, roles)
	require.NoError(t, err)
	return token
}

// do sends a request from the test tab and decodes a JSON response
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TabIDHeader, testTabID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

// selectSeats loads the seat map, toggles the seats and proceeds to details
func (e *testEnv) selectSeats(t *testing.T, token string, seats ...string) {
	w, _ := e.do(t, http.MethodGet,
		"/api/v1/seats?busId=bus-1&busName=KPN+Travels&date=2026-11-01&from=Chennai&to=Bengaluru", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, seat := range seats {
		w, _ = e.do(t, http.MethodPost, "/api/v1/seats/toggle", "", ToggleSeatRequest{SeatNumber: seat})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, _ = e.do(t, http.MethodPost, "/api/v1/seats/proceed", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func notificationsOf(t *testing.T, body map[string]interface{}) []map[string]interface{} {
	raw, ok := body["notifications"].([]interface{})
	require.True(t, ok, "response has no notifications")
	out := make([]map[string]interface{}, len(raw))
	for i, n := range raw {
		out[i] = n.(map[string]interface{})
	}
	return out
}
