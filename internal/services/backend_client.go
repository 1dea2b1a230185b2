package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the booking backend. The body is the message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return e.Message
}

// Credentials are the caller's auth headers, forwarded to the backend as-is
type Credentials struct {
	Authorization string
	Cookie        string
}

type credentialsKey struct{}

// WithCredentials attaches the browser's credentials to ctx for backend calls
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

func credentialsFrom(ctx context.Context) Credentials {
	creds, _ := ctx.Value(credentialsKey{}).(Credentials)
	return creds
}

// PaymentOrder is the gateway order created by the backend
type PaymentOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// BackendClient talks to the booking backend's REST API
type BackendClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewBackendClient creates a client. A zero timeout leaves requests unbounded.
func NewBackendClient(cfg config.BackendConfig, logger *logrus.Logger) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *BackendClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, http.Header, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	creds := credentialsFrom(ctx)
	if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}
	if creds.Cookie != "" {
		req.Header.Set("Cookie", creds.Cookie)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Error("Backend request failed")
		return nil, nil, fmt.Errorf("failed to call backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return respBody, resp.Header, nil
}

// decode fills out from a response body. A *string receives the raw text.
func decode(body []byte, out interface{}) error {
	switch dst := out.(type) {
	case nil:
		return nil
	case *string:
		*dst = string(body)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse backend response: %w", err)
	}
	return nil
}

func (c *BackendClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, _, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *BackendClient) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	body, _, err := c.do(ctx, method, path, nil, reader, "application/json")
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *BackendClient) sendText(ctx context.Context, method, path string, in interface{}) (string, error) {
	var text string
	err := c.sendJSON(ctx, method, path, in, &text)
	return text, err
}

func seg(s string) string {
	return url.PathEscape(s)
}

// ============================================================================
// BUSES
// ============================================================================

// AddBus registers a bus for its operator
func (c *BackendClient) AddBus(ctx context.Context, bus *models.Bus) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/buses/api/add", bus)
}

// BusesByOperator lists an operator's buses
func (c *BackendClient) BusesByOperator(ctx context.Context, operatorID string) ([]models.Bus, error) {
	var buses []models.Bus
	err := c.getJSON(ctx, "/buses/api/by-operator/"+seg(operatorID), nil, &buses)
	return buses, err
}

// BusesOnRoute lists buses whose route runs from → to
func (c *BackendClient) BusesOnRoute(ctx context.Context, from, to, date string) ([]models.Bus, error) {
	var buses []models.Bus
	q := url.Values{"from": {from}, "to": {to}, "date": {date}}
	err := c.getJSON(ctx, "/buses/api/search", q, &buses)
	return buses, err
}

// ============================================================================
// ROUTES
// ============================================================================

func (c *BackendClient) AddRoute(ctx context.Context, route *models.RouteRecord) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/routes/add", route)
}

func (c *BackendClient) RoutesByBus(ctx context.Context, busID string) ([]models.RouteRecord, error) {
	var routes []models.RouteRecord
	err := c.getJSON(ctx, "/api/routes/by-bus/"+seg(busID), nil, &routes)
	return routes, err
}

func (c *BackendClient) UpdateRoute(ctx context.Context, id string, route *models.RouteRecord) (string, error) {
	return c.sendText(ctx, http.MethodPut, "/api/routes/update/"+seg(id), route)
}

func (c *BackendClient) DeleteRoute(ctx context.Context, id string) (string, error) {
	return c.sendText(ctx, http.MethodDelete, "/api/routes/delete/"+seg(id), nil)
}

// ============================================================================
// STAFF
// ============================================================================

func (c *BackendClient) AddStaff(ctx context.Context, staff *models.BusStaff) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/staff/add", staff)
}

func (c *BackendClient) StaffByBus(ctx context.Context, busID string) ([]models.BusStaff, error) {
	var staff []models.BusStaff
	err := c.getJSON(ctx, "/api/staff/by-bus/"+seg(busID), nil, &staff)
	return staff, err
}

func (c *BackendClient) UpdateStaff(ctx context.Context, id string, staff *models.BusStaff) (string, error) {
	return c.sendText(ctx, http.MethodPut, "/api/staff/update/"+seg(id), staff)
}

func (c *BackendClient) DeleteStaff(ctx context.Context, id string) (string, error) {
	return c.sendText(ctx, http.MethodDelete, "/api/staff/delete/"+seg(id), nil)
}

// ============================================================================
// SCHEDULES
// ============================================================================

func (c *BackendClient) AddSchedule(ctx context.Context, schedule *models.TripSchedule) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/schedule/add", schedule)
}

func (c *BackendClient) AllSchedules(ctx context.Context) ([]models.TripSchedule, error) {
	var schedules []models.TripSchedule
	err := c.getJSON(ctx, "/api/schedule/all", nil, &schedules)
	return schedules, err
}

func (c *BackendClient) SchedulesByBus(ctx context.Context, busID string) ([]models.TripSchedule, error) {
	var schedules []models.TripSchedule
	err := c.getJSON(ctx, "/api/schedule/by-bus/"+seg(busID), nil, &schedules)
	return schedules, err
}

func (c *BackendClient) GetSchedule(ctx context.Context, id string) (*models.TripSchedule, error) {
	var schedule models.TripSchedule
	if err := c.getJSON(ctx, "/api/schedule/get/"+seg(id), nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *BackendClient) UpdateSchedule(ctx context.Context, id string, schedule *models.TripSchedule) (string, error) {
	return c.sendText(ctx, http.MethodPut, "/api/schedule/update/"+seg(id), schedule)
}

func (c *BackendClient) DeleteSchedule(ctx context.Context, id string) (string, error) {
	return c.sendText(ctx, http.MethodDelete, "/api/schedule/delete/"+seg(id), nil)
}

// ============================================================================
// SEAT LAYOUTS
// ============================================================================

func (c *BackendClient) SaveSeatLayout(ctx context.Context, layout *models.SeatLayout) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/seats/save", layout)
}

// SeatLayoutByBus returns the bus layout, an empty layout when none was saved
func (c *BackendClient) SeatLayoutByBus(ctx context.Context, busID string) (*models.SeatLayout, error) {
	layout := &models.SeatLayout{BusID: busID}
	if err := c.getJSON(ctx, "/api/seats/by-bus/"+seg(busID), nil, layout); err != nil {
		return nil, err
	}
	return layout, nil
}

func (c *BackendClient) DeleteSeatLayout(ctx context.Context, busID string) (string, error) {
	return c.sendText(ctx, http.MethodDelete, "/api/seats/delete/"+seg(busID), nil)
}

// ============================================================================
// USER BOOKING FLOW
// ============================================================================

// SearchBuses finds buses running from → to on date
func (c *BackendClient) SearchBuses(ctx context.Context, from, to, date string) ([]models.BusSearchResult, error) {
	var results []models.BusSearchResult
	q := url.Values{"from": {from}, "to": {to}, "date": {date}}
	err := c.getJSON(ctx, "/user/api/search-buses", q, &results)
	return results, err
}

// RouteStops returns the bus's full stop list
func (c *BackendClient) RouteStops(ctx context.Context, busID string) (models.Route, error) {
	var stops models.Route
	err := c.getJSON(ctx, "/user/api/route/stops/"+seg(busID), nil, &stops)
	return stops, err
}

// BookedSeats returns seat numbers already sold for a bus and date
func (c *BackendClient) BookedSeats(ctx context.Context, busID, date string) ([]string, error) {
	var seats []string
	q := url.Values{"busId": {busID}, "date": {date}}
	err := c.getJSON(ctx, "/user/api/booked-seats", q, &seats)
	return seats, err
}

// BookSeat persists one paid seat
func (c *BackendClient) BookSeat(ctx context.Context, req *models.BookingRequest) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/user/api/bookings/book", req)
}

// FinalizeBooking asks the backend to issue and email the tickets
func (c *BackendClient) FinalizeBooking(ctx context.Context, req *models.FinalizeRequest) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/user/api/finalize-booking", req)
}

// BookingsByUser returns a customer's booking history
func (c *BackendClient) BookingsByUser(ctx context.Context, email string) ([]models.BookingRecord, error) {
	var bookings []models.BookingRecord
	err := c.getJSON(ctx, "/user/api/bookings/by-user/"+seg(email), nil, &bookings)
	return bookings, err
}

// DownloadTicket fetches the ticket PDF for a booking
func (c *BackendClient) DownloadTicket(ctx context.Context, bookingID string) (*models.Ticket, error) {
	body, header, err := c.do(ctx, http.MethodGet, "/user/api/bookings/download-ticket/"+seg(bookingID), nil, nil, "")
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		Filename:    "ticket_" + bookingID + ".pdf",
		ContentType: header.Get("Content-Type"),
		Body:        body,
	}
	if ticket.ContentType == "" {
		ticket.ContentType = "application/pdf"
	}
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		ticket.Filename = params["filename"]
	}
	return ticket, nil
}

// ============================================================================
// PAYMENTS
// ============================================================================

// CreateOrder creates a gateway order. The backend reads form parameters here.
func (c *BackendClient) CreateOrder(ctx context.Context, amountMinor int64, currency string) (*PaymentOrder, error) {
	form := url.Values{
		"amount":   {strconv.FormatInt(amountMinor, 10)},
		"currency": {currency},
	}
	body, _, err := c.do(ctx, http.MethodPost, "/api/payments/create-order", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	var order PaymentOrder
	if err := decode(body, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payment order response has no id")
	}
	return &order, nil
}

// ============================================================================
// AUTH
// ============================================================================

func (c *BackendClient) SendOTP(ctx context.Context, email string) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/auth/send-otp", map[string]string{"email": email})
}

func (c *BackendClient) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": email, "otp": otp})
}

func (c *BackendClient) Register(ctx context.Context, req *models.RegisterRequest) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/api/auth/register", req)
}

// ============================================================================
// AGENTS
// ============================================================================

func (c *BackendClient) AddAgent(ctx context.Context, agent *models.Agent) (string, error) {
	return c.sendText(ctx, http.MethodPost, "/agent/api/agents/add", agent)
}

func (c *BackendClient) AllAgents(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	err := c.getJSON(ctx, "/agent/api/agents/all", nil, &agents)
	return agents, err
}

func (c *BackendClient) AgentStats(ctx context.Context, agentEmail string) (*models.AgentStats, error) {
	var stats models.AgentStats
	if err := c.getJSON(ctx, "/agent/api/stats/"+seg(agentEmail), nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *BackendClient) AgentBookings(ctx context.Context, agentEmail string) ([]models.AgentBooking, error) {
	var bookings []models.AgentBooking
	err := c.getJSON(ctx, "/agent/api/bookings/by-agent/"+seg(agentEmail), nil, &bookings)
	return bookings, err
}
