package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// FleetBackend is the part of the backend an agent manages their fleet through
type FleetBackend interface {
	AddBus(ctx context.Context, bus *models.Bus) (string, error)
	BusesByOperator(ctx context.Context, operatorID string) ([]models.Bus, error)

	AddRoute(ctx context.Context, route *models.RouteRecord) (string, error)
	RoutesByBus(ctx context.Context, busID string) ([]models.RouteRecord, error)
	UpdateRoute(ctx context.Context, id string, route *models.RouteRecord) (string, error)
	DeleteRoute(ctx context.Context, id string) (string, error)

	AddStaff(ctx context.Context, staff *models.BusStaff) (string, error)
	StaffByBus(ctx context.Context, busID string) ([]models.BusStaff, error)
	UpdateStaff(ctx context.Context, id string, staff *models.BusStaff) (string, error)
	DeleteStaff(ctx context.Context, id string) (string, error)

	AddSchedule(ctx context.Context, schedule *models.TripSchedule) (string, error)
	SchedulesByBus(ctx context.Context, busID string) ([]models.TripSchedule, error)
	GetSchedule(ctx context.Context, id string) (*models.TripSchedule, error)
	UpdateSchedule(ctx context.Context, id string, schedule *models.TripSchedule) (string, error)
	DeleteSchedule(ctx context.Context, id string) (string, error)

	SaveSeatLayout(ctx context.Context, layout *models.SeatLayout) (string, error)
	SeatLayoutByBus(ctx context.Context, busID string) (*models.SeatLayout, error)
	DeleteSeatLayout(ctx context.Context, busID string) (string, error)

	AgentStats(ctx context.Context, agentEmail string) (*models.AgentStats, error)
	AgentBookings(ctx context.Context, agentEmail string) ([]models.AgentBooking, error)
}

// AgentHandler handles an agent's bus, route, staff, schedule and seat management.
// The operator id is the agent's email.
type AgentHandler struct {
	backend FleetBackend
	logger  *logrus.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(backend FleetBackend, logger *logrus.Logger) *AgentHandler {
	return &AgentHandler{
		backend: backend,
		logger:  logger,
	}
}

// respondMessage relays the backend's plain-text confirmation as a success toast
func (h *AgentHandler) respondMessage(c *gin.Context, status int, message string, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, status, gin.H{"message": message}, models.Toast(models.LevelSuccess, message))
}

func (h *AgentHandler) respondInvalid(c *gin.Context, err error) {
	h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Rejected agent form")
	c.JSON(http.StatusBadRequest, gin.H{
		"error":         err.Error(),
		"code":          "VALIDATION_ERROR",
		"notifications": []models.Notification{models.Toast(models.LevelError, err.Error())},
	})
}

// ============================================================================
// BUSES
// ============================================================================

// AddBus handles POST /api/v1/agent/buses
func (h *AgentHandler) AddBus(c *gin.Context) {
	user := middleware.MustGetUserContext(c)

	var bus models.Bus
	if err := c.ShouldBindJSON(&bus); err != nil {
		respondBadRequest(c, "Invalid bus details")
		return
	}
	bus.OperatorID = user.Email
	if bus.OperatorName == "" {
		bus.OperatorName = user.Name
	}
	bus.Normalize()
	if err := bus.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.AddBus(c.Request.Context(), &bus)
	h.respondMessage(c, http.StatusCreated, message, err)
}

// MyBuses handles GET /api/v1/agent/buses
func (h *AgentHandler) MyBuses(c *gin.Context) {
	user := middleware.MustGetUserContext(c)

	buses, err := h.backend.BusesByOperator(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if buses == nil {
		buses = []models.Bus{}
	}
	respondOK(c, http.StatusOK, gin.H{"buses": buses})
}

// ============================================================================
// ROUTES
// ============================================================================

// AddRoute handles POST /api/v1/agent/routes
func (h *AgentHandler) AddRoute(c *gin.Context) {
	var route models.RouteRecord
	if err := c.ShouldBindJSON(&route); err != nil {
		respondBadRequest(c, "Invalid route details")
		return
	}
	if err := route.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.AddRoute(c.Request.Context(), &route)
	h.respondMessage(c, http.StatusCreated, message, err)
}

// RoutesByBus handles GET /api/v1/agent/buses/:busId/routes
func (h *AgentHandler) RoutesByBus(c *gin.Context) {
	routes, err := h.backend.RoutesByBus(c.Request.Context(), c.Param("busId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if routes == nil {
		routes = []models.RouteRecord{}
	}
	respondOK(c, http.StatusOK, gin.H{"routes": routes})
}

// UpdateRoute handles PUT /api/v1/agent/routes/:id
func (h *AgentHandler) UpdateRoute(c *gin.Context) {
	var route models.RouteRecord
	if err := c.ShouldBindJSON(&route); err != nil {
		respondBadRequest(c, "Invalid route details")
		return
	}
	if err := route.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.UpdateRoute(c.Request.Context(), c.Param("id"), &route)
	h.respondMessage(c, http.StatusOK, message, err)
}

// DeleteRoute handles DELETE /api/v1/agent/routes/:id
func (h *AgentHandler) DeleteRoute(c *gin.Context) {
	message, err := h.backend.DeleteRoute(c.Request.Context(), c.Param("id"))
	h.respondMessage(c, http.StatusOK, message, err)
}

// ============================================================================
// STAFF
// ============================================================================

// AddStaff handles POST /api/v1/agent/staff
func (h *AgentHandler) AddStaff(c *gin.Context) {
	var staff models.BusStaff
	if err := c.ShouldBindJSON(&staff); err != nil {
		respondBadRequest(c, "Invalid staff details")
		return
	}
	if err := staff.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.AddStaff(c.Request.Context(), &staff)
	h.respondMessage(c, http.StatusCreated, message, err)
}

// StaffByBus handles GET /api/v1/agent/buses/:busId/staff
func (h *AgentHandler) StaffByBus(c *gin.Context) {
	staff, err := h.backend.StaffByBus(c.Request.Context(), c.Param("busId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if staff == nil {
		staff = []models.BusStaff{}
	}
	respondOK(c, http.StatusOK, gin.H{"staff": staff})
}

// UpdateStaff handles PUT /api/v1/agent/staff/:id
func (h *AgentHandler) UpdateStaff(c *gin.Context) {
	var staff models.BusStaff
	if err := c.ShouldBindJSON(&staff); err != nil {
		respondBadRequest(c, "Invalid staff details")
		return
	}
	if err := staff.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.UpdateStaff(c.Request.Context(), c.Param("id"), &staff)
	h.respondMessage(c, http.StatusOK, message, err)
}

// DeleteStaff handles DELETE /api/v1/agent/staff/:id
func (h *AgentHandler) DeleteStaff(c *gin.Context) {
	message, err := h.backend.DeleteStaff(c.Request.Context(), c.Param("id"))
	h.respondMessage(c, http.StatusOK, message, err)
}

// ============================================================================
// SCHEDULES
// ============================================================================

// AddSchedule handles POST /api/v1/agent/schedules
func (h *AgentHandler) AddSchedule(c *gin.Context) {
	var schedule models.TripSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		respondBadRequest(c, "Invalid schedule details")
		return
	}
	if err := schedule.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.AddSchedule(c.Request.Context(), &schedule)
	h.respondMessage(c, http.StatusCreated, message, err)
}

// SchedulesByBus handles GET /api/v1/agent/buses/:busId/schedules
func (h *AgentHandler) SchedulesByBus(c *gin.Context) {
	schedules, err := h.backend.SchedulesByBus(c.Request.Context(), c.Param("busId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if schedules == nil {
		schedules = []models.TripSchedule{}
	}
	respondOK(c, http.StatusOK, gin.H{"schedules": schedules})
}

// GetSchedule handles GET /api/v1/agent/schedules/:id
func (h *AgentHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.backend.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"schedule": schedule})
}

// UpdateSchedule handles PUT /api/v1/agent/schedules/:id
func (h *AgentHandler) UpdateSchedule(c *gin.Context) {
	var schedule models.TripSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		respondBadRequest(c, "Invalid schedule details")
		return
	}
	if err := schedule.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.UpdateSchedule(c.Request.Context(), c.Param("id"), &schedule)
	h.respondMessage(c, http.StatusOK, message, err)
}

// DeleteSchedule handles DELETE /api/v1/agent/schedules/:id
func (h *AgentHandler) DeleteSchedule(c *gin.Context) {
	message, err := h.backend.DeleteSchedule(c.Request.Context(), c.Param("id"))
	h.respondMessage(c, http.StatusOK, message, err)
}

// ============================================================================
// SEAT LAYOUTS
// ============================================================================

// SaveSeatLayout handles POST /api/v1/agent/seats
func (h *AgentHandler) SaveSeatLayout(c *gin.Context) {
	var layout models.SeatLayout
	if err := c.ShouldBindJSON(&layout); err != nil {
		respondBadRequest(c, "Invalid seat layout")
		return
	}
	if err := layout.Validate(); err != nil {
		h.respondInvalid(c, err)
		return
	}

	message, err := h.backend.SaveSeatLayout(c.Request.Context(), &layout)
	h.respondMessage(c, http.StatusCreated, message, err)
}

// SeatLayoutByBus handles GET /api/v1/agent/buses/:busId/seats
func (h *AgentHandler) SeatLayoutByBus(c *gin.Context) {
	layout, err := h.backend.SeatLayoutByBus(c.Request.Context(), c.Param("busId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"layout": layout})
}

// DeleteSeatLayout handles DELETE /api/v1/agent/buses/:busId/seats
func (h *AgentHandler) DeleteSeatLayout(c *gin.Context) {
	message, err := h.backend.DeleteSeatLayout(c.Request.Context(), c.Param("busId"))
	h.respondMessage(c, http.StatusOK, message, err)
}

// ============================================================================
// DASHBOARD
// ============================================================================

// Stats handles GET /api/v1/agent/stats
func (h *AgentHandler) Stats(c *gin.Context) {
	user := middleware.MustGetUserContext(c)

	stats, err := h.backend.AgentStats(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"stats": stats})
}

// Bookings handles GET /api/v1/agent/bookings
func (h *AgentHandler) Bookings(c *gin.Context) {
	user := middleware.MustGetUserContext(c)

	bookings, err := h.backend.AgentBookings(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []models.AgentBooking{}
	}
	respondOK(c, http.StatusOK, gin.H{"bookings": bookings})
}
