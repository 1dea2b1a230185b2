package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/onlinebus/booking-gateway/pkg/validator"
	"github.com/sirupsen/logrus"
)

// AdminBackend is the part of the backend admins onboard agents and oversee the fleet through
type AdminBackend interface {
	AddAgent(ctx context.Context, agent *models.Agent) (string, error)
	AllAgents(ctx context.Context) ([]models.Agent, error)
	AllSchedules(ctx context.Context) ([]models.TripSchedule, error)
	BusesOnRoute(ctx context.Context, from, to, date string) ([]models.Bus, error)
}

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	backend AdminBackend
	audit   *services.AuditService
	phones  *validator.PhoneValidator
	logger  *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(backend AdminBackend, audit *services.AuditService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		backend: backend,
		audit:   audit,
		phones:  validator.NewPhoneValidator(),
		logger:  logger,
	}
}

// ===================================================================
// AGENT ONBOARDING
// ===================================================================

// AddAgent handles POST /api/v1/admin/agents
func (h *AdminHandler) AddAgent(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		respondBadRequest(c, "Invalid agent details")
		return
	}

	agent.Name = strings.TrimSpace(agent.Name)
	if agent.Name == "" {
		respondBadRequest(c, "Agency name is required")
		return
	}
	email, err := validator.ValidateEmail(agent.Email)
	if err != nil {
		respondBadRequest(c, "Please enter a valid email address")
		return
	}
	agent.Email = email
	if agent.Phone != "" {
		phone, err := h.phones.Validate(agent.Phone)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		agent.Phone = phone
	}
	agent.Role = models.RoleAgent

	message, err := h.backend.AddAgent(c.Request.Context(), &agent)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("agent_email", agent.Email).Info("Agent onboarded")
	respondOK(c, http.StatusCreated, gin.H{"message": message},
		models.Toast(models.LevelSuccess, message))
}

// ListAgents handles GET /api/v1/admin/agents
func (h *AdminHandler) ListAgents(c *gin.Context) {
	agents, err := h.backend.AllAgents(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	for i := range agents {
		agents[i].Password = ""
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respondOK(c, http.StatusOK, gin.H{"agents": agents})
}

// ===================================================================
// FLEET OVERVIEW
// ===================================================================

// AllSchedules handles GET /api/v1/admin/schedules
func (h *AdminHandler) AllSchedules(c *gin.Context) {
	schedules, err := h.backend.AllSchedules(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if schedules == nil {
		schedules = []models.TripSchedule{}
	}
	respondOK(c, http.StatusOK, gin.H{"schedules": schedules})
}

// BusesOnRoute handles GET /api/v1/admin/buses?from=&to=&date=
func (h *AdminHandler) BusesOnRoute(c *gin.Context) {
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		respondBadRequest(c, "Origin and destination are required")
		return
	}

	buses, err := h.backend.BusesOnRoute(c.Request.Context(), from, to, c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if buses == nil {
		buses = []models.Bus{}
	}
	respondOK(c, http.StatusOK, gin.H{"buses": buses})
}

// ===================================================================
// PAYMENT SUPPORT
// ===================================================================

// BookingFailures handles GET /api/v1/admin/booking-failures?limit=
// Lists checkouts where the customer paid but seats were not booked.
func (h *AdminHandler) BookingFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	failures, err := h.audit.UnresolvedBookingFailures(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if failures == nil {
		failures = []*models.PaymentAudit{}
	}
	respondOK(c, http.StatusOK, gin.H{"failures": failures})
}

// CheckoutHistory handles GET /api/v1/admin/checkouts/:id/history
func (h *AdminHandler) CheckoutHistory(c *gin.Context) {
	checkoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid checkout id")
		return
	}

	history, err := h.audit.History(c.Request.Context(), checkoutID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if history == nil {
		history = []*models.PaymentAudit{}
	}
	respondOK(c, http.StatusOK, gin.H{"history": history})
}
