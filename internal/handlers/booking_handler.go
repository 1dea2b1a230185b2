package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves the passenger details view and the dashboard's
// completion flags
type BookingHandler struct {
	sessions   *services.BookingSessionService
	searchPath string
	logger     *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(sessions *services.BookingSessionService, searchPath string, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		sessions:   sessions,
		searchPath: searchPath,
		logger:     logger,
	}
}

// OpenDetails handles GET /api/v1/booking/details
// A missing or broken session sends the browser back to search.
func (h *BookingHandler) OpenDetails(c *gin.Context) {
	tabID := middleware.GetTabID(c)

	view, err := h.sessions.OpenDetails(c.Request.Context(), tabID)
	if errors.Is(err, models.ErrSessionNotFound) || errors.Is(err, models.ErrSessionInvalid) {
		h.logger.WithField("tab_id", tabID).WithError(err).Warn("No usable booking session, redirecting to search")
		message := "Invalid booking details. Please select your seats again."
		c.JSON(http.StatusConflict, gin.H{
			"error":         message,
			"code":          "SESSION_INVALID",
			"redirect":      h.searchPath,
			"notifications": []models.Notification{models.Toast(models.LevelError, message)},
		})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"details": view})
}

// UpdateSegmentRequest changes where one passenger boards and alights
type UpdateSegmentRequest struct {
	SeatNumber string `json:"seatNumber" binding:"required"`
	From       string `json:"from" binding:"required"`
	To         string `json:"to" binding:"required"`
}

// UpdateSegment handles PUT /api/v1/booking/segment
func (h *BookingHandler) UpdateSegment(c *gin.Context) {
	var req UpdateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Seat, boarding and dropping points are required")
		return
	}

	update, err := h.sessions.UpdateSegment(c.Request.Context(), middleware.GetTabID(c), req.SeatNumber, req.From, req.To)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if update.Seat.Warning != "" {
		respondOK(c, http.StatusOK, gin.H{"update": update},
			models.Toast(models.LevelError, update.Seat.Warning))
		return
	}
	respondOK(c, http.StatusOK, gin.H{"update": update})
}

// StatusFlags handles GET /api/v1/booking/status-flags
// The flags are removed as they are read.
func (h *BookingHandler) StatusFlags(c *gin.Context) {
	flags, err := h.sessions.TakeStatusFlags(c.Request.Context(), middleware.GetTabID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var notes []models.Notification
	if flags.BookingStatus == models.BookingStatusSuccess {
		switch flags.EmailStatus {
		case models.EmailStatusSent:
			notes = append(notes, models.Toast(models.LevelSuccess, "Booking confirmed. Your tickets have been emailed."))
		case models.EmailStatusFailed:
			notes = append(notes, models.Toast(models.LevelError, "Booking confirmed, but we could not email your tickets. You can download them from your bookings."))
		default:
			notes = append(notes, models.Toast(models.LevelInfo, "Booking confirmed. Your tickets are being emailed."))
		}
	}
	respondOK(c, http.StatusOK, gin.H{"flags": flags}, notes...)
}
