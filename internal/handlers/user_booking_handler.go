package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingHistory is the part of the backend the dashboard reads
type BookingHistory interface {
	BookingsByUser(ctx context.Context, email string) ([]models.BookingRecord, error)
	DownloadTicket(ctx context.Context, bookingID string) (*models.Ticket, error)
}

// UserBookingHandler serves a customer's bookings and tickets
type UserBookingHandler struct {
	backend BookingHistory
	logger  *logrus.Logger
}

// NewUserBookingHandler creates a new user booking handler
func NewUserBookingHandler(backend BookingHistory, logger *logrus.Logger) *UserBookingHandler {
	return &UserBookingHandler{
		backend: backend,
		logger:  logger,
	}
}

// MyBookings handles GET /api/v1/user/bookings
func (h *UserBookingHandler) MyBookings(c *gin.Context) {
	user := middleware.MustGetUserContext(c)

	bookings, err := h.backend.BookingsByUser(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []models.BookingRecord{}
	}
	respondOK(c, http.StatusOK, gin.H{"bookings": bookings})
}

// DownloadTicket handles GET /api/v1/user/bookings/:id/ticket
// The backend's PDF is streamed through as an attachment.
func (h *UserBookingHandler) DownloadTicket(c *gin.Context) {
	bookingID := c.Param("id")

	ticket, err := h.backend.DownloadTicket(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ticket.Filename))
	c.Data(http.StatusOK, ticket.ContentType, ticket.Body)
}
