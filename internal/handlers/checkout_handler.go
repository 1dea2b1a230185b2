package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/sirupsen/logrus"
)

// CheckoutHandler drives the payment widget lifecycle for a tab
type CheckoutHandler struct {
	orchestrator  *services.PaymentOrchestratorService
	loaderFloor   time.Duration
	dashboardPath string
	logger        *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(
	orchestrator *services.PaymentOrchestratorService,
	loaderFloor time.Duration,
	dashboardPath string,
	logger *logrus.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator:  orchestrator,
		loaderFloor:   loaderFloor,
		dashboardPath: dashboardPath,
		logger:        logger,
	}
}

// InitiateRequest carries one passenger form per selected seat
type InitiateRequest struct {
	Passengers []models.PassengerDetails `json:"passengers" binding:"required,dive"`
}

// Initiate handles POST /api/v1/checkout
// Creates the payment order and returns the widget options.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Please fill out all required passenger fields.")
		return
	}

	tabID := middleware.GetTabID(c)
	var (
		options  *models.WidgetOptions
		checkout *models.Checkout
	)
	err := withLoader(c, h.loaderFloor, func(ctx context.Context) error {
		var err error
		options, checkout, err = h.orchestrator.Initiate(ctx, tabID, req.Passengers)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tab_id":      tabID,
		"checkout_id": checkout.ID,
		"order_id":    checkout.OrderID(),
		"amount":      options.Amount,
	}).Info("Payment widget options issued")

	respondOK(c, http.StatusCreated, gin.H{
		"checkout": checkout,
		"widget":   options,
	})
}

// Status handles GET /api/v1/checkout
func (h *CheckoutHandler) Status(c *gin.Context) {
	checkout, err := h.orchestrator.Status(c.Request.Context(), middleware.GetTabID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"checkout": checkout})
}

// Await handles GET /api/v1/checkout/await
// Holds the request while the widget is open. The loader stays up the whole time.
func (h *CheckoutHandler) Await(c *gin.Context) {
	checkout, err := h.orchestrator.Await(c.Request.Context(), middleware.GetTabID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"checkout": checkout})
}

// PaymentSucceeded handles POST /api/v1/checkout/success
func (h *CheckoutHandler) PaymentSucceeded(c *gin.Context) {
	var req models.PaymentSuccess
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Payment id and order id are required")
		return
	}

	tabID := middleware.GetTabID(c)
	var checkout *models.Checkout
	err := withLoader(c, h.loaderFloor, func(ctx context.Context) error {
		var err error
		checkout, err = h.orchestrator.PaymentSucceeded(ctx, tabID, req)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"checkout": checkout,
		"redirect": h.dashboardPath,
	}, models.Modal(models.LevelSuccess, "Booking Successful",
		"Your seats are booked. Your tickets will be emailed shortly.", h.dashboardPath))
}

// PaymentFailed handles POST /api/v1/checkout/failure
func (h *CheckoutHandler) PaymentFailed(c *gin.Context) {
	var req models.PaymentFailure
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid payment failure payload")
		return
	}

	checkout, err := h.orchestrator.PaymentFailed(c.Request.Context(), middleware.GetTabID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"checkout": checkout},
		models.Toast(models.LevelError, "Payment failed: "+checkout.Reason))
}

// PaymentDismissed handles POST /api/v1/checkout/dismiss
func (h *CheckoutHandler) PaymentDismissed(c *gin.Context) {
	checkout, err := h.orchestrator.PaymentDismissed(c.Request.Context(), middleware.GetTabID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"checkout": checkout},
		models.Toast(models.LevelInfo, "Payment cancelled"))
}
