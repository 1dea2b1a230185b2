package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/onlinebus/booking-gateway/pkg/loader"
	"github.com/sirupsen/logrus"
)

// withLoader runs op under the loading floor of the calling view
func withLoader(c *gin.Context, floor time.Duration, op func(ctx context.Context) error) error {
	return loader.Run(c.Request.Context(), floor, op)
}

// respondOK writes data with optional notifications
func respondOK(c *gin.Context, status int, data gin.H, notes ...models.Notification) {
	if data == nil {
		data = gin.H{}
	}
	if len(notes) > 0 {
		data["notifications"] = notes
	}
	c.JSON(status, data)
}

// respondBadRequest is used for malformed bodies, before any service is called
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":         message,
		"code":          "INVALID_REQUEST",
		"notifications": []models.Notification{models.Toast(models.LevelError, message)},
	})
}

// respondError maps service errors to a status, a code and a notification.
// Validation and network errors become toasts. A paid but unbooked checkout
// becomes a blocking modal.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *services.ValidationError
		apiErr        *services.APIError
		bookingErr    *services.BookingFailedError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         validationErr.Message,
			"field":         validationErr.Field,
			"code":          "VALIDATION_ERROR",
			"notifications": []models.Notification{models.Toast(models.LevelError, validationErr.Message)},
		})

	case errors.As(err, &bookingErr):
		logger.WithFields(logrus.Fields{
			"order_id":     bookingErr.OrderID,
			"payment_id":   bookingErr.PaymentID,
			"failed_seats": bookingErr.FailedSeats(),
		}).Error("Payment captured but booking failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     bookingErr.Error(),
			"code":      "BOOKING_FAILED",
			"orderId":   bookingErr.OrderID,
			"paymentId": bookingErr.PaymentID,
			"failures":  bookingErr.Failures,
			"notifications": []models.Notification{models.Modal(models.LevelError,
				"Booking Failed", bookingErr.Error(), "")},
		})

	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		logger.WithError(err).WithField("backend_status", apiErr.StatusCode).Warn("Backend request failed")
		c.JSON(status, gin.H{
			"error":         apiErr.Error(),
			"code":          "BACKEND_ERROR",
			"notifications": []models.Notification{models.Toast(models.LevelError, apiErr.Error())},
		})

	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, services.ErrSelectionNotFound),
		errors.Is(err, services.ErrCheckoutNotFound), errors.Is(err, services.ErrNoSeatLayout):
		c.JSON(http.StatusNotFound, gin.H{
			"error":         err.Error(),
			"code":          "NOT_FOUND",
			"notifications": []models.Notification{models.Toast(models.LevelError, err.Error())},
		})

	case errors.Is(err, services.ErrCheckoutInProgress), errors.Is(err, services.ErrCheckoutClosed),
		errors.Is(err, services.ErrOrderMismatch), errors.Is(err, models.ErrSeatNotInSession):
		c.JSON(http.StatusConflict, gin.H{
			"error":         err.Error(),
			"code":          "CHECKOUT_CONFLICT",
			"notifications": []models.Notification{models.Toast(models.LevelError, err.Error())},
		})

	case errors.Is(err, context.Canceled):
		logger.WithField("path", c.Request.URL.Path).Info("Client went away")
		c.Status(499)

	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         "Something went wrong. Please try again.",
			"code":          "INTERNAL_ERROR",
			"notifications": []models.Notification{models.Toast(models.LevelError, "Something went wrong. Please try again.")},
		})
	}
}
