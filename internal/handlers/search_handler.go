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

// SearchHandler handles HTTP requests for bus search and the seat map
type SearchHandler struct {
	search      *services.SearchService
	seats       *services.SeatSelectionService
	loaderFloor time.Duration
	detailsPath string
	logger      *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(
	search *services.SearchService,
	seats *services.SeatSelectionService,
	loaderFloor time.Duration,
	detailsPath string,
	logger *logrus.Logger,
) *SearchHandler {
	return &SearchHandler{
		search:      search,
		seats:       seats,
		loaderFloor: loaderFloor,
		detailsPath: detailsPath,
		logger:      logger,
	}
}

// SearchBuses handles GET /api/v1/search?from=&to=&date=
func (h *SearchHandler) SearchBuses(c *gin.Context) {
	var req services.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, "Invalid search parameters")
		return
	}

	var results []models.SearchResultView
	err := withLoader(c, h.loaderFloor, func(ctx context.Context) error {
		var err error
		results, err = h.search.Search(ctx, &req)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"from":    req.From,
		"to":      req.To,
		"date":    req.Date,
		"results": len(results),
	}).Info("Search completed")

	if len(results) == 0 {
		respondOK(c, http.StatusOK, gin.H{"results": results},
			models.Toast(models.LevelInfo, "No buses found for this route and date"))
		return
	}
	respondOK(c, http.StatusOK, gin.H{"results": results})
}

// LoadSeatMap handles GET /api/v1/seats?busId=&busName=&date=&from=&to=
func (h *SearchHandler) LoadSeatMap(c *gin.Context) {
	var req services.SeatMapRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.BusID == "" || req.TravelDate == "" {
		respondBadRequest(c, "Bus and travel date are required")
		return
	}

	tabID := middleware.GetTabID(c)
	var seatMap *services.SeatMap
	err := withLoader(c, h.loaderFloor, func(ctx context.Context) error {
		var err error
		seatMap, err = h.seats.LoadSeatMap(ctx, tabID, req)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"seatMap": seatMap})
}

// CurrentSeatMap handles GET /api/v1/seats/current
func (h *SearchHandler) CurrentSeatMap(c *gin.Context) {
	seatMap, err := h.seats.CurrentSeatMap(c.Request.Context(), middleware.GetTabID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"seatMap": seatMap})
}

// ToggleSeatRequest selects or releases one seat
type ToggleSeatRequest struct {
	SeatNumber string `json:"seatNumber" binding:"required"`
}

// ToggleSeat handles POST /api/v1/seats/toggle
func (h *SearchHandler) ToggleSeat(c *gin.Context) {
	var req ToggleSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Seat number is required")
		return
	}

	seatMap, err := h.seats.ToggleSeat(c.Request.Context(), middleware.GetTabID(c), req.SeatNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"seatMap": seatMap})
}

// Proceed handles POST /api/v1/seats/proceed (requires auth)
// Hands the selection to the passenger details view.
func (h *SearchHandler) Proceed(c *gin.Context) {
	user := middleware.MustGetUserContext(c)
	tabID := middleware.GetTabID(c)

	session, err := h.seats.Proceed(c.Request.Context(), tabID, services.Identity{
		Email: user.Email,
		Name:  user.Name,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tab_id": tabID,
		"bus_id": session.BusID,
		"seats":  len(session.Seats),
	}).Info("Seat selection handed to booking details")

	respondOK(c, http.StatusOK, gin.H{
		"session":  session,
		"redirect": h.detailsPath,
	})
}
