package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
)

// Handlers groups every handler the API mounts
type Handlers struct {
	Auth     *AuthHandler
	Search   *SearchHandler
	Booking  *BookingHandler
	Checkout *CheckoutHandler
	User     *UserBookingHandler
	Agent    *AgentHandler
	Admin    *AdminHandler
}

// RegisterRoutes mounts the API under api. requireAuth guards the signed-in routes.
// Tab-scoped routes expect TabSession to run before them.
func RegisterRoutes(api gin.IRouter, h Handlers, requireAuth gin.HandlerFunc) {
	// Authentication routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/send-otp", h.Auth.SendOTP)
		auth.POST("/verify-otp", h.Auth.VerifyOTP)
		auth.POST("/register", h.Auth.Register)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", requireAuth, h.Auth.Me)
	}

	// Search and seat map (public until proceeding)
	api.GET("/search", h.Search.SearchBuses)
	seats := api.Group("/seats")
	{
		seats.GET("", h.Search.LoadSeatMap)
		seats.GET("/current", h.Search.CurrentSeatMap)
		seats.POST("/toggle", h.Search.ToggleSeat)
		seats.POST("/proceed", requireAuth, h.Search.Proceed)
	}

	// Passenger details and dashboard flags
	booking := api.Group("/booking")
	booking.Use(requireAuth)
	{
		booking.GET("/details", h.Booking.OpenDetails)
		booking.PUT("/segment", h.Booking.UpdateSegment)
		booking.GET("/status-flags", h.Booking.StatusFlags)
	}

	// Checkout and widget callbacks
	checkout := api.Group("/checkout")
	checkout.Use(requireAuth)
	{
		checkout.POST("", h.Checkout.Initiate)
		checkout.GET("", h.Checkout.Status)
		checkout.GET("/await", h.Checkout.Await)
		checkout.POST("/success", h.Checkout.PaymentSucceeded)
		checkout.POST("/failure", h.Checkout.PaymentFailed)
		checkout.POST("/dismiss", h.Checkout.PaymentDismissed)
	}

	// Customer bookings
	user := api.Group("/user")
	user.Use(requireAuth)
	{
		user.GET("/bookings", h.User.MyBookings)
		user.GET("/bookings/:id/ticket", h.User.DownloadTicket)
	}

	// Agent fleet management
	agent := api.Group("/agent")
	agent.Use(requireAuth, middleware.RequireRole(models.RoleAgent))
	{
		agent.POST("/buses", h.Agent.AddBus)
		agent.GET("/buses", h.Agent.MyBuses)
		agent.GET("/buses/:busId/routes", h.Agent.RoutesByBus)
		agent.GET("/buses/:busId/staff", h.Agent.StaffByBus)
		agent.GET("/buses/:busId/schedules", h.Agent.SchedulesByBus)
		agent.GET("/buses/:busId/seats", h.Agent.SeatLayoutByBus)
		agent.DELETE("/buses/:busId/seats", h.Agent.DeleteSeatLayout)

		agent.POST("/routes", h.Agent.AddRoute)
		agent.PUT("/routes/:id", h.Agent.UpdateRoute)
		agent.DELETE("/routes/:id", h.Agent.DeleteRoute)

		agent.POST("/staff", h.Agent.AddStaff)
		agent.PUT("/staff/:id", h.Agent.UpdateStaff)
		agent.DELETE("/staff/:id", h.Agent.DeleteStaff)

		agent.POST("/schedules", h.Agent.AddSchedule)
		agent.GET("/schedules/:id", h.Agent.GetSchedule)
		agent.PUT("/schedules/:id", h.Agent.UpdateSchedule)
		agent.DELETE("/schedules/:id", h.Agent.DeleteSchedule)

		agent.POST("/seats", h.Agent.SaveSeatLayout)

		agent.GET("/stats", h.Agent.Stats)
		agent.GET("/bookings", h.Agent.Bookings)
	}

	// Admin routes
	admin := api.Group("/admin")
	admin.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/agents", h.Admin.AddAgent)
		admin.GET("/agents", h.Admin.ListAgents)
		admin.GET("/schedules", h.Admin.AllSchedules)
		admin.GET("/buses", h.Admin.BusesOnRoute)
		admin.GET("/booking-failures", h.Admin.BookingFailures)
		admin.GET("/checkouts/:id/history", h.Admin.CheckoutHistory)
	}
}
