package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth         *services.AuthService
	secureCookie bool
	logger       *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, secureCookie bool, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// RefreshTokenRequest represents the request to refresh access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SendOTP handles POST /api/v1/auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Email is required")
		return
	}

	message, err := h.auth.SendOTP(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": message},
		models.Toast(models.LevelSuccess, "A verification code was sent to your email"))
}

// VerifyOTP handles POST /api/v1/auth/verify-otp
// A verified email signs the user in.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Email and code are required")
		return
	}

	pair, err := h.auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setAccessCookie(c, pair)
	h.logger.WithFields(logrus.Fields{
		"email": pair.User.Email,
		"roles": pair.User.Roles,
	}).Info("User signed in")

	respondOK(c, http.StatusOK, gin.H{"tokens": pair})
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Name, email and password are required")
		return
	}

	message, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"message": message},
		models.Toast(models.LevelSuccess, "Registration successful"))
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Refresh token is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid or expired refresh token",
			"code":  "INVALID_REFRESH_TOKEN",
		})
		return
	}

	h.setAccessCookie(c, pair)
	respondOK(c, http.StatusOK, gin.H{"tokens": pair})
}

// Logout handles POST /api/v1/auth/logout
// Tokens are stateless; only the cookie is cleared.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookie, true)
	respondOK(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /api/v1/auth/me (requires auth)
func (h *AuthHandler) Me(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"user": middleware.MustGetUserContext(c)})
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, pair *services.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken,
		int(pair.ExpiresIn), "/", "", h.secureCookie, true)
}
