package services

import (
	"context"
	"strings"

	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/jwt"
	"github.com/onlinebus/booking-gateway/pkg/validator"
	"github.com/sirupsen/logrus"
)

// AccountBackend is the part of the backend that owns accounts
type AccountBackend interface {
	SendOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, otp string) (string, error)
	Register(ctx context.Context, req *models.RegisterRequest) (string, error)
	AllAgents(ctx context.Context) ([]models.Agent, error)
}

// SessionUser is who a token pair was issued to
type SessionUser struct {
	Email string   `json:"email"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles"`
}

// TokenPair is returned after a successful sign-in or refresh
type TokenPair struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         SessionUser `json:"user"`
}

// AuthService validates account forms, relays them to the backend and signs
// the gateway's tokens once the backend has verified an email.
type AuthService struct {
	backend     AccountBackend
	jwtService  *jwt.Service
	config      config.JWTConfig
	adminEmails map[string]bool
	phones      *validator.PhoneValidator
	logger      *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(backend AccountBackend, jwtService *jwt.Service, cfg config.JWTConfig, logger *logrus.Logger) *AuthService {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &AuthService{
		backend:     backend,
		jwtService:  jwtService,
		config:      cfg,
		adminEmails: admins,
		phones:      validator.NewPhoneValidator(),
		logger:      logger,
	}
}

// SendOTP asks the backend to email a one-time code
func (s *AuthService) SendOTP(ctx context.Context, email string) (string, error) {
	email, err := validator.ValidateEmail(email)
	if err != nil {
		return "", newValidationError("email", "Please enter a valid email address")
	}
	return s.backend.SendOTP(ctx, email)
}

// VerifyOTP checks the code with the backend and signs the user in
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) (*TokenPair, error) {
	email, err := validator.ValidateEmail(email)
	if err != nil {
		return nil, newValidationError("email", "Please enter a valid email address")
	}
	if strings.TrimSpace(otp) == "" {
		return nil, newValidationError("otp", "Please enter the code sent to your email")
	}

	if _, err := s.backend.VerifyOTP(ctx, email, strings.TrimSpace(otp)); err != nil {
		return nil, err
	}

	s.logger.WithField("email", email).Info("Email verified, issuing tokens")
	return s.issue(ctx, email)
}

// Register validates the form and creates the account on the backend
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "", newValidationError("name", "Please enter your name")
	}
	email, err := validator.ValidateEmail(req.Email)
	if err != nil {
		return "", newValidationError("email", "Please enter a valid email address")
	}
	req.Email = email
	if req.Phone != "" {
		phone, err := s.phones.Validate(req.Phone)
		if err != nil {
			return "", newValidationError("phone", "%s", err.Error())
		}
		req.Phone = phone
	}
	if len(req.Password) < 6 {
		return "", newValidationError("password", "Password must be at least 6 characters")
	}
	return s.backend.Register(ctx, req)
}

// Refresh exchanges a refresh token for a new pair. Roles are resolved again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, newValidationError("refresh_token", "Invalid or expired refresh token")
	}
	return s.issue(ctx, claims.Email)
}

func (s *AuthService) issue(ctx context.Context, email string) (*TokenPair, error) {
	user := s.resolve(ctx, email)
	userID := jwt.UserIDForEmail(email)

	access, err := s.jwtService.GenerateAccessToken(userID, user.Email, user.Name, user.Roles)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtService.GenerateRefreshToken(userID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		User:         user,
	}, nil
}

// resolve decides the roles of an email. Agent lookup failures leave a plain user.
func (s *AuthService) resolve(ctx context.Context, email string) SessionUser {
	user := SessionUser{Email: email, Roles: []string{models.RoleUser}}
	if s.adminEmails[email] {
		user.Roles = append(user.Roles, models.RoleAdmin)
	}

	agents, err := s.backend.AllAgents(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("Failed to load agents, signing in as user")
		return user
	}
	for _, agent := range agents {
		if strings.EqualFold(agent.Email, email) {
			user.Roles = append(user.Roles, models.RoleAgent)
			user.Name = agent.Name
			break
		}
	}
	return user
}
