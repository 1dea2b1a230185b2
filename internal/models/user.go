package models

// User roles as the backend names them
const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Agent is an operator account created by an admin.
type Agent struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Password      string `json:"password,omitempty"`
	Role          string `json:"role,omitempty"`
}

// AgentStats summarises an agent's fleet.
type AgentStats struct {
	TotalBuses     int     `json:"totalBuses"`
	TotalRoutes    int     `json:"totalRoutes"`
	TotalSchedules int     `json:"totalSchedules"`
	TotalBookings  int     `json:"totalBookings"`
	TotalRevenue   float64 `json:"totalRevenue"`
}

// SendOTPRequest starts email verification
type SendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest completes email verification
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// RegisterRequest creates a user account once the email is verified
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}
