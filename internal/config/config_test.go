package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 6, cfg.Booking.MaxSeats)
	assert.Equal(t, time.Second, cfg.Booking.LoaderFloor)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BACKEND_BASE_URL", "http://backend:8081/")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOADER_MIN_DURATION_MS", "250")
	t.Setenv("BOOKING_MAX_SEATS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8081", cfg.Backend.BaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Booking.LoaderFloor)
	assert.Equal(t, 6, cfg.Booking.MaxSeats)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestValidate_ProductionNeedsPaymentKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RAZORPAY_KEY_ID", "")

	_, err := Load()
	assert.EqualError(t, err, "RAZORPAY_KEY_ID is required in production")
}
