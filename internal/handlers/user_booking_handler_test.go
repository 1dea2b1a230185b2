package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserBookings_ScopedToSignedInEmail(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "asha@example.com", "Asha")

	w, body := env.do(t, http.MethodGet, "/api/v1/user/bookings", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bookings := body["bookings"].([]interface{})
	require.Len(t, bookings, 1)
	assert.Equal(t, "asha@example.com", bookings[0].(map[string]interface{})["customerEmail"])
}

func TestUserBookings_TicketIsStreamedAsAttachment(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "asha@example.com", "Asha")

	w, _ := env.do(t, http.MethodGet, "/api/v1/user/bookings/bk-1/ticket", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ticket_bk-1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 ticket", w.Body.String())
}
