package handlers

import (
	"net/http"
	"testing"

	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentHandler_AddBusUsesAgentEmail(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "ops@kpn.example.com", "KPN Travels", models.RoleUser, models.RoleAgent)

	w, body := env.do(t, http.MethodPost, "/api/v1/agent/buses", token, models.Bus{
		OperatorID:   "someone-else@example.com",
		BusName:      "KPN Express",
		BusNumber:    "TN01AB1234",
		SeaterCount:  30,
		SleeperCount: 10,
		DeckType:     models.DeckTypeUpperLower,
		Source:       "Chennai",
		Destination:  "Bengaluru",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Bus added successfully", body["message"])

	require.Len(t, env.backend.addedBuses, 1)
	bus := env.backend.addedBuses[0]
	assert.Equal(t, "ops@kpn.example.com", bus.OperatorID)
	assert.Equal(t, "KPN Travels", bus.OperatorName)
	assert.Equal(t, 40, bus.TotalSeats)
	assert.True(t, bus.HasUpperDeck)
}

func TestAgentHandler_InvalidBusNeverReachesBackend(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "ops@kpn.example.com", "KPN Travels", models.RoleAgent)

	w, body := env.do(t, http.MethodPost, "/api/v1/agent/buses", token, models.Bus{BusName: "KPN Express", BusNumber: "TN01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "a bus needs at least one seat", body["error"])
	assert.Empty(t, env.backend.addedBuses)
}

func TestAgentHandler_RequiresAgentRole(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "asha@example.com", "Asha")

	w, _ := env.do(t, http.MethodGet, "/api/v1/agent/buses", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAgentHandler_BackendErrorBecomesToast(t *testing.T) {
	env := setupTestEnv(t)
	token := env.token(t, "ops@kpn.example.com", "KPN Travels", models.RoleAgent)

	// The fake backend has no stats endpoint and answers 404
	w, body := env.do(t, http.MethodGet, "/api/v1/agent/stats", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BACKEND_ERROR", body["code"])
	assert.Equal(t, "toast", notificationsOf(t, body)[0]["kind"])
}
