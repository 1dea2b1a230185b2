package services

import (
	"context"
	"errors"
	"testing"

	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/onlinebus/booking-gateway/pkg/fare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Validation(t *testing.T) {
	svc := NewSearchService(&fakeBackend{}, testLogger())

	var ve *ValidationError
	_, err := svc.Search(context.Background(), &SearchRequest{From: "Chennai", To: "chennai", Date: "2026-11-02"})
	assert.True(t, errors.As(err, &ve))

	_, err = svc.Search(context.Background(), &SearchRequest{From: "Chennai", To: "Hosur"})
	assert.True(t, errors.As(err, &ve))
}

func TestSearch_EstimateIsCheapestSegmentFare(t *testing.T) {
	layout := seatLayout(2, 800)
	layout.Seats[1].Price = 400
	backend := &fakeBackend{
		buses:  []models.BusSearchResult{{ID: "r1", BusID: "bus-1", BusName: "Night Rider", EstimatedFare: 999}},
		layout: layout,
		stops:  fiveStopRoute(),
	}
	svc := NewSearchService(backend, testLogger())

	results, err := svc.Search(context.Background(), &SearchRequest{From: "Vellore", To: "Hosur", Date: "2026-11-02"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// 2 of 4 segments of the 400 seat
	assert.Equal(t, 200.0, results[0].EstimatedFare)
	assert.Equal(t, "200.00", results[0].FareDisplay)
}

func TestSearch_FallsBackToBackendEstimate(t *testing.T) {
	backend := &fakeBackend{
		buses:     []models.BusSearchResult{{BusID: "bus-1", EstimatedFare: 0}, {BusID: "bus-2", EstimatedFare: 0}},
		layoutErr: errors.New("unavailable"),
	}
	svc := NewSearchService(backend, testLogger())

	results, err := svc.Search(context.Background(), &SearchRequest{From: "Vellore", To: "Hosur", Date: "2026-11-02"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fare.NotAvailable, results[0].FareDisplay)
}
