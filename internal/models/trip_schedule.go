package models

import (
	"fmt"
	"time"
)

// TripSchedule is a dated run of a bus on one of its routes.
type TripSchedule struct {
	ID            string `json:"id,omitempty"`
	BusID         string `json:"busId"`
	RouteID       string `json:"routeId"`
	Date          string `json:"date"`          // YYYY-MM-DD
	DepartureTime string `json:"departureTime"` // HH:MM
	ArrivalTime   string `json:"arrivalTime"`   // HH:MM
}

// Validate checks the ids and the date/time formats
func (s *TripSchedule) Validate() error {
	if s.BusID == "" || s.RouteID == "" {
		return fmt.Errorf("bus id and route id are required")
	}
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return fmt.Errorf("invalid date format, expected YYYY-MM-DD")
	}
	for _, t := range []string{s.DepartureTime, s.ArrivalTime} {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid time %q, expected HH:MM", t)
		}
	}
	return nil
}
