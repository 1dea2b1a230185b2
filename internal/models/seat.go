package models

import "fmt"

// SeatType is the berth kind
type SeatType string

const (
	SeatTypeSeater  SeatType = "seater"
	SeatTypeSleeper SeatType = "sleeper"
)

// Deck is the floor of a double-decker
type Deck string

const (
	DeckLower Deck = "lower"
	DeckUpper Deck = "upper"
)

// Seat is a seat from the bus layout. Immutable once loaded for a bus.
type Seat struct {
	Number string   `json:"number"`
	Type   SeatType `json:"type"`
	Deck   Deck     `json:"deck"`
	Price  float64  `json:"price"`
}

// Validate checks the seat as an agent submits it
func (s Seat) Validate() error {
	if s.Number == "" {
		return fmt.Errorf("seat number is required")
	}
	if s.Type != SeatTypeSeater && s.Type != SeatTypeSleeper {
		return fmt.Errorf("seat %s: invalid type %q", s.Number, s.Type)
	}
	if s.Deck != DeckLower && s.Deck != DeckUpper {
		return fmt.Errorf("seat %s: invalid deck %q", s.Number, s.Deck)
	}
	if s.Price < 0 {
		return fmt.Errorf("seat %s: price cannot be negative", s.Number)
	}
	return nil
}

// SelectedSeat is a seat the user picked, with the fare for the passenger's segment.
type SelectedSeat struct {
	Seat
	DynamicFare   float64 `json:"dynamicFare"`
	PassengerFrom string  `json:"passengerFrom,omitempty"`
	PassengerTo   string  `json:"passengerTo,omitempty"`
}

// SeatLayout is the seat plan saved for a bus.
type SeatLayout struct {
	ID    string `json:"id,omitempty"`
	BusID string `json:"busId"`
	Seats []Seat `json:"seats"`
}

// Find returns the seat with the given number.
func (l SeatLayout) Find(number string) (Seat, bool) {
	for _, s := range l.Seats {
		if s.Number == number {
			return s, true
		}
	}
	return Seat{}, false
}

// SeatState is how a seat renders on the seat map
type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatSelected  SeatState = "selected"
	SeatBooked    SeatState = "booked"
)

// SeatView is one seat on the rendered seat map.
type SeatView struct {
	Seat
	State        SeatState `json:"state"`
	EstimateFare float64   `json:"estimateFare"`
	Display      string    `json:"display"`
}

// SeatSelection is a tab's working state on the seat map.
type SeatSelection struct {
	BusID      string         `json:"busId"`
	BusName    string         `json:"busName"`
	TravelDate string         `json:"travelDate"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	RouteStops Route          `json:"routeStops"`
	Layout     []Seat         `json:"layout"`
	Booked     []string       `json:"booked"`
	Selected   []SelectedSeat `json:"selected"`
}

// IsBooked reports whether the seat is already sold
func (s *SeatSelection) IsBooked(number string) bool {
	for _, b := range s.Booked {
		if b == number {
			return true
		}
	}
	return false
}

// SelectedIndex returns the position of a selected seat, -1 when not selected
func (s *SeatSelection) SelectedIndex(number string) int {
	for i, seat := range s.Selected {
		if seat.Number == number {
			return i
		}
	}
	return -1
}

// Validate checks every seat and rejects duplicate numbers
func (l SeatLayout) Validate() error {
	if l.BusID == "" {
		return fmt.Errorf("bus id is required")
	}
	if len(l.Seats) == 0 {
		return fmt.Errorf("a seat layout needs at least one seat")
	}
	seen := make(map[string]bool, len(l.Seats))
	for _, s := range l.Seats {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Number] {
			return fmt.Errorf("seat %s appears more than once", s.Number)
		}
		seen[s.Number] = true
	}
	return nil
}
