package models

import "fmt"

// DeckType is the layout label agents choose when adding a bus
type DeckType string

const (
	DeckTypeLowerOnly  DeckType = "Lower Only"
	DeckTypeUpperLower DeckType = "Upper + Lower"
)

// Bus is a bus operated by an agent.
type Bus struct {
	ID           string   `json:"id,omitempty"`
	OperatorID   string   `json:"operatorId"`
	OperatorName string   `json:"operatorName"`
	BusName      string   `json:"busName"`
	BusNumber    string   `json:"busNumber"`
	BusType      string   `json:"busType"`
	TotalSeats   int      `json:"totalSeats"`
	SleeperCount int      `json:"sleeperCount"`
	SeaterCount  int      `json:"seaterCount"`
	HasUpperDeck bool     `json:"hasUpperDeck"`
	HasLowerDeck bool     `json:"hasLowerDeck"`
	DeckType     DeckType `json:"deckType"`
	Source       string   `json:"source"`
	Destination  string   `json:"destination"`
	SeaterFare   float64  `json:"seaterFare"`
	SleeperFare  float64  `json:"sleeperFare"`
}

// Normalize derives the seat and deck totals from the counts
func (b *Bus) Normalize() {
	b.TotalSeats = b.SleeperCount + b.SeaterCount
	b.HasUpperDeck = b.DeckType == DeckTypeUpperLower
	b.HasLowerDeck = true
}

// Validate checks what an agent submits before it reaches the backend
func (b *Bus) Validate() error {
	if b.OperatorID == "" || b.OperatorName == "" {
		return fmt.Errorf("operator id and name are required")
	}
	if b.BusName == "" || b.BusNumber == "" {
		return fmt.Errorf("bus name and number are required")
	}
	if b.SeaterCount < 0 || b.SleeperCount < 0 {
		return fmt.Errorf("seat counts cannot be negative")
	}
	if b.SeaterCount+b.SleeperCount == 0 {
		return fmt.Errorf("a bus needs at least one seat")
	}
	if b.SeaterFare < 0 || b.SleeperFare < 0 {
		return fmt.Errorf("fares cannot be negative")
	}
	return nil
}

// BusSearchResult is one row of the user search results.
type BusSearchResult struct {
	ID            string  `json:"id"`
	BusID         string  `json:"busId"`
	BusName       string  `json:"busName"`
	BusNumber     string  `json:"busNumber"`
	BusType       string  `json:"busType"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	EstimatedFare float64 `json:"estimatedFare"`
}

// SearchResultView is a search row with the fare as the results page shows it.
type SearchResultView struct {
	BusSearchResult
	FareDisplay string `json:"fareDisplay"`
}
