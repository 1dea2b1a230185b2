package models

// BookingRequest books one seat for one passenger after payment.
type BookingRequest struct {
	BusID             string  `json:"busId"`
	TravelDate        string  `json:"travelDate"`
	CustomerEmail     string  `json:"customerEmail"`
	SeatNumber        string  `json:"seatNumber"`
	Fare              float64 `json:"fare"`
	PassengerName     string  `json:"passengerName"`
	PassengerAge      int     `json:"passengerAge"`
	PassengerMobile   string  `json:"passengerMobile"`
	PassengerFrom     string  `json:"passengerFrom"`
	PassengerTo       string  `json:"passengerTo"`
	PassengerEmail    string  `json:"passengerEmail"`
	RazorpayPaymentID string  `json:"razorpayPaymentId"`
	RazorpayOrderID   string  `json:"razorpayOrderId"`
}

// BookingRecord is a stored booking as the backend returns it.
type BookingRecord struct {
	ID              string  `json:"id"`
	BusID           string  `json:"busId"`
	TravelDate      string  `json:"travelDate"`
	CustomerEmail   string  `json:"customerEmail"`
	SeatNumber      string  `json:"seatNumber"`
	SeatType        string  `json:"seatType,omitempty"`
	Fare            float64 `json:"fare"`
	PassengerName   string  `json:"passengerName"`
	PassengerAge    int     `json:"passengerAge"`
	PassengerMobile string  `json:"passengerMobile"`
	PassengerFrom   string  `json:"passengerFrom"`
	PassengerTo     string  `json:"passengerTo"`
	PassengerEmail  string  `json:"passengerEmail"`
	Status          string  `json:"status"`
}

// FinalizeRequest asks the backend to email the tickets for a completed booking.
type FinalizeRequest struct {
	Email       string   `json:"email"`
	BusID       string   `json:"busId"`
	TravelDate  string   `json:"travelDate"`
	SeatNumbers []string `json:"seatNumbers"`
}

// AgentBooking is a booking on one of an agent's buses.
type AgentBooking struct {
	BusName         string  `json:"busName"`
	RouteFrom       string  `json:"routeFrom"`
	RouteTo         string  `json:"routeTo"`
	TravelDate      string  `json:"travelDate"`
	SeatNumber      string  `json:"seatNumber"`
	Fare            float64 `json:"fare"`
	Status          string  `json:"status"`
	PassengerName   string  `json:"passengerName"`
	PassengerMobile string  `json:"passengerMobile"`
	Email           string  `json:"email"`
}

// Ticket is a downloaded ticket document
type Ticket struct {
	Filename    string
	ContentType string
	Body        []byte
}
