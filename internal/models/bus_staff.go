package models

import "fmt"

// BusStaff is the crew assigned to a bus.
type BusStaff struct {
	ID               string `json:"id,omitempty"`
	BusID            string `json:"busId"`
	DriverName       string `json:"driverName"`
	DriverContact    string `json:"driverContact"`
	ConductorName    string `json:"conductorName"`
	ConductorContact string `json:"conductorContact"`
}

// Validate requires a bus and a driver
func (s *BusStaff) Validate() error {
	if s.BusID == "" {
		return fmt.Errorf("bus id is required")
	}
	if s.DriverName == "" || s.DriverContact == "" {
		return fmt.Errorf("driver name and contact are required")
	}
	return nil
}
