package models

import (
	"fmt"
	"strings"
)

// Route is an ordered list of stop names. Matching ignores case, display keeps it.
type Route []string

// Valid reports whether the route has at least an origin and a destination.
func (r Route) Valid() bool {
	return len(r) >= 2
}

// First returns the origin stop, "" for an empty route.
func (r Route) First() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// Last returns the final stop, "" for an empty route.
func (r Route) Last() string {
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

// Contains reports whether a stop with the same name (ignoring case) is on the route.
func (r Route) Contains(stop string) bool {
	needle := strings.ToLower(strings.TrimSpace(stop))
	for _, s := range r {
		if strings.ToLower(strings.TrimSpace(s)) == needle {
			return true
		}
	}
	return false
}

// RouteRecord is a bus route as the backend stores it (stops are stored lower-cased).
type RouteRecord struct {
	ID      string   `json:"id,omitempty"`
	BusID   string   `json:"busId"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Stops   []string `json:"stops"`
	Timings []string `json:"timings,omitempty"`
}

// FullRoute returns origin, intermediate stops and destination in order.
func (r RouteRecord) FullRoute() Route {
	route := make(Route, 0, len(r.Stops)+2)
	if r.From != "" {
		route = append(route, r.From)
	}
	route = append(route, r.Stops...)
	if r.To != "" {
		route = append(route, r.To)
	}
	return route
}

// Validate requires a bus and both ends of the route
func (r *RouteRecord) Validate() error {
	if r.BusID == "" {
		return fmt.Errorf("bus id is required")
	}
	if strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == "" {
		return fmt.Errorf("route origin and destination are required")
	}
	if strings.EqualFold(strings.TrimSpace(r.From), strings.TrimSpace(r.To)) {
		return fmt.Errorf("route origin and destination must differ")
	}
	return nil
}
