package fare

import (
	"fmt"
	"math"
	"strings"
)

// MinimumFare is the lowest chargeable fare once a segment is valid.
const MinimumFare = 50.0

// NotAvailable is what read-only views show for a fare that cannot be charged.
const NotAvailable = "N/A"

// Mode selects how an unusable segment is priced.
type Mode int

const (
	// Estimate falls back to the seat's base price (search results, seat map).
	Estimate Mode = iota
	// Strict prices an unusable segment at 0 and raises a warning (passenger details).
	Strict
)

func (m Mode) String() string {
	switch m {
	case Estimate:
		return "estimate"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Warnings raised in Strict mode
const (
	WarningInvalidRoute = "Invalid route selected (destination before origin). Fare set to 0"
	WarningZeroFare     = "Fare for this segment is 0"
)

// Result is a computed fare together with how it should be presented.
type Result struct {
	Amount  float64 `json:"amount"`
	Valid   bool    `json:"valid"`
	Mode    Mode    `json:"-"`
	Warning string  `json:"warning,omitempty"`
}

// Chargeable reports whether the fare contributes to a total.
func (r Result) Chargeable() bool {
	return r.Valid && r.Amount > 0
}

// Display formats the fare. Estimates that cannot be charged read "N/A",
// strict fares always show a number so the passenger sees the hard 0.
func (r Result) Display() string {
	if r.Mode == Estimate && !r.Chargeable() {
		return NotAvailable
	}
	return Format(r.Amount)
}

// Format renders an amount with two decimals.
func Format(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// Compute prorates basePrice by the share of route segments between from and to.
//
// from matches the first stop with the same name and to matches the last one,
// so a route that revisits a stop resolves to the longest journey.
func Compute(basePrice float64, stops []string, from, to string, mode Mode) Result {
	fromIndex, toIndex := -1, -1
	fromKey, toKey := key(from), key(to)
	for i, stop := range stops {
		k := key(stop)
		if fromIndex < 0 && k == fromKey {
			fromIndex = i
		}
		if k == toKey {
			toIndex = i
		}
	}

	if len(stops) < 2 || fromIndex < 0 || toIndex <= fromIndex {
		return invalid(basePrice, mode, WarningInvalidRoute)
	}

	ratio := float64(toIndex-fromIndex) / float64(len(stops)-1)
	raw := Round2(basePrice * ratio)
	if raw <= 0 {
		return invalid(basePrice, mode, WarningZeroFare)
	}

	return Result{Amount: math.Max(raw, MinimumFare), Valid: true, Mode: mode}
}

func invalid(basePrice float64, mode Mode, warning string) Result {
	if mode == Strict {
		return Result{Amount: 0, Valid: false, Mode: mode, Warning: warning}
	}
	return Result{Amount: basePrice, Valid: false, Mode: mode}
}

// Round2 rounds to cents, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Total sums fares, skipping anything that is not positive.
func Total(fares ...float64) float64 {
	sum := 0.0
	for _, f := range fares {
		if f > 0 {
			sum += f
		}
	}
	return Round2(sum)
}

// MinorUnits converts an amount to paise.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// StopKey is the case-insensitive comparison key for a stop name.
func StopKey(stop string) string {
	return key(stop)
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
