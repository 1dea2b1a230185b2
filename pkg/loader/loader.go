// Package loader keeps a loading indicator visible for a minimum time.
//
// The floor timer starts together with the operation, so a slow call is not
// delayed further and a fast call does not make the indicator flicker.
package loader

import (
	"context"
	"time"
)

// DefaultFloor is how long an indicator stays up at least.
const DefaultFloor = time.Second

// Indicator is shown before an operation starts and hidden after the floor.
type Indicator interface {
	Show()
	Hide()
}

// Run executes op and waits for both op and the floor to finish.
// The floor wait ends early if ctx is cancelled.
func Run(ctx context.Context, floor time.Duration, op func(context.Context) error) error {
	return RunWith(ctx, nil, floor, op)
}

// RunWith is Run with an indicator toggled around the whole wait.
func RunWith(ctx context.Context, ind Indicator, floor time.Duration, op func(context.Context) error) error {
	if ind != nil {
		ind.Show()
		defer ind.Hide()
	}

	timer := time.NewTimer(floor)
	defer timer.Stop()

	err := op(ctx)

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return err
}
