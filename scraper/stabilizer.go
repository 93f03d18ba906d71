package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/browser"
)

// StabilizeOptions bounds the scroll loop. The loop performs at most
// MaxIterations+TailCycles waits of StepDelay each.
type StabilizeOptions struct {
	StepDelay            time.Duration
	MaxIterations        int
	RequiredStableStreak int
	TailCycles           int
}

// DefaultStabilizeOptions are the bounds used when a source sets none.
func DefaultStabilizeOptions() StabilizeOptions {
	return StabilizeOptions{
		StepDelay:            2 * time.Second,
		MaxIterations:        30,
		RequiredStableStreak: 3,
		TailCycles:           10,
	}
}

// withDefaults fills zero fields from def.
func (o StabilizeOptions) withDefaults(def StabilizeOptions) StabilizeOptions {
	if o.StepDelay <= 0 {
		o.StepDelay = def.StepDelay
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.RequiredStableStreak <= 0 {
		o.RequiredStableStreak = def.RequiredStableStreak
	}
	if o.TailCycles <= 0 {
		o.TailCycles = def.TailCycles
	}
	return o
}

// StabilizationState is the outcome of one Stabilize run.
type StabilizationState struct {
	LastExtent    int
	CurrentExtent int
	StableStreak  int
	Iteration     int
	Converged     bool
	TailCycles    int
}

// MarkerOptions configures the wait for a textual marker.
type MarkerOptions struct {
	Fragments []string
	Timeout   time.Duration
}

// Stabilizer scrolls a page until its extent stops growing.
type Stabilizer struct {
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *Metrics
}

// NewStabilizer creates a stabilizer. metrics may be nil.
func NewStabilizer(m *Metrics) *Stabilizer {
	return &Stabilizer{sleep: sleepCtx, metrics: m}
}

// Stabilize repeatedly scrolls to the bottom, waits and re-measures the
// document extent until it has been unchanged RequiredStableStreak times in
// a row or MaxIterations is reached, then runs TailCycles extra scroll+wait
// cycles. Not converging is a normal outcome. Measurement failures and
// cancellation end the run early; Stabilize never fails. Zero fields of opts
// take their DefaultStabilizeOptions values.
func (st *Stabilizer) Stabilize(ctx context.Context, page browser.Page, opts StabilizeOptions) StabilizationState {
	opts = opts.withDefaults(DefaultStabilizeOptions())
	var state StabilizationState
	streak := opts.RequiredStableStreak

	h, err := page.ScrollHeight(ctx)
	if err != nil {
		slog.Debug("stabilize: initial measurement failed", "error", err)
		return state
	}
	state.LastExtent, state.CurrentExtent = h, h

	aborted := false
	for state.Iteration < opts.MaxIterations && state.StableStreak < streak {
		state.Iteration++
		if err := page.ScrollToBottom(ctx); err != nil {
			slog.Debug("stabilize: scroll failed", "iteration", state.Iteration, "error", err)
			aborted = true
			break
		}
		if err := st.sleep(ctx, opts.StepDelay); err != nil {
			aborted = true
			break
		}
		h, err := page.ScrollHeight(ctx)
		if err != nil {
			slog.Debug("stabilize: measurement failed", "iteration", state.Iteration, "error", err)
			aborted = true
			break
		}
		state.LastExtent, state.CurrentExtent = state.CurrentExtent, h
		if h == state.LastExtent {
			state.StableStreak++
		} else {
			state.StableStreak = 0
		}
	}
	state.Converged = state.StableStreak >= streak

	if !aborted {
		for i := 0; i < opts.TailCycles; i++ {
			if err := page.ScrollToBottom(ctx); err != nil {
				break
			}
			if err := st.sleep(ctx, opts.StepDelay); err != nil {
				break
			}
			state.TailCycles++
		}
	}

	st.metrics.observeStabilization(state.Iteration, state.Converged)
	slog.Debug("stabilize: done",
		"iterations", state.Iteration,
		"converged", state.Converged,
		"extent", state.CurrentExtent,
		"tail", state.TailCycles,
	)
	return state
}

// WaitForMarker waits up to opts.Timeout for the document text to contain
// every fragment. It reports whether the marker appeared; a miss is not an
// error.
func (st *Stabilizer) WaitForMarker(ctx context.Context, page browser.Page, opts MarkerOptions) bool {
	if len(opts.Fragments) == 0 {
		return true
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := page.WaitForText(ctx, opts.Fragments...); err != nil {
		slog.Debug("marker not found", "fragments", opts.Fragments, "error", err)
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
