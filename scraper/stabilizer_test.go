package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestStabilizer() (*Stabilizer, *fakeClock) {
	clock := &fakeClock{}
	st := NewStabilizer(nil)
	st.sleep = clock.sleep
	return st, clock
}

func TestStabilizeConverges(t *testing.T) {
	st, clock := newTestStabilizer()
	p := &fakePage{log: &eventLog{}, heights: sequence(100, 200, 300, 300, 300, 300)}
	opts := StabilizeOptions{StepDelay: time.Second, MaxIterations: 30, RequiredStableStreak: 3, TailCycles: 2}

	state := st.Stabilize(context.Background(), p, opts)

	assert.True(t, state.Converged)
	assert.Equal(t, 5, state.Iteration)
	assert.Equal(t, 3, state.StableStreak)
	assert.Equal(t, 300, state.CurrentExtent)
	assert.Equal(t, 300, state.LastExtent)
	assert.Equal(t, 2, state.TailCycles)
	assert.Equal(t, 7, clock.sleeps)
	assert.Equal(t, 7, p.scrolls)
}

func TestStabilizeStreakResetsOnGrowth(t *testing.T) {
	st, _ := newTestStabilizer()
	// Stable twice, grows, then stable three times.
	p := &fakePage{log: &eventLog{}, heights: sequence(100, 100, 100, 150, 150, 150, 150)}
	opts := StabilizeOptions{StepDelay: time.Millisecond, MaxIterations: 30, RequiredStableStreak: 3, TailCycles: 1}

	state := st.Stabilize(context.Background(), p, opts)

	assert.True(t, state.Converged)
	assert.Equal(t, 6, state.Iteration)
	assert.Equal(t, 1, state.TailCycles)
}

func TestStabilizeBoundedWhenNeverStable(t *testing.T) {
	tests := []struct {
		name string
		opts StabilizeOptions
	}{
		{"defaults", DefaultStabilizeOptions()},
		{"tight", StabilizeOptions{StepDelay: 10 * time.Millisecond, MaxIterations: 3, RequiredStableStreak: 2, TailCycles: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, clock := newTestStabilizer()
			grows := func(call int) (int, error) { return 1000 + call*500, nil }
			p := &fakePage{log: &eventLog{}, heights: grows}

			state := st.Stabilize(context.Background(), p, tt.opts)

			bound := time.Duration(tt.opts.MaxIterations+tt.opts.TailCycles) * tt.opts.StepDelay
			assert.LessOrEqual(t, clock.elapsed, bound)
			assert.Equal(t, tt.opts.MaxIterations, state.Iteration)
			assert.Equal(t, tt.opts.TailCycles, state.TailCycles)
			assert.Equal(t, 0, state.StableStreak)
			assert.False(t, state.Converged)
		})
	}
}

func TestStabilizeZeroOptionsUseDefaults(t *testing.T) {
	st, clock := newTestStabilizer()
	grows := func(call int) (int, error) { return 1000 + call*500, nil }
	p := &fakePage{log: &eventLog{}, heights: grows}

	state := st.Stabilize(context.Background(), p, StabilizeOptions{})

	def := DefaultStabilizeOptions()
	assert.Equal(t, def.MaxIterations, state.Iteration)
	assert.Equal(t, def.TailCycles, state.TailCycles)
	assert.Equal(t, time.Duration(def.MaxIterations+def.TailCycles)*def.StepDelay, clock.elapsed)
}

func TestStabilizeMeasurementFailure(t *testing.T) {
	st, clock := newTestStabilizer()
	failing := func(call int) (int, error) {
		if call == 2 {
			return 0, errors.New("target closed")
		}
		return 100 * (call + 1), nil
	}
	p := &fakePage{log: &eventLog{}, heights: failing}

	state := st.Stabilize(context.Background(), p, DefaultStabilizeOptions())

	assert.Equal(t, 2, state.Iteration)
	assert.False(t, state.Converged)
	// The tail buffer is skipped once the page stopped answering.
	assert.Equal(t, 0, state.TailCycles)
	assert.Equal(t, 2, clock.sleeps)
}

func TestStabilizeInitialMeasurementFailure(t *testing.T) {
	st, clock := newTestStabilizer()
	p := &fakePage{log: &eventLog{}, heights: func(int) (int, error) { return 0, errors.New("detached") }}

	state := st.Stabilize(context.Background(), p, DefaultStabilizeOptions())

	assert.Equal(t, StabilizationState{}, state)
	assert.Equal(t, 0, clock.sleeps)
}

func TestStabilizeCancelled(t *testing.T) {
	st, clock := newTestStabilizer()
	clock.failAt = 3
	p := &fakePage{log: &eventLog{}, heights: func(call int) (int, error) { return call, nil }}

	state := st.Stabilize(context.Background(), p, DefaultStabilizeOptions())

	assert.Equal(t, 3, state.Iteration)
	assert.Equal(t, 0, state.TailCycles)
}

func TestStabilizeRealSleepRespectsContext(t *testing.T) {
	st := NewStabilizer(nil)
	p := &fakePage{log: &eventLog{}, heights: func(call int) (int, error) { return call, nil }}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	st.Stabilize(ctx, p, StabilizeOptions{StepDelay: time.Hour, MaxIterations: 30, RequiredStableStreak: 3, TailCycles: 10})
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForMarker(t *testing.T) {
	st, _ := newTestStabilizer()
	ctx := context.Background()

	found := &fakePage{log: &eventLog{}}
	assert.True(t, st.WaitForMarker(ctx, found, MarkerOptions{Fragments: []string{"Responses", "("}}))

	missing := &fakePage{log: &eventLog{}, textErr: errors.New("not found")}
	assert.False(t, st.WaitForMarker(ctx, missing, MarkerOptions{Fragments: []string{"Responses"}}))

	slow := &fakePage{log: &eventLog{}, blockText: true}
	start := time.Now()
	assert.False(t, st.WaitForMarker(ctx, slow, MarkerOptions{Fragments: []string{"Responses"}, Timeout: 20 * time.Millisecond}))
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, st.WaitForMarker(ctx, missing, MarkerOptions{}))
}

func TestStabilizeOptionsWithDefaults(t *testing.T) {
	got := StabilizeOptions{MaxIterations: 4}.withDefaults(DefaultStabilizeOptions())
	assert.Equal(t, StabilizeOptions{
		StepDelay:            2 * time.Second,
		MaxIterations:        4,
		RequiredStableStreak: 3,
		TailCycles:           10,
	}, got)
}
