// Package scheduler runs a function on fixed absolute deadlines.
package scheduler

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Scheduler fires step k at origin + k*period, where origin defaults to the
// time Run starts. A slow step delays the next one but never shifts later deadlines.
type Scheduler struct {
	period time.Duration
	clock  clock.Clock
}

// New creates a scheduler
func New(period time.Duration, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{period: period, clock: clk}
}

// Deadline returns when step fires for a run started at origin
func (s *Scheduler) Deadline(origin time.Time, step int) time.Time {
	return origin.Add(time.Duration(step) * s.period)
}

// Run calls fn with steps 1, 2, 3... until ctx ends, counting from now
func (s *Scheduler) Run(ctx context.Context, fn func(ctx context.Context, step int)) error {
	return s.RunFrom(ctx, s.clock.Now(), fn)
}

// RunFrom is Run with deadlines counted from origin. Steps whose deadline has
// already passed fire immediately.
func (s *Scheduler) RunFrom(ctx context.Context, origin time.Time, fn func(ctx context.Context, step int)) error {
	for step := 1; ; step++ {
		if err := s.waitUntil(ctx, s.Deadline(origin, step)); err != nil {
			return nil
		}
		fn(ctx, step)
	}
}

func (s *Scheduler) waitUntil(ctx context.Context, deadline time.Time) error {
	wait := deadline.Sub(s.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := s.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
