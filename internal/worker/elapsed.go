package worker

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Elapsed remembers when each named event last happened
type Elapsed struct {
	clock clock.PassiveClock
	mu    sync.Mutex
	last  map[string]time.Time
}

// NewElapsed creates a tracker
func NewElapsed(clk clock.PassiveClock) *Elapsed {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Elapsed{clock: clk, last: make(map[string]time.Time)}
}

// Since returns milliseconds since the previous call with the same name, or 0 the first time
func (e *Elapsed) Since(name string) float64 {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.last[name]
	e.last[name] = now
	if !ok {
		return 0
	}
	return float64(now.Sub(prev)) / float64(time.Millisecond)
}
