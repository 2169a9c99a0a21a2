// Package worker implements the worker process: a responsiveness sampler,
// the client-facing keepalive service and the IPC responder.
package worker

import (
	"context"
	"runtime"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"poolmon/internal/ipc"
)

const (
	tickEvent    = "tick"
	messageEvent = "message"
)

// Counters exposes the service counters reported with every sample
type Counters interface {
	Conns() int64
	Packets() int64
}

// Sampler records the gap between fixed-interval ticks. A late tick means the
// worker was busy; the buffer is handed out and cleared on every request.
type Sampler struct {
	interval time.Duration
	clock    clock.WithTicker
	elapsed  *Elapsed
	counters Counters

	mu    sync.Mutex
	ticks []float64
}

// NewSampler creates a sampler ticking every interval
func NewSampler(interval time.Duration, counters Counters, clk clock.WithTicker) *Sampler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Sampler{
		interval: interval,
		clock:    clk,
		elapsed:  NewElapsed(clk),
		counters: counters,
	}
}

// Run ticks until ctx ends
func (s *Sampler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.Tick()
		}
	}
}

// Tick records one sample
func (s *Sampler) Tick() {
	gap := s.elapsed.Since(tickEvent)
	s.mu.Lock()
	s.ticks = append(s.ticks, gap)
	s.mu.Unlock()
}

// Take returns the recorded ticks and starts a new window
func (s *Sampler) Take() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticks := s.ticks
	s.ticks = nil
	if ticks == nil {
		ticks = []float64{}
	}
	return ticks
}

// Reply builds the answer to request id
func (s *Sampler) Reply(id uint64) *ipc.Reply {
	reply := &ipc.Reply{
		ID:           id,
		TimeFromLast: s.elapsed.Since(messageEvent),
		Ticks:        s.Take(),
		Mem:          memoryUsage(),
	}
	if s.counters != nil {
		reply.Conns = s.counters.Conns()
		reply.Packets = s.counters.Packets()
	}
	return reply
}

func memoryUsage() ipc.MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ipc.MemoryUsage{
		HeapUsed:   ms.HeapAlloc,
		HeapTotal:  ms.HeapSys,
		Sys:        ms.Sys,
		StackInuse: ms.StackInuse,
	}
}
