package snapshot

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"poolmon/internal/ipc"
	"poolmon/internal/logger"
	"poolmon/internal/procstats"
)

const (
	sourceCPU    = "cpu"
	sourceMemory = "mem"
	sourceMaster = "master"
)

// Reader reads host and process statistics
type Reader interface {
	ReadSystemCPU(ctx context.Context) (procstats.CPUStats, error)
	ReadSystemMemory(ctx context.Context) (procstats.MemStats, error)
	ReadProcess(ctx context.Context, pid int) (procstats.ProcessStat, error)
}

// Requester asks a worker for its runtime stats
type Requester interface {
	Request(ctx context.Context) (*ipc.Reply, error)
}

// Worker is one pool member as seen by the coordinator
type Worker struct {
	ID        int
	PID       int
	Requester Requester
}

// WorkerSource lists the current pool members
type WorkerSource interface {
	Workers() []Worker
}

// Coordinator fans a capture out to every source and fans the results back
// into one DataFrame
type Coordinator struct {
	reader  Reader
	workers WorkerSource
	timeout time.Duration
	clock   clock.PassiveClock
	log     *logger.Logger
	pid     int
	start   time.Time
}

// NewCoordinator creates a coordinator. A positive timeout bounds every
// capture; sources still outstanding at the deadline are reported degraded.
func NewCoordinator(reader Reader, workers WorkerSource, timeout time.Duration, clk clock.PassiveClock, log *logger.Logger) *Coordinator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Coordinator{
		reader:  reader,
		workers: workers,
		timeout: timeout,
		clock:   clk,
		log:     log,
		pid:     os.Getpid(),
		start:   clk.Now(),
	}
}

// StartTime returns the controller start time shared by every frame
func (c *Coordinator) StartTime() time.Time { return c.start }

// fanIn counts outstanding sources down to zero. Once sealed, completions
// are discarded.
type fanIn struct {
	mu        sync.Mutex
	remaining map[string]struct{}
	degraded  []string
	done      chan struct{}
	sealed    bool
}

func (f *fanIn) complete(name string, err error, write func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sealed {
		return
	}
	if _, ok := f.remaining[name]; !ok {
		return
	}
	delete(f.remaining, name)
	if err != nil {
		f.degraded = append(f.degraded, name)
	}
	write()
	if len(f.remaining) == 0 {
		f.sealed = true
		close(f.done)
	}
}

// seal stops accepting completions and marks everything outstanding degraded
func (f *fanIn) seal() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sealed {
		f.sealed = true
		for name := range f.remaining {
			f.degraded = append(f.degraded, name)
		}
	}
	degraded := append([]string(nil), f.degraded...)
	sort.Strings(degraded)
	return degraded
}

// Capture takes snapshot number step
func (c *Coordinator) Capture(ctx context.Context, step int) (*DataFrame, error) {
	frame := &DataFrame{
		Step:        step,
		Time:        c.clock.Now(),
		StartTime:   c.start,
		WorkerIDs:   []int{},
		WorkersData: make(map[int]*WorkerRuntimeStat),
		WorkersProc: make(map[int]procstats.ProcessStat),
	}

	var workers []Worker
	if c.workers != nil {
		workers = c.workers.Workers()
	}
	for _, w := range workers {
		frame.WorkerIDs = append(frame.WorkerIDs, w.ID)
	}

	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fan := &fanIn{
		remaining: make(map[string]struct{}, 3+2*len(workers)),
		done:      make(chan struct{}),
	}
	var ops []func()
	issue := func(name string, op func(ctx context.Context) (func(), error)) {
		fan.remaining[name] = struct{}{}
		ops = append(ops, func() {
			write, err := op(cctx)
			if err != nil {
				c.log.Debug("Snapshot %d: %s degraded: %v", step, name, err)
			}
			fan.complete(name, err, write)
		})
	}

	issue(sourceCPU, func(ctx context.Context) (func(), error) {
		cpu, err := c.reader.ReadSystemCPU(ctx)
		return func() { frame.CPU = cpu }, err
	})
	issue(sourceMemory, func(ctx context.Context) (func(), error) {
		mem, err := c.reader.ReadSystemMemory(ctx)
		return func() { frame.Mem = mem }, err
	})
	issue(sourceMaster, func(ctx context.Context) (func(), error) {
		proc, err := c.reader.ReadProcess(ctx, c.pid)
		return func() { frame.MasterProc = proc }, err
	})
	for _, w := range workers {
		w := w
		issue(fmt.Sprintf("worker.%d.runtime", w.ID), func(ctx context.Context) (func(), error) {
			reply, err := w.Requester.Request(ctx)
			if err != nil {
				return func() {}, err
			}
			return func() { frame.WorkersData[w.ID] = runtimeFromReply(reply) }, nil
		})
		issue(fmt.Sprintf("worker.%d.proc", w.ID), func(ctx context.Context) (func(), error) {
			proc, err := c.reader.ReadProcess(ctx, w.PID)
			return func() { frame.WorkersProc[w.ID] = proc }, err
		})
	}

	for _, op := range ops {
		go op()
	}

	select {
	case <-fan.done:
	case <-cctx.Done():
	}
	// Sealing under the fan-in lock orders every accepted write before the
	// frame is read below.
	frame.Degraded = fan.seal()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(frame.Degraded) > 0 {
		c.log.Warning("Snapshot %d degraded: %v", step, frame.Degraded)
	}

	if err := Finalize(frame, c.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to aggregate snapshot %d: %w", step, err)
	}
	return frame, nil
}
