package procstats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
	"k8s.io/utils/clock"
)

// CPUPeriodTicks is the divisor for system CPU percentages. Deltas are expressed
// against one nominal period of this many ticks rather than the true elapsed time.
const CPUPeriodTicks = 100

// DefaultPageSize is used until ProbePageSize resolves
const DefaultPageSize = 4096

// probePageSize asks the OS for its memory page size. Variable to allow override in tests.
var probePageSize = func() (int, error) {
	return unix.Getpagesize(), nil
}

type pidSample struct {
	procTicks uint64
	wall      time.Time
}

// Reader turns raw counters into per-period statistics.
// It keeps the previous sample of every series it computes a delta for.
type Reader struct {
	source Source
	clock  clock.PassiveClock

	mu      sync.Mutex
	lastCPU []float64
	pids    map[int]pidSample

	pageSize atomic.Int64
}

// NewReader creates a reader over the given source
func NewReader(source Source, clk clock.PassiveClock) *Reader {
	if clk == nil {
		clk = clock.RealClock{}
	}
	r := &Reader{
		source: source,
		clock:  clk,
		pids:   make(map[int]pidSample),
	}
	r.pageSize.Store(DefaultPageSize)
	return r
}

// ProbePageSize queries the OS page size once. On failure the default stays in place.
func (r *Reader) ProbePageSize() error {
	size, err := probePageSize()
	if err != nil {
		return fmt.Errorf("failed to probe page size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("failed to probe page size: got %d", size)
	}
	r.pageSize.Store(int64(size))
	return nil
}

// PageSize returns the page size currently used for RSS
func (r *Reader) PageSize() int {
	return int(r.pageSize.Load())
}

// ReadSystemCPU returns per-category CPU usage since the previous call.
// The first call reports zeros.
func (r *Reader) ReadSystemCPU(ctx context.Context) (CPUStats, error) {
	raw, err := r.source.CPUTimes(ctx)
	if err != nil {
		return CPUStats{}, err
	}
	if len(raw) < len(CPUStatNames) {
		return CPUStats{}, fmt.Errorf("%w: got %d of %d", ErrShortStat, len(raw), len(CPUStatNames))
	}

	r.mu.Lock()
	diff := make([]float64, len(raw))
	if r.lastCPU != nil {
		for i := range raw {
			if i < len(r.lastCPU) {
				diff[i] = raw[i] - r.lastCPU[i]
			}
		}
	}
	r.lastCPU = raw
	r.mu.Unlock()

	pct := make([]float64, len(diff))
	for i, d := range diff {
		pct[i] = d * 100 / CPUPeriodTicks
	}
	return cpuStatsFrom(pct), nil
}

// ReadSystemMemory returns the projected memory breakdown
func (r *Reader) ReadSystemMemory(ctx context.Context) (MemStats, error) {
	raw, err := r.source.Meminfo(ctx)
	if err != nil {
		return MemStats{}, err
	}
	if len(raw) == 0 {
		return MemStats{}, ErrNoMeminfo
	}
	return ProjectMemory(raw), nil
}

// ReadProcess samples one process. CPU percent is measured against the
// previous sample of the same pid and is zero for the first one.
func (r *Reader) ReadProcess(ctx context.Context, pid int) (ProcessStat, error) {
	if pid <= 0 {
		return ProcessStat{}, fmt.Errorf("%w: %d", ErrBadPID, pid)
	}
	raw, err := r.source.ProcStat(ctx, pid)
	if err != nil {
		return ProcessStat{}, err
	}

	procTicks := raw.UTime + raw.STime
	now := r.clock.Now()

	r.mu.Lock()
	var cpuPercent float64
	if last, ok := r.pids[pid]; ok {
		wallMs := float64(now.Sub(last.wall)) / float64(time.Millisecond)
		if wallMs > 0 {
			cpuPercent = (float64(procTicks) - float64(last.procTicks)) * 1000 / wallMs
		}
	}
	r.pids[pid] = pidSample{procTicks: procTicks, wall: now}
	r.mu.Unlock()

	return ProcessStat{
		PID:        pid,
		CPUPercent: cpuPercent,
		CPUTime:    float64(procTicks) / ClockTicks,
		VMem:       float64(raw.VSize),
		RSS:        float64(raw.RSSPages) * float64(r.PageSize()),
		Threads:    float64(raw.NumThreads),
	}, nil
}

// Forget drops the delta state kept for pid
func (r *Reader) Forget(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pids, pid)
}

// Tracked returns the number of pids with delta state
func (r *Reader) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pids)
}
