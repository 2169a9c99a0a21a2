package procstats

import (
	"context"
	"fmt"
	"math"

	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v4/cpu"
)

// ClockTicks is USER_HZ, the unit of the kernel's cumulative CPU counters.
const ClockTicks = 100

// Source provides raw cumulative OS counters
type Source interface {
	// CPUTimes returns system-wide ticks in CPUStatNames order.
	CPUTimes(ctx context.Context) ([]float64, error)
	// Meminfo returns memory fields in bytes keyed by their /proc/meminfo names.
	Meminfo(ctx context.Context) (map[string]float64, error)
	// ProcStat returns the raw counters of one process.
	ProcStat(ctx context.Context, pid int) (RawProcStat, error)
}

// HostSource reads the counters of the machine it runs on
type HostSource struct {
	fs procfs.FS
}

// NewHostSource opens the default /proc mount
func NewHostSource() (*HostSource, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &HostSource{fs: fs}, nil
}

func toTicks(seconds float64) float64 {
	return math.Round(seconds * ClockTicks)
}

// CPUTimes implements Source
func (h *HostSource) CPUTimes(ctx context.Context) ([]float64, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU times: %w", err)
	}
	if len(times) == 0 {
		return nil, ErrNoCPU
	}
	t := times[0]
	return []float64{
		toTicks(t.User),
		toTicks(t.Nice),
		toTicks(t.System),
		toTicks(t.Idle),
		toTicks(t.Iowait),
		toTicks(t.Irq),
		toTicks(t.Softirq),
		toTicks(t.Steal),
		toTicks(t.Guest),
	}, nil
}

// Meminfo implements Source. Values are the raw /proc/meminfo fields; a field
// the kernel does not report is left out.
func (h *HostSource) Meminfo(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mi, err := h.fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read meminfo: %w", err)
	}
	if mi.MemTotalBytes == nil || *mi.MemTotalBytes == 0 {
		return nil, ErrNoMeminfo
	}

	out := make(map[string]float64, 11)
	for name, v := range map[string]*uint64{
		"MemTotal":    mi.MemTotalBytes,
		"MemFree":     mi.MemFreeBytes,
		"Buffers":     mi.BuffersBytes,
		"Cached":      mi.CachedBytes,
		"SwapCached":  mi.SwapCachedBytes,
		"Shmem":       mi.ShmemBytes,
		"Mapped":      mi.MappedBytes,
		"Slab":        mi.SlabBytes,
		"VmallocUsed": mi.VmallocUsedBytes,
		"SwapTotal":   mi.SwapTotalBytes,
		"SwapFree":    mi.SwapFreeBytes,
	} {
		if v != nil {
			out[name] = float64(*v)
		}
	}
	return out, nil
}

// ProcStat implements Source
func (h *HostSource) ProcStat(ctx context.Context, pid int) (RawProcStat, error) {
	if err := ctx.Err(); err != nil {
		return RawProcStat{}, err
	}
	p, err := h.fs.Proc(pid)
	if err != nil {
		return RawProcStat{}, fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	st, err := p.Stat()
	if err != nil {
		return RawProcStat{}, fmt.Errorf("failed to read stat of process %d: %w", pid, err)
	}
	rss := st.RSS
	if rss < 0 {
		rss = 0
	}
	return RawProcStat{
		UTime:      uint64(st.UTime),
		STime:      uint64(st.STime),
		VSize:      uint64(st.VSize),
		RSSPages:   uint64(rss),
		NumThreads: st.NumThreads,
	}, nil
}
