package procstats

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type fakeSource struct {
	cpu     [][]float64
	meminfo map[string]float64
	procs   map[int][]RawProcStat
	err     error
}

func (f *fakeSource) CPUTimes(ctx context.Context) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	next := f.cpu[0]
	if len(f.cpu) > 1 {
		f.cpu = f.cpu[1:]
	}
	return next, nil
}

func (f *fakeSource) Meminfo(ctx context.Context) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.meminfo, nil
}

func (f *fakeSource) ProcStat(ctx context.Context, pid int) (RawProcStat, error) {
	if f.err != nil {
		return RawProcStat{}, f.err
	}
	samples, ok := f.procs[pid]
	if !ok {
		return RawProcStat{}, os.ErrNotExist
	}
	next := samples[0]
	if len(samples) > 1 {
		f.procs[pid] = samples[1:]
	}
	return next, nil
}

func TestReadSystemCPU_Delta(t *testing.T) {
	src := &fakeSource{cpu: [][]float64{
		{10, 0, 5, 85, 0, 0, 0, 0, 0},
		{20, 0, 10, 95, 0, 0, 0, 0, 0},
	}}
	r := NewReader(src, nil)

	first, err := r.ReadSystemCPU(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CPUStats{}, first, "first read has no previous sample")

	second, err := r.ReadSystemCPU(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, second.User)
	assert.Equal(t, 0.0, second.Nice)
	assert.Equal(t, 5.0, second.Sys)
	assert.Equal(t, 10.0, second.Idle)
	assert.Equal(t, 15.0, second.Busy())
}

func TestReadSystemCPU_Errors(t *testing.T) {
	r := NewReader(&fakeSource{err: ErrNoCPU}, nil)
	stats, err := r.ReadSystemCPU(context.Background())
	assert.ErrorIs(t, err, ErrNoCPU)
	assert.Equal(t, CPUStats{}, stats)

	r = NewReader(&fakeSource{cpu: [][]float64{{1, 2, 3}}}, nil)
	_, err = r.ReadSystemCPU(context.Background())
	assert.ErrorIs(t, err, ErrShortStat)
}

func TestReadSystemMemory_Projections(t *testing.T) {
	raw := map[string]float64{
		"MemTotal":    16000,
		"MemFree":     4000,
		"Buffers":     500,
		"Cached":      2500,
		"SwapCached":  100,
		"Shmem":       300,
		"Mapped":      200,
		"Slab":        150,
		"VmallocUsed": 50,
		"SwapTotal":   8000,
		"SwapFree":    6000,
	}
	r := NewReader(&fakeSource{meminfo: raw}, nil)

	m, err := r.ReadSystemMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16000.0, m.Total)
	assert.Equal(t, 4000.0, m.Free)
	assert.Equal(t, 3100.0, m.Caches)
	assert.Equal(t, 8900.0, m.Used)
	assert.Equal(t, 2000.0, m.SwapUsed)
	assert.Equal(t, 300.0, m.Shmem)
	assert.Equal(t, 50.0, m.Vmalloc)
	assert.InDelta(t, m.Total, m.Used+m.Caches+m.Free, 1e-9)
}

func TestReadSystemMemory_Empty(t *testing.T) {
	r := NewReader(&fakeSource{meminfo: map[string]float64{}}, nil)
	_, err := r.ReadSystemMemory(context.Background())
	assert.ErrorIs(t, err, ErrNoMeminfo)
}

func TestReadProcess_CPUPercentAndRSS(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Unix(1000, 0))
	src := &fakeSource{procs: map[int][]RawProcStat{
		42: {
			{UTime: 100, STime: 50, VSize: 1 << 20, RSSPages: 10, NumThreads: 4},
			{UTime: 150, STime: 100, VSize: 1 << 20, RSSPages: 20, NumThreads: 5},
		},
	}}
	r := NewReader(src, clk)

	first, err := r.ReadProcess(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.CPUPercent)
	assert.Equal(t, 1.5, first.CPUTime)
	assert.Equal(t, float64(10*DefaultPageSize), first.RSS)
	assert.Equal(t, 4.0, first.Threads)

	clk.SetTime(clk.Now().Add(2 * time.Second))
	second, err := r.ReadProcess(context.Background(), 42)
	require.NoError(t, err)
	// 100 ticks over 2000 ms -> 50% of one core
	assert.InDelta(t, 50.0, second.CPUPercent, 1e-9)
	assert.Equal(t, 42, second.PID)
	assert.Equal(t, 1, r.Tracked())

	r.Forget(42)
	assert.Equal(t, 0, r.Tracked())
}

func TestReadProcess_Missing(t *testing.T) {
	r := NewReader(&fakeSource{procs: map[int][]RawProcStat{}}, nil)
	stat, err := r.ReadProcess(context.Background(), 7)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, ProcessStat{}, stat)

	_, err = r.ReadProcess(context.Background(), 0)
	assert.ErrorIs(t, err, ErrBadPID)
}

func TestProbePageSize(t *testing.T) {
	original := probePageSize
	defer func() { probePageSize = original }()

	r := NewReader(&fakeSource{}, nil)
	assert.Equal(t, DefaultPageSize, r.PageSize())

	probePageSize = func() (int, error) { return 0, errors.New("no getconf") }
	assert.Error(t, r.ProbePageSize())
	assert.Equal(t, DefaultPageSize, r.PageSize(), "failed probe keeps the default")

	probePageSize = func() (int, error) { return 16384, nil }
	require.NoError(t, r.ProbePageSize())
	assert.Equal(t, 16384, r.PageSize())
}

func TestHostSource_Self(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs is linux only")
	}
	src, err := NewHostSource()
	require.NoError(t, err)
	r := NewReader(src, nil)
	require.NoError(t, r.ProbePageSize())

	stat, err := r.ReadProcess(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.Greater(t, stat.RSS, 0.0)
	assert.GreaterOrEqual(t, stat.Threads, 1.0)

	_, err = r.ReadSystemCPU(context.Background())
	require.NoError(t, err)
	mem, err := r.ReadSystemMemory(context.Background())
	require.NoError(t, err)
	assert.Greater(t, mem.Total, 0.0)
}
