package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolmon/internal/ipc"
	"poolmon/internal/procstats"
)

type fakeReader struct {
	procs   map[int]procstats.ProcessStat
	procErr error
	calls   atomic.Int32
}

func (f *fakeReader) ReadSystemCPU(ctx context.Context) (procstats.CPUStats, error) {
	f.calls.Add(1)
	return procstats.CPUStats{User: 10, Sys: 5, Idle: 85}, nil
}

func (f *fakeReader) ReadSystemMemory(ctx context.Context) (procstats.MemStats, error) {
	f.calls.Add(1)
	return procstats.MemStats{Total: 1000, Free: 400, Used: 500, Caches: 100}, nil
}

func (f *fakeReader) ReadProcess(ctx context.Context, pid int) (procstats.ProcessStat, error) {
	f.calls.Add(1)
	if f.procErr != nil {
		return procstats.ProcessStat{}, f.procErr
	}
	if p, ok := f.procs[pid]; ok {
		return p, nil
	}
	return procstats.ProcessStat{PID: pid, CPUPercent: 1, RSS: 100}, nil
}

type replyFunc func(ctx context.Context) (*ipc.Reply, error)

func (f replyFunc) Request(ctx context.Context) (*ipc.Reply, error) { return f(ctx) }

func answer(r ipc.Reply) replyFunc {
	return func(context.Context) (*ipc.Reply, error) { return &r, nil }
}

// counted tallies the requests issued through r
func counted(n *atomic.Int32, r replyFunc) replyFunc {
	return func(ctx context.Context) (*ipc.Reply, error) {
		n.Add(1)
		return r(ctx)
	}
}

func hung() replyFunc {
	return func(ctx context.Context) (*ipc.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type staticWorkers []Worker

func (s staticWorkers) Workers() []Worker { return s }

func TestCapture_NoWorkers(t *testing.T) {
	reader := &fakeReader{}
	c := NewCoordinator(reader, staticWorkers(nil), time.Second, nil, nil)

	frame, err := c.Capture(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, frame.Step)
	assert.Empty(t, frame.WorkerIDs)
	assert.Empty(t, frame.Degraded)
	assert.Equal(t, 10.0, frame.CPU.User)
	assert.Equal(t, 1000.0, frame.Mem.Total)
	assert.NotZero(t, frame.MasterProc.PID)
	assert.Zero(t, frame.Totals.Conns)
	assert.Zero(t, frame.Totals.CPUPercent)
	assert.Zero(t, frame.Totals.MaxT)
	assert.Equal(t, int32(3), reader.calls.Load(), "three host operations with no workers")
}

func TestCapture_FansInEveryWorker(t *testing.T) {
	reader := &fakeReader{procs: map[int]procstats.ProcessStat{
		101: {PID: 101, CPUPercent: 20, RSS: 2000},
		102: {PID: 102, CPUPercent: 30, RSS: 3000},
	}}
	var requests atomic.Int32
	workers := staticWorkers{
		{ID: 1, PID: 101, Requester: counted(&requests, answer(ipc.Reply{TimeFromLast: 50, Ticks: []float64{1, 2, 3, 4, 5}, Conns: 4, Packets: 9, Mem: ipc.MemoryUsage{HeapUsed: 10, HeapTotal: 20}}))},
		{ID: 2, PID: 102, Requester: counted(&requests, answer(ipc.Reply{TimeFromLast: 20, Ticks: []float64{10}, Conns: 6, Packets: 1, Mem: ipc.MemoryUsage{HeapUsed: 5, HeapTotal: 8}}))},
	}
	c := NewCoordinator(reader, workers, time.Second, nil, nil)

	frame, err := c.Capture(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, frame.WorkerIDs)
	assert.Equal(t, int32(3+2), reader.calls.Load(), "cpu, mem, master and one proc read per worker")
	assert.Equal(t, int32(2), requests.Load(), "one runtime request per worker")
	assert.Empty(t, frame.Degraded)

	w1 := frame.WorkersData[1]
	require.NotNil(t, w1)
	assert.Nil(t, w1.Ticks, "raw ticks are dropped after aggregation")
	assert.Equal(t, 1.0, w1.Min)
	assert.Equal(t, 3.0, w1.P50)
	assert.Equal(t, 5.0, w1.P90)
	assert.Equal(t, 5.0, w1.Max)
	assert.Equal(t, 10.0, w1.Avg)

	assert.Equal(t, frame.WorkersData[1].Conns+frame.WorkersData[2].Conns, frame.Totals.Conns)
	assert.Equal(t, int64(10), frame.Totals.Packets)
	assert.Equal(t, 50.0, frame.Totals.CPUPercent)
	assert.Equal(t, 5000.0, frame.Totals.RSS)
	assert.Equal(t, 15.0, frame.Totals.Mem.HeapUsed)
	assert.Equal(t, 28.0, frame.Totals.Mem.HeapTotal)
	assert.Equal(t, 10.0, frame.Totals.MaxT)
	assert.Equal(t, 15.0, frame.Totals.AvgT)
}

func TestCapture_DeadlineDegradesHungWorker(t *testing.T) {
	workers := staticWorkers{
		{ID: 1, PID: 101, Requester: answer(ipc.Reply{TimeFromLast: 10, Conns: 2})},
		{ID: 2, PID: 102, Requester: hung()},
	}
	c := NewCoordinator(&fakeReader{}, workers, 50*time.Millisecond, nil, nil)

	start := time.Now()
	frame, err := c.Capture(context.Background(), 3)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, []string{"worker.2.runtime"}, frame.Degraded)
	assert.Equal(t, []int{1, 2}, frame.WorkerIDs)
	require.NotNil(t, frame.WorkersData[2], "missing workers get a zero record")
	assert.Zero(t, frame.WorkersData[2].Conns)
	assert.Equal(t, int64(2), frame.Totals.Conns)
}

func TestCapture_LateCompletionDiscarded(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	late := replyFunc(func(ctx context.Context) (*ipc.Reply, error) {
		defer close(finished)
		<-release
		return &ipc.Reply{Conns: 99}, nil
	})
	c := NewCoordinator(&fakeReader{}, staticWorkers{{ID: 1, PID: 101, Requester: late}}, 20*time.Millisecond, nil, nil)

	frame, err := c.Capture(context.Background(), 1)
	require.NoError(t, err)
	close(release)
	<-finished
	time.Sleep(10 * time.Millisecond)

	assert.Contains(t, frame.Degraded, "worker.1.runtime")
	assert.Zero(t, frame.WorkersData[1].Conns)
	assert.Zero(t, frame.Totals.Conns)
}

func TestCapture_ReadFailureIsDegradedNotFatal(t *testing.T) {
	reader := &fakeReader{procErr: errors.New("no such process")}
	c := NewCoordinator(reader, staticWorkers{{ID: 4, PID: 104, Requester: answer(ipc.Reply{Conns: 1})}}, time.Second, nil, nil)

	frame, err := c.Capture(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"master", "worker.4.proc"}, frame.Degraded)
	assert.Equal(t, int64(1), frame.Totals.Conns)
}

func TestCapture_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCoordinator(&fakeReader{}, staticWorkers{{ID: 1, PID: 101, Requester: hung()}}, time.Second, nil, nil)

	_, err := c.Capture(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFinalize_GenerationTime(t *testing.T) {
	at := time.Unix(100, 0)
	frame := &DataFrame{Time: at, WorkerIDs: []int{}, WorkersData: map[int]*WorkerRuntimeStat{}}
	require.NoError(t, Finalize(frame, at.Add(15*time.Millisecond)))
	assert.Equal(t, 15*time.Millisecond, frame.GenerationTime)
}
