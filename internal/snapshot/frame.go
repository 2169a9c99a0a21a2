// Package snapshot captures one consistent DataFrame from the host, the
// controller process and every worker.
package snapshot

import (
	"fmt"
	"time"

	"poolmon/internal/ipc"
	"poolmon/internal/procstats"
	"poolmon/internal/stats"
)

// WorkerRuntimeStat is a worker's reply for one frame. Ticks is dropped once
// the tick statistics are derived.
type WorkerRuntimeStat struct {
	stats.TickStats
	TimeFromLast float64         `cbor:"timeFromLast" json:"timeFromLast"`
	Ticks        []float64       `cbor:"ticks,omitempty" json:"ticks,omitempty"`
	Mem          ipc.MemoryUsage `cbor:"mem" json:"mem"`
	Conns        int64           `cbor:"conns" json:"conns"`
	Packets      int64           `cbor:"packets" json:"packets"`
}

func runtimeFromReply(r *ipc.Reply) *WorkerRuntimeStat {
	return &WorkerRuntimeStat{
		TimeFromLast: r.TimeFromLast,
		Ticks:        r.Ticks,
		Mem:          r.Mem,
		Conns:        r.Conns,
		Packets:      r.Packets,
	}
}

// DataFrame is one snapshot
type DataFrame struct {
	Step           int
	Time           time.Time
	StartTime      time.Time
	WorkerIDs      []int
	CPU            procstats.CPUStats
	Mem            procstats.MemStats
	MasterProc     procstats.ProcessStat
	WorkersData    map[int]*WorkerRuntimeStat
	WorkersProc    map[int]procstats.ProcessStat
	Totals         stats.Totals
	GenerationTime time.Duration
	Degraded       []string // sources that failed or missed the cycle deadline
}

// Elapsed is the time between controller start and capture
func (f *DataFrame) Elapsed() time.Duration {
	return f.Time.Sub(f.StartTime)
}

// Finalize derives tick statistics for every worker, drops the raw tick
// buffers and rolls worker records up into Totals
func Finalize(frame *DataFrame, now time.Time) error {
	frame.GenerationTime = now.Sub(frame.Time)

	acc := stats.NewAccumulator()
	for _, id := range frame.WorkerIDs {
		data := frame.WorkersData[id]
		if data == nil {
			data = &WorkerRuntimeStat{}
			frame.WorkersData[id] = data
		}
		data.TickStats = stats.Summarize(data.Ticks, data.TimeFromLast)
		data.Ticks = nil

		if err := acc.Add(data); err != nil {
			return fmt.Errorf("worker %d runtime: %w", id, err)
		}
		if err := acc.Add(frame.WorkersProc[id]); err != nil {
			return fmt.Errorf("worker %d process: %w", id, err)
		}
	}
	frame.Totals = acc.Totals()
	return nil
}
