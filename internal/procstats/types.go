// Package procstats reads OS counters for the whole system and for single processes.
package procstats

// CPUStatNames lists the CPU categories in the order the kernel reports them.
var CPUStatNames = []string{"user", "nice", "sys", "idle", "iowait", "irq", "softirq", "steal", "guest"}

// CPUStats holds per-category CPU usage as a percentage of one nominal period.
type CPUStats struct {
	User    float64 `json:"user" cbor:"user"`
	Nice    float64 `json:"nice" cbor:"nice"`
	Sys     float64 `json:"sys" cbor:"sys"`
	Idle    float64 `json:"idle" cbor:"idle"`
	Iowait  float64 `json:"iowait" cbor:"iowait"`
	Irq     float64 `json:"irq" cbor:"irq"`
	Softirq float64 `json:"softirq" cbor:"softirq"`
	Steal   float64 `json:"steal" cbor:"steal"`
	Guest   float64 `json:"guest" cbor:"guest"`
}

// Busy is the sum of every non-idle category.
func (c CPUStats) Busy() float64 {
	return c.User + c.Nice + c.Sys + c.Iowait + c.Irq + c.Softirq + c.Steal
}

func cpuStatsFrom(values []float64) CPUStats {
	get := func(i int) float64 {
		if i < len(values) {
			return values[i]
		}
		return 0
	}
	return CPUStats{
		User:    get(0),
		Nice:    get(1),
		Sys:     get(2),
		Idle:    get(3),
		Iowait:  get(4),
		Irq:     get(5),
		Softirq: get(6),
		Steal:   get(7),
		Guest:   get(8),
	}
}

// MemStats is the projected system memory breakdown, in bytes.
type MemStats struct {
	Total     float64 `json:"total" cbor:"total"`
	Free      float64 `json:"free" cbor:"free"`
	Used      float64 `json:"used" cbor:"used"`
	Caches    float64 `json:"caches" cbor:"caches"`
	Shmem     float64 `json:"shmem" cbor:"shmem"`
	Mapped    float64 `json:"mapped" cbor:"mapped"`
	Slab      float64 `json:"slab" cbor:"slab"`
	Vmalloc   float64 `json:"vmalloc" cbor:"vmalloc"`
	SwapTotal float64 `json:"swapTotal" cbor:"swapTotal"`
	SwapUsed  float64 `json:"swapUsed" cbor:"swapUsed"`
}

// ProcessStat contains the sampled counters of a single process
type ProcessStat struct {
	PID        int     `json:"pid" cbor:"pid"`
	CPUPercent float64 `json:"cpuPercent" cbor:"cpuPercent"` // percent of one core since the previous sample
	CPUTime    float64 `json:"cpuTime" cbor:"cpuTime"`       // seconds
	VMem       float64 `json:"vmem" cbor:"vmem"`             // bytes
	RSS        float64 `json:"rss" cbor:"rss"`               // bytes
	Threads    float64 `json:"threads" cbor:"threads"`
}

// RawProcStat is the subset of /proc/<pid>/stat the reader needs
type RawProcStat struct {
	UTime      uint64 // clock ticks
	STime      uint64 // clock ticks
	VSize      uint64 // bytes
	RSSPages   uint64
	NumThreads int
}
