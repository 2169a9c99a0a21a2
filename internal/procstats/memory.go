package procstats

// MemField names one output field of MemStats
type MemField int

const (
	MemTotal MemField = iota
	MemFree
	MemUsed
	MemCaches
	MemShmem
	MemMapped
	MemSlab
	MemVmalloc
	MemSwapTotal
	MemSwapUsed
)

// memProjection computes one output field from the raw meminfo map (bytes keyed by kernel names)
type memProjection struct {
	field   MemField
	compute func(m map[string]float64) float64
}

func alias(name string) func(map[string]float64) float64 {
	return func(m map[string]float64) float64 { return m[name] }
}

func caches(m map[string]float64) float64 {
	return m["Buffers"] + m["Cached"] + m["SwapCached"]
}

// memProjections is the full table of MemStats fields.
// See /proc/meminfo documentation: http://lwn.net/Articles/28345/
var memProjections = []memProjection{
	{MemTotal, alias("MemTotal")},
	{MemFree, alias("MemFree")},
	{MemUsed, func(m map[string]float64) float64 { return m["MemTotal"] - m["MemFree"] - caches(m) }},
	{MemCaches, caches},
	{MemShmem, alias("Shmem")},
	{MemMapped, alias("Mapped")},
	{MemSlab, alias("Slab")},
	{MemVmalloc, alias("VmallocUsed")},
	{MemSwapTotal, alias("SwapTotal")},
	{MemSwapUsed, func(m map[string]float64) float64 { return m["SwapTotal"] - m["SwapFree"] }},
}

func (s *MemStats) set(field MemField, v float64) {
	switch field {
	case MemTotal:
		s.Total = v
	case MemFree:
		s.Free = v
	case MemUsed:
		s.Used = v
	case MemCaches:
		s.Caches = v
	case MemShmem:
		s.Shmem = v
	case MemMapped:
		s.Mapped = v
	case MemSlab:
		s.Slab = v
	case MemVmalloc:
		s.Vmalloc = v
	case MemSwapTotal:
		s.SwapTotal = v
	case MemSwapUsed:
		s.SwapUsed = v
	}
}

// ProjectMemory applies every projection to a raw meminfo map
func ProjectMemory(raw map[string]float64) MemStats {
	var s MemStats
	for _, p := range memProjections {
		s.set(p.field, p.compute(raw))
	}
	return s
}
