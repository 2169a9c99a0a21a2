package stats

// Reducer collapses one field's series into a scalar
type Reducer func(values []float64) float64

// Sum adds every value
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Avg returns the arithmetic mean, 0 for an empty series
func Avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Max returns the largest value, never less than 0
func Max(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// MemTotals sums worker heap usage
type MemTotals struct {
	HeapUsed   float64 `json:"heapUsed"`
	HeapTotal  float64 `json:"heapTotal"`
	Sys        float64 `json:"sys"`
	StackInuse float64 `json:"stackInuse"`
}

// Totals holds cumulative metrics across all workers of a frame
type Totals struct {
	CPUPercent float64   `json:"cpuPercent"`
	RSS        float64   `json:"rss"`
	Mem        MemTotals `json:"mem"`
	Conns      int64     `json:"conns"`
	Packets    int64     `json:"packets"`
	AvgT       float64   `json:"avgt"`
	P90T       float64   `json:"p90t"`
	MaxT       float64   `json:"maxt"`
}

type totalField struct {
	path   string
	reduce Reducer
	set    func(t *Totals, v float64)
}

// totalFields declares the reducer of every cumulative metric. Paths that are
// accumulated but not listed here (pid, threads, ...) are not rolled up.
var totalFields = []totalField{
	{"cpuPercent", Sum, func(t *Totals, v float64) { t.CPUPercent = v }},
	{"rss", Sum, func(t *Totals, v float64) { t.RSS = v }},
	{"mem.heapUsed", Sum, func(t *Totals, v float64) { t.Mem.HeapUsed = v }},
	{"mem.heapTotal", Sum, func(t *Totals, v float64) { t.Mem.HeapTotal = v }},
	{"mem.sys", Sum, func(t *Totals, v float64) { t.Mem.Sys = v }},
	{"mem.stackInuse", Sum, func(t *Totals, v float64) { t.Mem.StackInuse = v }},
	{"conns", Sum, func(t *Totals, v float64) { t.Conns = int64(v) }},
	{"packets", Sum, func(t *Totals, v float64) { t.Packets = int64(v) }},
	{"avgt", Avg, func(t *Totals, v float64) { t.AvgT = v }},
	{"p90t", Avg, func(t *Totals, v float64) { t.P90T = v }},
	{"maxt", Max, func(t *Totals, v float64) { t.MaxT = v }},
}

// Accumulator collects every numeric leaf of the records added to it into a
// series keyed by dotted field path
type Accumulator struct {
	series map[string][]float64
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{series: make(map[string][]float64)}
}

// Add folds rec into the accumulator. A field that is neither numeric nor a
// nested record fails the whole call with ErrUnknownShape and leaves the
// accumulator untouched.
func (a *Accumulator) Add(rec interface{}) error {
	tree, err := TreeOf(rec)
	if err != nil {
		return err
	}
	staged := make(map[string][]float64)
	if err := tree.Walk(func(path string, v float64) {
		staged[path] = append(staged[path], v)
	}); err != nil {
		return err
	}
	for path, values := range staged {
		a.series[path] = append(a.series[path], values...)
	}
	return nil
}

// Series returns the values collected under path
func (a *Accumulator) Series(path string) []float64 {
	return a.series[path]
}

// Totals reduces the collected series. Missing paths reduce to 0.
func (a *Accumulator) Totals() Totals {
	var t Totals
	for _, f := range totalFields {
		f.set(&t, f.reduce(a.series[f.path]))
	}
	return t
}
