package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heap struct {
	HeapUsed  uint64 `cbor:"heapUsed"`
	HeapTotal uint64 `cbor:"heapTotal"`
}

type runtimeRecord struct {
	TickStats
	TimeFromLast float64 `cbor:"timeFromLast"`
	Mem          heap    `cbor:"mem"`
	Conns        int64   `cbor:"conns"`
	Packets      int64   `cbor:"packets"`
}

type procRecord struct {
	PID        int     `cbor:"pid"`
	CPUPercent float64 `cbor:"cpuPercent"`
	RSS        float64 `cbor:"rss"`
}

func TestTreeOf_NestedRecord(t *testing.T) {
	tree, err := TreeOf(runtimeRecord{Mem: heap{HeapUsed: 4}, Conns: 2})
	require.NoError(t, err)
	assert.Equal(t, KindNode, tree.Kind)
	require.Contains(t, tree.Children, "mem")
	assert.Equal(t, KindNode, tree.Children["mem"].Kind)
	assert.Equal(t, 4.0, tree.Children["mem"].Children["heapUsed"].Value)
	assert.Equal(t, 2.0, tree.Children["conns"].Value)
	assert.Contains(t, tree.Children, "p90t", "embedded fields are flattened")
}

func TestTreeOf_UnknownShape(t *testing.T) {
	type labelled struct {
		Name string `cbor:"name"`
	}
	_, err := TreeOf(labelled{Name: "w1"})
	assert.ErrorIs(t, err, ErrUnknownShape)

	type listed struct {
		Ticks []float64 `cbor:"ticks"`
	}
	_, err = TreeOf(listed{Ticks: []float64{1}})
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestTree_WalkRejectsUnknownTag(t *testing.T) {
	tree := &Tree{Kind: KindNode, Children: map[string]*Tree{"x": {Kind: 9}}}
	err := tree.Walk(func(string, float64) {})
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestAccumulator_Totals(t *testing.T) {
	acc := NewAccumulator()
	workers := []struct {
		rt   runtimeRecord
		proc procRecord
	}{
		{
			rt:   runtimeRecord{TickStats: TickStats{Avg: 2, P90: 4, Max: 9}, Mem: heap{HeapUsed: 10, HeapTotal: 20}, Conns: 3, Packets: 7},
			proc: procRecord{PID: 100, CPUPercent: 12.5, RSS: 1000},
		},
		{
			rt:   runtimeRecord{TickStats: TickStats{Avg: 4, P90: 8, Max: 6}, Mem: heap{HeapUsed: 30, HeapTotal: 40}, Conns: 5, Packets: 1},
			proc: procRecord{PID: 101, CPUPercent: 7.5, RSS: 3000},
		},
	}
	for _, w := range workers {
		require.NoError(t, acc.Add(w.rt))
		require.NoError(t, acc.Add(w.proc))
	}

	totals := acc.Totals()
	assert.Equal(t, 20.0, totals.CPUPercent)
	assert.Equal(t, 4000.0, totals.RSS)
	assert.Equal(t, 40.0, totals.Mem.HeapUsed)
	assert.Equal(t, 60.0, totals.Mem.HeapTotal)
	assert.Equal(t, int64(8), totals.Conns)
	assert.Equal(t, int64(8), totals.Packets)
	assert.Equal(t, 3.0, totals.AvgT)
	assert.Equal(t, 6.0, totals.P90T)
	assert.Equal(t, 9.0, totals.MaxT)
	assert.Equal(t, []float64{100, 101}, acc.Series("pid"))
}

func TestAccumulator_EmptyTotalsAreZero(t *testing.T) {
	assert.Equal(t, Totals{}, NewAccumulator().Totals())
}

func TestAccumulator_FailedAddLeavesSeriesUntouched(t *testing.T) {
	type mixed struct {
		Conns int64  `cbor:"conns"`
		Name  string `cbor:"name"`
	}
	acc := NewAccumulator()
	assert.ErrorIs(t, acc.Add(mixed{Conns: 4, Name: "x"}), ErrUnknownShape)
	assert.Empty(t, acc.Series("conns"))
}

func TestReducers(t *testing.T) {
	assert.Equal(t, 0.0, Sum(nil))
	assert.Equal(t, 0.0, Avg(nil))
	assert.Equal(t, 0.0, Max([]float64{-3, -1}), "max starts from zero")
	assert.Equal(t, 6.0, Sum([]float64{1, 2, 3}))
	assert.Equal(t, 2.0, Avg([]float64{1, 2, 3}))
	assert.Equal(t, 3.0, Max([]float64{1, 3, 2}))
}
