package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "poolmon/config"
	"poolmon/internal/ipc"
	"poolmon/internal/procstats"
	"poolmon/internal/snapshot"
	"poolmon/internal/stats"
)

const mib = 1 << 20

type fakeLog struct{}

func (fakeLog) Path() string         { return "log2024-01-01T00-00-00.csv" }
func (fakeLog) Size() (int64, error) { return 2048, nil }

func sampleFrame() *snapshot.DataFrame {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &snapshot.DataFrame{
		Step:       3,
		Time:       start.Add(65 * time.Second),
		StartTime:  start,
		WorkerIDs:  []int{1, 2},
		CPU:        procstats.CPUStats{User: 12.5, Sys: 2.5, Idle: 85},
		Mem:        procstats.MemStats{Used: 100 * mib, Free: 50 * mib, Caches: 25 * mib},
		MasterProc: procstats.ProcessStat{PID: 42, CPUPercent: 1.5, RSS: 10 * mib},
		WorkersData: map[int]*snapshot.WorkerRuntimeStat{
			1: {Conns: 3, Mem: ipc.MemoryUsage{HeapUsed: 2 * mib, HeapTotal: 4 * mib}, TickStats: stats.TickStats{Avg: 10, P90: 11, Max: 13}},
		},
		WorkersProc: map[int]procstats.ProcessStat{
			1: {PID: 43, CPUPercent: 20, RSS: 30 * mib},
			2: {PID: 44},
		},
		Totals: stats.Totals{CPUPercent: 20, RSS: 30 * mib, Conns: 3, AvgT: 10, P90T: 11, MaxT: 13},
	}
}

func TestFormatFrame_Layout(t *testing.T) {
	v := FormatFrame(sampleFrame(), fakeLog{})

	require.Len(t, v.Header, 3)
	assert.True(t, strings.HasPrefix(v.Header[0], "Elapsed: 00:01:05; "))
	assert.Equal(t, "Cpu: 12.5% user,  2.5% sys, 85.0% idle (percent of single core)", v.Header[1])
	assert.Equal(t, "Mem: 100.0 Mb used, 50.0 Mb free, 25.0 Mb buf+cache", v.Header[2])
	assert.Equal(t, "Master[   42]:  1.5% cpu,  10Mb", v.Master)

	require.Len(t, v.Workers, 2, "one line per worker")
	assert.Equal(t, "Worker[   43]: 20.0% cpu,  30Mb,     3 conns, 2.0/4.0Mb heap, 10/11/13ms ticks", v.Workers[0])
	assert.Equal(t, "Worker[   44]:  0.0% cpu,   0Mb", v.Workers[1], "missing runtime data shows process stats only")

	assert.True(t, strings.HasPrefix(v.Total, "Total:         20.0% cpu,  30Mb,     3 conns"))
	assert.Empty(t, v.Degraded)
	assert.Equal(t, "Logging to 'log2024-01-01T00-00-00.csv' (2.0 KiB). Press Ctrl-C to exit.", v.Footer)
}

func TestFormatFrame_Degraded(t *testing.T) {
	f := sampleFrame()
	f.Degraded = []string{"cpu", "worker.2.runtime"}
	v := FormatFrame(f, nil)
	assert.Equal(t, "Degraded: cpu, worker.2.runtime", v.Degraded)
	assert.Empty(t, v.Footer)
	assert.Contains(t, v.Lines(), v.Degraded)
}

func TestPlain_ClearsAndRedraws(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(constants.UI_MODE_PLAIN, &buf, nil, nil)
	require.NoError(t, err)

	r.Render(sampleFrame())
	r.Render(sampleFrame())
	assert.Equal(t, 2, strings.Count(buf.String(), clearScreen))
	assert.True(t, strings.HasPrefix(buf.String(), clearScreen+"Elapsed: "))
	assert.NoError(t, r.Close())
}

func TestNew_Modes(t *testing.T) {
	r, err := New(constants.UI_MODE_NONE, nil, nil, nil)
	require.NoError(t, err)
	r.Render(sampleFrame())

	_, err = New("fancy", nil, nil, nil)
	assert.Error(t, err)
}

func TestScreenModel_FramesAndQuit(t *testing.T) {
	quit := false
	m := newScreenModel(func() { quit = true })
	assert.Contains(t, m.View(), "Waiting for the first snapshot")

	next, _ := m.Update(frameMsg{view: FormatFrame(sampleFrame(), fakeLog{})})
	m = next.(screenModel)
	assert.Equal(t, 1, m.step)
	view := m.View()
	assert.Contains(t, view, "Master[   42]")
	assert.Contains(t, view, "Press q to exit.")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(screenModel)
	assert.True(t, quit)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
