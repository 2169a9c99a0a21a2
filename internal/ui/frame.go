// Package ui renders snapshots: a full-screen terminal view, plain text
// redraws, or nothing at all.
package ui

import (
	"fmt"
	"strings"
	"time"

	"poolmon/internal/procstats"
	"poolmon/internal/snapshot"
	"poolmon/internal/stats"
	"poolmon/pkg/utils"
)

// LogStatus describes the frame log shown in the footer
type LogStatus interface {
	Path() string
	Size() (int64, error)
}

// FrameView is a snapshot formatted as text lines
type FrameView struct {
	Header   []string
	Master   string
	Workers  []string
	Total    string
	Degraded string
	Footer   string
}

// Lines returns the view in display order
func (v FrameView) Lines() []string {
	lines := append([]string{}, v.Header...)
	lines = append(lines, "", v.Master)
	lines = append(lines, v.Workers...)
	lines = append(lines, "", v.Total)
	if v.Degraded != "" {
		lines = append(lines, v.Degraded)
	}
	if v.Footer != "" {
		lines = append(lines, "", v.Footer)
	}
	return lines
}

// String joins the view lines
func (v FrameView) String() string {
	return strings.Join(v.Lines(), "\n") + "\n"
}

// FormatFrame lays out frame the way every renderer shows it
func FormatFrame(frame *snapshot.DataFrame, log LogStatus) FrameView {
	v := FrameView{
		Header: []string{
			fmt.Sprintf("Elapsed: %s; %s", utils.FormatElapsed(frame.Elapsed()), frame.Time.Format(time.RFC1123)),
			fmt.Sprintf("Cpu: %s%% user, %s%% sys, %s%% idle (percent of single core)",
				utils.Fixed(frame.CPU.User, 4, 1), utils.Fixed(frame.CPU.Sys, 4, 1), utils.Fixed(frame.CPU.Idle, 4, 1)),
			fmt.Sprintf("Mem: %s Mb used, %s Mb free, %s Mb buf+cache",
				utils.FixedMiB(frame.Mem.Used, 0, 1), utils.FixedMiB(frame.Mem.Free, 0, 1), utils.FixedMiB(frame.Mem.Caches, 0, 1)),
		},
		Master: "Master" + processLine(frame.MasterProc),
	}

	for _, id := range frame.WorkerIDs {
		line := "Worker" + processLine(frame.WorkersProc[id])
		if data := frame.WorkersData[id]; data != nil {
			line += "," + runtimeLine(data.Conns, data.Mem.HeapUsed, data.Mem.HeapTotal, data.TickStats)
		}
		v.Workers = append(v.Workers, line)
	}

	t := frame.Totals
	v.Total = "Total:         " +
		utils.Fixed(t.CPUPercent, 4, 1) + "% cpu," + utils.FixedMiB(t.RSS, 4, 0) + "Mb," +
		runtimeLine(t.Conns, uint64(t.Mem.HeapUsed), uint64(t.Mem.HeapTotal), stats.TickStats{Avg: t.AvgT, P90: t.P90T, Max: t.MaxT})

	if len(frame.Degraded) > 0 {
		v.Degraded = "Degraded: " + strings.Join(frame.Degraded, ", ")
	}
	if log != nil && log.Path() != "" {
		size, _ := log.Size()
		v.Footer = fmt.Sprintf("Logging to '%s' (%s). Press Ctrl-C to exit.", log.Path(), utils.FormatBytes(size))
	}
	return v
}

func processLine(p procstats.ProcessStat) string {
	prefix := ""
	if p.PID != 0 {
		prefix = "[" + utils.Pad(fmt.Sprint(p.PID), 5) + "]: "
	}
	return prefix + utils.Fixed(p.CPUPercent, 4, 1) + "% cpu," + utils.FixedMiB(p.RSS, 4, 0) + "Mb"
}

func runtimeLine(conns int64, heapUsed, heapTotal uint64, ticks stats.TickStats) string {
	return utils.Pad(fmt.Sprint(conns), 6) + " conns, " +
		utils.FixedMiB(float64(heapUsed), 0, 1) + "/" + utils.FixedMiB(float64(heapTotal), 0, 1) + "Mb heap, " +
		utils.Fixed(ticks.Avg, 2, 0) + "/" + utils.Fixed(ticks.P90, 2, 0) + "/" + utils.Fixed(ticks.Max, 2, 0) + "ms ticks"
}
