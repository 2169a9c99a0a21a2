package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"

	constants "poolmon/config"
)

// Info describes a running process
type Info struct {
	PID        int32
	Cmdline    string
	CPUPercent float64
	RSS        uint64
	Threads    int32
}

// Status is the controller and the workers it forked
type Status struct {
	Controller Info
	Workers    []Info
}

// IsControllerProcess verifies pid runs poolmon rather than a program that
// reused the PID
func IsControllerProcess(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	cmdline, err := proc.Cmdline()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(cmdline), constants.SERVICE_NAME)
}

// IsRunning reports whether a controller holds the PID file
func IsRunning() bool {
	running, _, err := Check()
	return err == nil && running
}

// Inspect reads the controller at pid and its worker children
func Inspect(ctx context.Context, pid int) (*Status, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	status := &Status{Controller: describe(ctx, proc)}

	children, err := proc.ChildrenWithContext(ctx)
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		return nil, fmt.Errorf("failed to list workers of %d: %w", pid, err)
	}
	for _, child := range children {
		status.Workers = append(status.Workers, describe(ctx, child))
	}
	sort.Slice(status.Workers, func(i, j int) bool { return status.Workers[i].PID < status.Workers[j].PID })
	return status, nil
}

func describe(ctx context.Context, proc *process.Process) Info {
	info := Info{PID: proc.Pid}
	info.Cmdline, _ = proc.CmdlineWithContext(ctx)
	info.CPUPercent, _ = proc.CPUPercentWithContext(ctx)
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		info.RSS = mem.RSS
	}
	info.Threads, _ = proc.NumThreadsWithContext(ctx)
	return info
}

// Stop asks the running controller to shut down
func Stop() error {
	running, pid, err := Check()
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("poolmon is not running")
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}
