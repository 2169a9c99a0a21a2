package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"poolmon/internal/config"
	"poolmon/internal/process"
	"poolmon/internal/ui"
	"poolmon/pkg/utils"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running controller and its workers",
		Long: `Display the state of a running controller:
  • Controller process (PID, CPU, memory)
  • Every worker it forked
  • Effective configuration

Examples:
  poolmon status`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig()
			if err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to load configuration: %v", err))
				return
			}

			ui.PrintSection("Configuration")
			ui.PrintKeyValue("Workers", fmt.Sprintf("%d", cfg.Workers))
			ui.PrintKeyValue("Refresh", cfg.RefreshInterval.String())
			ui.PrintKeyValue("Cycle timeout", cfg.CycleTimeout.String())
			ui.PrintKeyValue("Worker port", fmt.Sprintf("%d", cfg.Worker.Port))
			ui.PrintKeyValue("Frame log dir", cfg.LogDir)
			ui.PrintSectionEnd()

			ui.PrintSection("Controller")
			running, pid, err := process.Check()
			if err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to read PID file: %v", err))
				ui.PrintSectionEnd()
				return
			}
			if !running {
				ui.PrintStatus("warning", "Controller is not running")
				ui.PrintSectionEnd()
				return
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			status, err := process.Inspect(ctx, pid)
			if err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to inspect controller: %v", err))
				ui.PrintSectionEnd()
				return
			}
			ui.PrintStatus("success", fmt.Sprintf("Controller is running (PID %d)", pid))
			printProcess(status.Controller)
			ui.PrintSectionEnd()

			ui.PrintSection(fmt.Sprintf("Workers (%d)", len(status.Workers)))
			if len(status.Workers) == 0 {
				ui.PrintStatus("warning", "No workers alive")
			}
			for _, w := range status.Workers {
				ui.PrintKeyValue(fmt.Sprintf("PID %d", w.PID),
					fmt.Sprintf("%s CPU, %s RSS, %d threads", utils.FormatPercentage(w.CPUPercent), utils.FormatBytes(int64(w.RSS)), w.Threads))
			}
			ui.PrintSectionEnd()
		},
	}
}

func printProcess(info process.Info) {
	ui.PrintKeyValue("Command", utils.TruncateString(info.Cmdline, 48))
	ui.PrintKeyValue("CPU", utils.FormatPercentage(info.CPUPercent))
	ui.PrintKeyValue("RSS", utils.FormatBytes(int64(info.RSS)))
	ui.PrintKeyValue("Threads", fmt.Sprintf("%d", info.Threads))
}
