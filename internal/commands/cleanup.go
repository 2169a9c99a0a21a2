package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"poolmon/internal/process"
	"poolmon/internal/ui"
)

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running controller and its workers",
		Long: `Send SIGTERM to the controller recorded in the PID file. The controller
closes the worker channels, writes its last frame and exits.

Examples:
  poolmon stop`,
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintSection("Stopping Controller")
			if err := process.Stop(); err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to stop: %v", err))
				ui.PrintSectionEnd()
				return
			}

			deadline := time.Now().Add(10 * time.Second)
			for process.IsRunning() && time.Now().Before(deadline) {
				time.Sleep(200 * time.Millisecond)
			}
			if process.IsRunning() {
				ui.PrintStatus("warning", "Controller is still shutting down")
			} else {
				ui.PrintStatus("success", "Controller stopped")
			}
			ui.PrintSectionEnd()
		},
	}
}

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove a stale PID file",
		Long: `Remove the PID file left behind by a controller that was killed
without a chance to release it. A live controller is never touched.

Examples:
  poolmon cleanup`,
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintSection("Cleaning Up")
			if process.IsRunning() {
				ui.PrintStatus("warning", "Controller is running, nothing to clean up")
				ui.PrintSectionEnd()
				return
			}
			if err := process.CleanupStale(); err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Cleanup failed: %v", err))
				ui.PrintSectionEnd()
				return
			}
			ui.PrintStatus("success", fmt.Sprintf("Removed stale PID file %s", process.PIDFilePath()))
			ui.PrintSectionEnd()
		},
	}
}
