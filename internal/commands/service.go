package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"poolmon/internal/process"
	"poolmon/internal/service"
	"poolmon/internal/ui"
)

// NewServiceCmd creates the service command with subcommands
func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage poolmon as a system service",
		Long: `Manage poolmon as a system service (systemd on Linux, launchd on macOS).

The installed service runs 'poolmon run --ui none' so snapshots are only
written to the CSV log and the optional metrics exporters.

Examples:
  poolmon service install -- --workers 4   # Install with extra run flags
  poolmon service start                    # Start the service
  poolmon service stop                     # Stop the service
  poolmon service status                   # Check service status
  poolmon service remove                   # Remove the service`,
	}

	cmd.AddCommand(newServiceInstallCmd())
	cmd.AddCommand(newServiceActionCmd("remove", "Remove the poolmon system service", "Removing Service", func(svc *service.Service) (string, error) {
		svc.Stop()
		return svc.Remove()
	}))
	cmd.AddCommand(newServiceActionCmd("start", "Start the poolmon service", "Starting Service", (*service.Service).Start))
	cmd.AddCommand(newServiceActionCmd("stop", "Stop the poolmon service", "Stopping Service", (*service.Service).Stop))
	cmd.AddCommand(newServiceStatusCmd())
	cmd.AddCommand(newServiceActionCmd("restart", "Restart the poolmon service", "Restarting Service", func(svc *service.Service) (string, error) {
		if _, err := svc.Stop(); err != nil {
			ui.PrintStatus("warning", fmt.Sprintf("Stop: %v", err))
		}
		return svc.Start()
	}))

	return cmd
}

func openService() *service.Service {
	svc, err := service.New()
	if err != nil {
		ui.PrintStatus("error", fmt.Sprintf("Failed to create service: %v", err))
		ui.PrintSectionEnd()
		os.Exit(1)
	}
	return svc
}

func newServiceInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [-- run flags]",
		Short: "Install poolmon as a system service",
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHeader()
			ui.PrintSection("Installing Service")

			svc := openService()
			status, err := svc.Install(args...)
			if err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to install: %v", err))
				ui.PrintSectionEnd()
				os.Exit(1)
			}

			ui.PrintStatus("success", status)
			ui.PrintStatus("info", "Run 'poolmon service start' to start monitoring")
			ui.PrintSectionEnd()
		},
	}
}

func newServiceActionCmd(use, short, title string, action func(*service.Service) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHeader()
			ui.PrintSection(title)

			svc := openService()
			status, err := action(svc)
			if err != nil {
				ui.PrintStatus("error", fmt.Sprintf("Failed to %s: %v", use, err))
				if use == "start" {
					ui.PrintStatus("info", "Try 'poolmon service install' first")
				}
				ui.PrintSectionEnd()
				os.Exit(1)
			}

			ui.PrintStatus("success", status)
			ui.PrintSectionEnd()
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check poolmon service status",
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHeader()
			ui.PrintSection("Service Status")

			svc := openService()
			status, err := svc.Status()
			if err != nil {
				ui.PrintStatus("warning", fmt.Sprintf("Status: %v", err))
			} else {
				ui.PrintStatus("info", status)
			}
			if process.IsRunning() {
				ui.PrintStatus("success", "Controller holds the PID file")
			}
			ui.PrintSectionEnd()
		},
	}
}
