//go:build !windows

// Package service installs the controller as a system service and reports
// its lifecycle to systemd.
package service

import (
	"fmt"
	"os"
	"runtime"

	"github.com/okzk/sdnotify"
	"github.com/takama/daemon"

	constants "poolmon/config"
	"poolmon/internal/logger"
)

const serviceDescription = "poolmon - worker pool controller and monitor"

// Service is the controller's unit (systemd) or agent (launchd)
type Service struct {
	daemon daemon.Daemon
}

// New opens the controller unit. As root it is a system daemon, otherwise a
// per-user agent.
func New() (*Service, error) {
	kind := daemon.UserAgent
	if os.Geteuid() == 0 {
		kind = daemon.SystemDaemon
	}

	d, err := daemon.New(constants.SERVICE_NAME, serviceDescription, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s unit: %w", constants.SERVICE_NAME, err)
	}
	return &Service{daemon: d}, nil
}

// InstallArgs returns the command line the service runs. A service has no
// terminal, so the live view is turned off.
func InstallArgs(extra ...string) []string {
	args := []string{"run", "--ui", constants.UI_MODE_NONE}
	return append(args, extra...)
}

// do runs one unit action and logs its outcome
func do(action string, fn func() (string, error)) (string, error) {
	status, err := fn()
	if err != nil {
		logger.Warning("Controller unit %s failed: %v", action, err)
		return status, err
	}
	logger.Info("Controller unit %s: %s", action, status)
	return status, nil
}

// Install writes a unit that runs the controller headless with the given
// extra run flags
func (s *Service) Install(extra ...string) (string, error) {
	return do("install", func() (string, error) { return s.daemon.Install(InstallArgs(extra...)...) })
}

// Remove deletes the unit. A running controller keeps running until stopped.
func (s *Service) Remove() (string, error) {
	return do("remove", s.daemon.Remove)
}

// Start launches the controller, which forks its pool
func (s *Service) Start() (string, error) {
	return do("start", s.daemon.Start)
}

// Stop terminates the controller; its workers exit when their channels close
func (s *Service) Stop() (string, error) {
	return do("stop", s.daemon.Stop)
}

// Status reports whether the unit is running
func (s *Service) Status() (string, error) {
	return s.daemon.Status()
}

// notify sends one state line to systemd. Outside systemd (no NOTIFY_SOCKET)
// sdnotify is a no-op.
func notify(send func() error, what string) {
	if runtime.GOOS != "linux" {
		return
	}
	if err := send(); err != nil {
		logger.Debug("systemd %s notification not sent: %v", what, err)
	}
}

// NotifyReady reports that the pool is forked and the first snapshot is scheduled
func NotifyReady() {
	notify(sdnotify.Ready, "READY")
}

// NotifyStopping reports that the controller is draining its pool
func NotifyStopping() {
	notify(sdnotify.Stopping, "STOPPING")
}

// NotifyWatchdog is sent after every finished snapshot
func NotifyWatchdog() {
	notify(sdnotify.Watchdog, "WATCHDOG")
}

// NotifyStatus publishes a one-line status to systemd
func NotifyStatus(status string) {
	notify(func() error { return sdnotify.Status(status) }, "STATUS")
}

// FrameStatus is the systemd status line for a snapshot
func FrameStatus(step, workers int, conns int64, degraded int) string {
	s := fmt.Sprintf("step %d: %d workers, %d conns", step, workers, conns)
	if degraded > 0 {
		s += fmt.Sprintf(", %d degraded sources", degraded)
	}
	return s
}
