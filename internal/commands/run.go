package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	constants "poolmon/config"
	"poolmon/internal/config"
	"poolmon/internal/export"
	"poolmon/internal/framelog"
	"poolmon/internal/logger"
	"poolmon/internal/pool"
	"poolmon/internal/process"
	"poolmon/internal/procstats"
	"poolmon/internal/scheduler"
	"poolmon/internal/service"
	"poolmon/internal/snapshot"
	"poolmon/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run command: fork the pool and monitor it until
// interrupted
func NewRunCmd() *cobra.Command {
	v := viper.GetViper()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the worker pool and the live monitor",
		Long: `Fork the worker pool and take one snapshot per refresh interval.

Examples:
  poolmon run                      # one worker per CPU, full-screen view
  poolmon run -w 4 --ui plain      # four workers, plain redraws
  poolmon run --metrics-addr :9100 # also expose Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.Workers == 0 {
				cfg.Workers = runtime.NumCPU()
			}
			return runController(cfg)
		},
	}
	bindRunFlags(cmd, v)
	return cmd
}

// poolWorkers lists pool members for the snapshot coordinator
type poolWorkers struct {
	pool *pool.Pool
}

func (w poolWorkers) Workers() []snapshot.Worker {
	members := w.pool.Workers()
	out := make([]snapshot.Worker, 0, len(members))
	for _, m := range members {
		out = append(out, snapshot.Worker{ID: m.ID, PID: m.PID, Requester: m.Channel})
	}
	return out
}

func runController(cfg *config.Config) (err error) {
	// The full-screen view owns the terminal; diagnostics go to the log file only
	var console io.Writer = os.Stderr
	if cfg.UI == constants.UI_MODE_TUI {
		console = io.Discard
	}
	log := logger.NewWithWriter(console, cfg.LogFile)
	log.SetDebug(cfg.Debug)
	logger.SetDefault(log)
	defer log.Close()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Error("Panic: %v\n%s", r, buf[:n])
			service.NotifyStopping()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	lock, err := process.Acquire()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Controller starting: PID %d, %d workers, refresh %s, cycle timeout %s",
		os.Getpid(), cfg.Workers, cfg.RefreshInterval, cfg.CycleTimeout)

	source, err := procstats.NewHostSource()
	if err != nil {
		return err
	}
	reader := procstats.NewReader(source, nil)
	if err := reader.ProbePageSize(); err != nil {
		log.Warning("Page size probe failed, using %d: %v", procstats.DefaultPageSize, err)
	}

	p := pool.New(pool.Options{
		Size:   cfg.Workers,
		Worker: cfg.Worker,
		Stderr: console,
		Log:    log,
		OnExit: func(m pool.Member) { reader.Forget(m.PID) },
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Stop(shutdownCtx); err != nil {
			log.Warning("Workers did not stop in time: %v", err)
		}
	}()
	if err := p.Start(); err != nil {
		return err
	}

	coordinator := snapshot.NewCoordinator(reader, poolWorkers{p}, cfg.CycleTimeout, nil, log)

	frames, err := framelog.Create(cfg.LogDir, coordinator.StartTime())
	if err != nil {
		return err
	}
	defer frames.Close()
	log.Info("Logging frames to %s", frames.Path())

	renderer, err := ui.New(cfg.UI, os.Stdout, frames, stop)
	if err != nil {
		return err
	}
	defer renderer.Close()

	sinks, err := startSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sinks.Close(shutdownCtx); err != nil {
			log.Warning("Failed to stop exporters: %v", err)
		}
	}()

	service.NotifyReady()
	service.NotifyStatus("Monitoring active")

	sched := scheduler.New(cfg.RefreshInterval, nil)
	// Elapsed time in every frame and the schedule share the coordinator's start
	err = sched.RunFrom(ctx, coordinator.StartTime(), func(ctx context.Context, step int) {
		frame, err := coordinator.Capture(ctx, step)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("Snapshot %d failed: %v", step, err)
			}
			return
		}
		renderer.Render(frame)
		if err := frames.Write(frame); err != nil {
			log.Error("Failed to log snapshot %d: %v", step, err)
		}
		sinks.Publish(frame)
		service.NotifyStatus(service.FrameStatus(step, len(frame.WorkerIDs), frame.Totals.Conns, len(frame.Degraded)))
		service.NotifyWatchdog()
	})

	log.Info("Shutting down")
	service.NotifyStopping()
	return err
}

func startSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) (export.Sinks, error) {
	var sinks export.Sinks
	if cfg.MetricsAddr != "" {
		prom := export.NewPrometheus()
		addr, err := prom.Listen(cfg.MetricsAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		log.Info("Serving Prometheus metrics on %s/metrics", addr)
		sinks = append(sinks, prom)
	}
	if cfg.OTLPEndpoint != "" {
		otel, err := export.NewOTel(ctx, cfg.OTLPEndpoint, cfg.RefreshInterval)
		if err != nil {
			sinks.Close(context.Background())
			return nil, err
		}
		log.Info("Pushing OTLP metrics to %s", cfg.OTLPEndpoint)
		sinks = append(sinks, otel)
	}
	return sinks, nil
}
