package worker

import (
	"context"
	"io"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"poolmon/internal/config"
	"poolmon/internal/ipc"
	"poolmon/internal/logger"
)

// Run serves clients and answers controller requests read from in until the
// controller closes the stream or ctx ends.
func Run(ctx context.Context, cfg config.WorkerConfig, in io.Reader, out io.Writer, log *logger.Logger) error {
	if log == nil {
		log = logger.Default()
	}

	ln, err := Listen(ctx, cfg.Port)
	if err != nil {
		return err
	}

	svc := NewService(cfg.PingInterval, cfg.NoDelay, log, nil)
	sampler := NewSampler(cfg.SamplingInterval, svc, nil)
	responder := ipc.NewResponder(in, out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sampler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		reclaim(ctx, cfg.GCInterval)
		return nil
	})
	g.Go(func() error {
		return svc.Serve(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		return svc.Shutdown()
	})
	served := make(chan error, 1)
	go func() { served <- responder.Serve(sampler.Reply) }()
	g.Go(func() error {
		select {
		case err := <-served:
			log.Debug("Controller channel closed")
			cancel()
			return err
		case <-ctx.Done():
			return nil
		}
	})

	log.Info("Worker listening on %s", ln.Addr())
	return g.Wait()
}

// reclaim returns freed memory to the OS periodically
func reclaim(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			debug.FreeOSMemory()
		}
	}
}
