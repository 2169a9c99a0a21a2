package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	constants "poolmon/config"
	"poolmon/internal/config"
	"poolmon/internal/logger"
	"poolmon/internal/worker"
)

// NewWorkerCmd creates the worker command the controller forks
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    constants.WORKER_COMMAND,
		Short:  "Run one pool worker (started by the controller)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.WorkerConfigFromEnv()
			if err != nil {
				return err
			}

			// Ctrl-C reaches the whole process group; workers stop when the
			// controller closes their channel instead.
			signal.Ignore(os.Interrupt)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()

			log := logger.New("").With("pid", os.Getpid())
			logger.SetDefault(log)
			return worker.Run(ctx, cfg, os.Stdin, os.Stdout, log)
		},
	}
}
