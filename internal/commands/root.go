package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	constants "poolmon/config"
)

// NewRootCmd creates the poolmon command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "poolmon",
		Short: "Fork a pool of workers and monitor them",
		Long: `poolmon forks a pool of worker processes serving long-lived client
connections and takes a snapshot of the host, the controller and every
worker once per refresh interval. Each snapshot is shown on screen and
appended to a CSV log.`,
		DisableSuggestions: true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:       true,
	}

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewWorkerCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewStopCmd())
	root.AddCommand(NewCleanupCmd())
	root.AddCommand(NewServiceCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

// bindRunFlags registers the controller flags and binds them to viper keys
func bindRunFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.IntP("workers", "w", 0, "number of workers (default: number of CPUs)")
	f.Duration("refresh", constants.DEFAULT_REFRESH_INTERVAL, "time between snapshots")
	f.Duration("cycle-timeout", 0, "deadline for one snapshot (default: refresh interval)")
	f.String("log-dir", constants.DEFAULT_LOG_DIR, "directory of the CSV frame log")
	f.String("log-file", constants.LOG_FILE, "diagnostic log file")
	f.String("ui", constants.DEFAULT_UI_MODE, "renderer: tui, plain or none")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.String("otlp-endpoint", "", "push OTLP metrics to this host:port")
	f.Int("port", constants.DEFAULT_WORKER_PORT, "port the workers listen on")
	f.Bool("debug", false, "enable debug logging")

	for key, flag := range map[string]string{
		"workers":          "workers",
		"refresh_interval": "refresh",
		"cycle_timeout":    "cycle-timeout",
		"log_dir":          "log-dir",
		"log_file":         "log-file",
		"ui":               "ui",
		"metrics_addr":     "metrics-addr",
		"otlp_endpoint":    "otlp-endpoint",
		"worker.port":      "port",
		"debug":            "debug",
	} {
		v.BindPFlag(key, f.Lookup(flag))
	}
}
