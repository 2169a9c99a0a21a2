package constants

import "time"

// Default controller configuration
const (
	DEFAULT_REFRESH_INTERVAL = 1 * time.Second // between two snapshots
	DEFAULT_UI_MODE          = UI_MODE_TUI
	DEFAULT_LOG_DIR          = "."
)

// Default worker configuration
const (
	DEFAULT_WORKER_PORT              = 8888
	DEFAULT_WORKER_NO_DELAY          = true
	DEFAULT_WORKER_PING_INTERVAL     = 20 * time.Second      // keepalive to each client
	DEFAULT_WORKER_SAMPLING_INTERVAL = 10 * time.Millisecond // event loop responsiveness sampling
	DEFAULT_WORKER_GC_INTERVAL       = 60 * time.Second
)

// Renderer modes
const (
	UI_MODE_TUI   = "tui"
	UI_MODE_PLAIN = "plain"
	UI_MODE_NONE  = "none"
)

// Environment
const (
	ENV_PREFIX        = "POOLMON"
	ENV_WORKER_CONFIG = "POOLMON_WORKER_CONFIG"
	WORKER_COMMAND    = "worker"
)

// File paths
const (
	CONFIG_DIR_NAME   = "/.poolmon"
	LOG_FILE          = "/tmp/poolmon.log"
	FRAME_LOG_PREFIX  = "log"
	FRAME_LOG_SUFFIX  = ".csv"
	FRAME_LOG_TIMEFMT = "2006-01-02T15-04-05"
)

// OTLP export
const (
	OTLP_PATH     = "/v1/metrics"
	SERVICE_NAME  = "poolmon"
	METER_NAME    = "poolmon/controller"
	METRIC_PREFIX = "poolmon"
)
