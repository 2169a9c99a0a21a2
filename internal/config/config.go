package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	constants "poolmon/config"

	"github.com/spf13/viper"
)

// WorkerConfig is handed to every worker process at launch time
type WorkerConfig struct {
	Port             int           `mapstructure:"port" json:"port"`
	NoDelay          bool          `mapstructure:"no_delay" json:"setNoDelay"`
	PingInterval     time.Duration `mapstructure:"ping_interval" json:"pingInterval"`
	SamplingInterval time.Duration `mapstructure:"sampling_interval" json:"samplingInterval"`
	GCInterval       time.Duration `mapstructure:"gc_interval" json:"gcInterval"`
}

// Config represents the controller configuration
type Config struct {
	Workers         int           `mapstructure:"workers"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CycleTimeout    time.Duration `mapstructure:"cycle_timeout"`
	LogDir          string        `mapstructure:"log_dir"`
	LogFile         string        `mapstructure:"log_file"`
	Debug           bool          `mapstructure:"debug"`
	UI              string        `mapstructure:"ui"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	OTLPEndpoint    string        `mapstructure:"otlp_endpoint"`
	Worker          WorkerConfig  `mapstructure:"worker"`
}

// DefaultWorkerConfig returns the worker settings used when nothing is configured
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Port:             constants.DEFAULT_WORKER_PORT,
		NoDelay:          constants.DEFAULT_WORKER_NO_DELAY,
		PingInterval:     constants.DEFAULT_WORKER_PING_INTERVAL,
		SamplingInterval: constants.DEFAULT_WORKER_SAMPLING_INTERVAL,
		GCInterval:       constants.DEFAULT_WORKER_GC_INTERVAL,
	}
}

func setDefaults(v *viper.Viper) {
	w := DefaultWorkerConfig()
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("refresh_interval", constants.DEFAULT_REFRESH_INTERVAL)
	v.SetDefault("cycle_timeout", time.Duration(0))
	v.SetDefault("log_dir", constants.DEFAULT_LOG_DIR)
	v.SetDefault("log_file", constants.LOG_FILE)
	v.SetDefault("debug", false)
	v.SetDefault("ui", constants.DEFAULT_UI_MODE)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("worker.port", w.Port)
	v.SetDefault("worker.no_delay", w.NoDelay)
	v.SetDefault("worker.ping_interval", w.PingInterval)
	v.SetDefault("worker.sampling_interval", w.SamplingInterval)
	v.SetDefault("worker.gc_interval", w.GCInterval)
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads the configuration through the given viper instance.
// A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME" + constants.CONFIG_DIR_NAME)
	v.AddConfigPath(".")
	v.SetEnvPrefix(constants.ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values and fills derived defaults
func (cfg *Config) Validate() error {
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", cfg.RefreshInterval)
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.RefreshInterval
	}
	switch cfg.UI {
	case constants.UI_MODE_TUI, constants.UI_MODE_PLAIN, constants.UI_MODE_NONE:
	default:
		return fmt.Errorf("unknown ui mode %q", cfg.UI)
	}
	if cfg.Worker.SamplingInterval <= 0 {
		return fmt.Errorf("worker.sampling_interval must be positive, got %s", cfg.Worker.SamplingInterval)
	}
	return nil
}

// Encode serializes the worker config for the worker's environment
func (w WorkerConfig) Encode() (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to encode worker config: %w", err)
	}
	return string(data), nil
}

// ParseWorkerConfig decodes a serialized worker config.
// Fields absent from the payload keep their defaults.
func ParseWorkerConfig(raw string) (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse worker config: %w", err)
	}
	return cfg, nil
}

// WorkerConfigFromEnv reads the worker config passed by the controller
func WorkerConfigFromEnv() (WorkerConfig, error) {
	return ParseWorkerConfig(os.Getenv(constants.ENV_WORKER_CONFIG))
}
