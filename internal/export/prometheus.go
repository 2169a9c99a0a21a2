package export

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	constants "poolmon/config"
	"poolmon/internal/logger"
	"poolmon/internal/snapshot"
)

// Prometheus exposes the latest snapshot as gauges
type Prometheus struct {
	registry *prometheus.Registry
	server   *http.Server

	step           prometheus.Gauge
	workers        prometheus.Gauge
	connections    prometheus.Gauge
	packets        prometheus.Gauge
	cpuPercent     prometheus.Gauge
	rssBytes       prometheus.Gauge
	heapUsedBytes  prometheus.Gauge
	heapTotalBytes prometheus.Gauge
	tickMs         *prometheus.GaugeVec
	systemCPU      *prometheus.GaugeVec
	systemMemory   *prometheus.GaugeVec
	generationMs   prometheus.Gauge
	degraded       prometheus.Gauge
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: constants.METRIC_PREFIX, Name: name, Help: help})
}

func gaugeVec(name, help, label string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: constants.METRIC_PREFIX, Name: name, Help: help}, []string{label})
}

// NewPrometheus registers the gauges on a private registry
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry:       prometheus.NewRegistry(),
		step:           gauge("step", "Sequence number of the latest snapshot."),
		workers:        gauge("workers", "Workers present in the latest snapshot."),
		connections:    gauge("connections", "Open client connections across all workers."),
		packets:        gauge("packets", "Keepalive payloads sent across all workers."),
		cpuPercent:     gauge("cpu_percent", "CPU percent of one core used by all workers."),
		rssBytes:       gauge("rss_bytes", "Resident memory of all workers."),
		heapUsedBytes:  gauge("heap_used_bytes", "Heap in use across all workers."),
		heapTotalBytes: gauge("heap_total_bytes", "Heap reserved across all workers."),
		tickMs:         gaugeVec("tick_ms", "Worker tick latency in milliseconds.", "stat"),
		systemCPU:      gaugeVec("system_cpu_percent", "Host CPU per mode over the last period.", "mode"),
		systemMemory:   gaugeVec("system_memory_bytes", "Host memory by type.", "type"),
		generationMs:   gauge("frame_generation_ms", "Time spent building the latest snapshot."),
		degraded:       gauge("degraded_sources", "Sources that failed or timed out in the latest snapshot."),
	}
	p.registry.MustRegister(
		p.step, p.workers, p.connections, p.packets, p.cpuPercent, p.rssBytes,
		p.heapUsedBytes, p.heapTotalBytes, p.tickMs, p.systemCPU, p.systemMemory,
		p.generationMs, p.degraded,
	)
	return p
}

// Registry returns the registry holding the gauges
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Publish updates every gauge from frame
func (p *Prometheus) Publish(frame *snapshot.DataFrame) {
	t := frame.Totals
	p.step.Set(float64(frame.Step))
	p.workers.Set(float64(len(frame.WorkerIDs)))
	p.connections.Set(float64(t.Conns))
	p.packets.Set(float64(t.Packets))
	p.cpuPercent.Set(t.CPUPercent)
	p.rssBytes.Set(t.RSS)
	p.heapUsedBytes.Set(t.Mem.HeapUsed)
	p.heapTotalBytes.Set(t.Mem.HeapTotal)

	p.tickMs.WithLabelValues("avg").Set(t.AvgT)
	p.tickMs.WithLabelValues("p90").Set(t.P90T)
	p.tickMs.WithLabelValues("max").Set(t.MaxT)

	p.systemCPU.WithLabelValues("user").Set(frame.CPU.User)
	p.systemCPU.WithLabelValues("sys").Set(frame.CPU.Sys)
	p.systemCPU.WithLabelValues("idle").Set(frame.CPU.Idle)
	p.systemCPU.WithLabelValues("iowait").Set(frame.CPU.Iowait)

	p.systemMemory.WithLabelValues("total").Set(frame.Mem.Total)
	p.systemMemory.WithLabelValues("used").Set(frame.Mem.Used)
	p.systemMemory.WithLabelValues("free").Set(frame.Mem.Free)
	p.systemMemory.WithLabelValues("caches").Set(frame.Mem.Caches)

	p.generationMs.Set(float64(frame.GenerationTime.Microseconds()) / 1000)
	p.degraded.Set(float64(len(frame.Degraded)))
}

// Listen starts serving /metrics on addr
func (p *Prometheus) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	p.server = &http.Server{Handler: mux}
	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// Close stops the metrics server
func (p *Prometheus) Close(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}
