package export

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	constants "poolmon/config"
	"poolmon/internal/snapshot"
)

// OTel pushes the latest snapshot over OTLP/HTTP on a fixed interval
type OTel struct {
	provider *sdkmetric.MeterProvider
	latest   Latest
}

// NewOTel starts an OTLP exporter for endpoint (host:port)
func NewOTel(ctx context.Context, endpoint string, interval time.Duration) (*OTel, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithURLPath(constants.OTLP_PATH),
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  2 * time.Minute,
		}),
		otlpmetrichttp.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return newOTel(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

func newOTel(reader sdkmetric.Reader) (*OTel, error) {
	hostname, _ := os.Hostname()
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(constants.SERVICE_NAME),
		semconv.HostName(hostname),
		attribute.String("os.type", runtime.GOOS),
	)

	o := &OTel{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		),
	}
	if err := o.register(o.provider.Meter(constants.METER_NAME)); err != nil {
		o.provider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return o, nil
}

func (o *OTel) register(meter metric.Meter) error {
	_, err := meter.Int64ObservableGauge(
		"poolmon.pool.connections",
		metric.WithDescription("Open client connections across all workers"),
		metric.WithUnit("{connection}"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			obs.Observe(f.Totals.Conns)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"poolmon.pool.cpu",
		metric.WithDescription("CPU percent of one core used by all workers"),
		metric.WithUnit("%"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			obs.Observe(f.Totals.CPUPercent)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"poolmon.pool.memory",
		metric.WithDescription("Worker memory in bytes"),
		metric.WithUnit("By"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			t := f.Totals
			obs.Observe(t.RSS, metric.WithAttributes(attribute.String("type", "rss")))
			obs.Observe(t.Mem.HeapUsed, metric.WithAttributes(attribute.String("type", "heap_used")))
			obs.Observe(t.Mem.HeapTotal, metric.WithAttributes(attribute.String("type", "heap_total")))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"poolmon.pool.ticks",
		metric.WithDescription("Worker tick latency"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			t := f.Totals
			obs.Observe(t.AvgT, metric.WithAttributes(attribute.String("stat", "avg")))
			obs.Observe(t.P90T, metric.WithAttributes(attribute.String("stat", "p90")))
			obs.Observe(t.MaxT, metric.WithAttributes(attribute.String("stat", "max")))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"poolmon.system.cpu",
		metric.WithDescription("Host CPU per mode over the last period"),
		metric.WithUnit("%"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			obs.Observe(f.CPU.User, metric.WithAttributes(attribute.String("mode", "user")))
			obs.Observe(f.CPU.Sys, metric.WithAttributes(attribute.String("mode", "sys")))
			obs.Observe(f.CPU.Idle, metric.WithAttributes(attribute.String("mode", "idle")))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"poolmon.frame.generation",
		metric.WithDescription("Time spent building the latest snapshot"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			f := o.latest.Load()
			if f == nil {
				return nil
			}
			obs.Observe(float64(f.GenerationTime.Microseconds()) / 1000)
			return nil
		}),
	)
	return err
}

// Publish makes frame the value reported on the next collection
func (o *OTel) Publish(frame *snapshot.DataFrame) {
	o.latest.Store(frame)
}

// ForceFlush exports pending metrics immediately
func (o *OTel) ForceFlush(ctx context.Context) error {
	return o.provider.ForceFlush(ctx)
}

// Close flushes and stops the exporter
func (o *OTel) Close(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
