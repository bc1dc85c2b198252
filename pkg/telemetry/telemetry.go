// Package telemetry wires OpenTelemetry traces, metrics, and logs for the
// orchestrator. It is entirely optional: with no OTLP endpoint configured,
// Setup returns providers that record locally but export nothing, so the
// core's instrumentation calls are always safe no-ops in tests.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config controls OTLP export. Endpoint is typically a collector address
// like "localhost:4318"; an empty Endpoint disables export but keeps
// tracer/meter/logger instances usable.
type Config struct {
	ServiceName string
	Endpoint    string // OTLP/HTTP collector endpoint, host:port, no scheme
	Insecure    bool
}

// Providers bundles the three OTel signal providers plus the derived
// tracer/meter/logger the rest of the codebase instruments against.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	shutdownFns []func(context.Context) error
}

// Setup builds trace, metric, and log providers for the given config and
// registers them as the global OTel providers. Call Providers.Shutdown
// during graceful shutdown to flush buffered telemetry.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "memcore"
	}

	p := &Providers{}

	var spanExporter sdktrace.SpanExporter
	var metricExporter sdkmetric.Exporter
	var logExporter sdklog.Exporter
	var err error

	if cfg.Endpoint != "" {
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
			logOpts = append(logOpts, otlploghttp.WithInsecure())
		}

		spanExporter, err = otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, err
		}
		metricExporter, err = otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, err
		}
		logExporter, err = otlploghttp.New(ctx, logOpts...)
		if err != nil {
			return nil, err
		}
	}

	tracerOpts := []sdktrace.TracerProviderOption{}
	if spanExporter != nil {
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(spanExporter))
	}
	tp := sdktrace.NewTracerProvider(tracerOpts...)
	otel.SetTracerProvider(tp)
	p.TracerProvider = tp
	p.Tracer = tp.Tracer(cfg.ServiceName)
	p.shutdownFns = append(p.shutdownFns, tp.Shutdown)

	meterOpts := []sdkmetric.Option{}
	if metricExporter != nil {
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(15*time.Second))))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(mp)
	p.MeterProvider = mp
	p.Meter = mp.Meter(cfg.ServiceName)
	p.shutdownFns = append(p.shutdownFns, mp.Shutdown)

	loggerOpts := []sdklog.LoggerProviderOption{}
	if logExporter != nil {
		loggerOpts = append(loggerOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)))
	}
	lp := sdklog.NewLoggerProvider(loggerOpts...)
	p.LoggerProvider = lp
	p.Logger = lp.Logger(cfg.ServiceName)
	p.shutdownFns = append(p.shutdownFns, lp.Shutdown)

	return p, nil
}

// Shutdown flushes and closes every provider, in registration order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, fn := range p.shutdownFns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
