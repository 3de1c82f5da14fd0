// Package telemetry installs the OpenTelemetry trace and metric providers
package telemetry

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/Aidin1998/stablecoin/internal/config"
)

const ExporterStdout = "stdout"

// Shutdown flushes and stops the installed providers
type Shutdown func(context.Context) error

// Setup installs propagators and, per cfg, stdout trace and metric
// providers writing to w (os.Stdout when nil)
func Setup(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (Shutdown, error) {
	if w == nil {
		w = os.Stdout
	}
	var shutdownFuncs []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	if cfg.Tracing == ExporterStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		provider := trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, provider.Shutdown)
		otel.SetTracerProvider(provider)
	}

	if cfg.Metrics == ExporterStdout {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		provider := metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(cfg.MetricsInterval))),
			metric.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, provider.Shutdown)
		otel.SetMeterProvider(provider)
	}

	return shutdown, nil
}
