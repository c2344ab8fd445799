// Package observability wires an OTLP HTTP trace exporter into
// Genkit's tracer provider. Every model and embedder call is already
// spanned by Genkit; exporting them is all the setup that is needed.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for the OTLP exporter.
type Config struct {
	// Endpoint is the OTLP HTTP collector host:port. Empty disables
	// tracing entirely.
	Endpoint string
	// Environment tags spans with deployment.environment.
	Environment string
	// ServiceName is the service name reported to the collector.
	ServiceName string
}

// noopShutdown is returned when tracing is disabled.
func noopShutdown(context.Context) error { return nil }

// Setup registers an OTLP HTTP exporter with Genkit's tracer provider
// and returns a shutdown function that flushes pending spans. Tracing
// stays disabled when no endpoint is configured; exporter creation
// failure logs a warning and also disables tracing rather than failing
// startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no collector endpoint configured")
		return noopShutdown, nil
	}

	// Genkit's tracer provider reads these at span-creation time.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Info("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
	return tracing.TracerProvider().Shutdown, nil
}
