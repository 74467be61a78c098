package server

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"

	"github.com/substrate-hq/substrate/internal/config"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// OtelModule wires the OTLP trace exporter when an endpoint is configured.
var OtelModule = fx.Module("otel",
	fx.Invoke(SetupTracing),
)

// SetupTracing registers a TracerProvider exporting to the configured OTLP
// HTTP endpoint. Without an endpoint the global no-op provider stays in place.
func SetupTracing(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) {
	if !cfg.Otel.Enabled() {
		return
	}
	log = log.With(logger.Scope("otel"))

	var provider *sdktrace.TracerProvider

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			exporter, err := otlptracehttp.New(ctx,
				otlptracehttp.WithEndpointURL(cfg.Otel.ExporterEndpoint),
			)
			if err != nil {
				return err
			}

			res, err := resource.Merge(resource.Default(),
				resource.NewWithAttributes(semconv.SchemaURL,
					semconv.ServiceName(cfg.Otel.ServiceName),
				),
			)
			if err != nil {
				return err
			}

			provider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(res),
				sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.Otel.SamplingRate)),
			)
			otel.SetTracerProvider(provider)

			log.Info("tracing enabled",
				slog.String("endpoint", cfg.Otel.ExporterEndpoint),
				slog.Float64("sampling_rate", cfg.Otel.SamplingRate),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if provider == nil {
				return nil
			}
			return provider.Shutdown(ctx)
		},
	})
}
