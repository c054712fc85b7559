// Package telemetry installs the OpenTelemetry tracer provider that the
// cache, retry and orchestrator spans are recorded against.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/ibeckermayer/xscrape/internal/config"
)

type Telemetry struct {
	TracerProvider *trace.TracerProvider
}

// Shutdown flushes buffered spans and stops the exporter.
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	errlist := []error{}
	if err := t.TracerProvider.ForceFlush(ctx); err != nil {
		errlist = append(errlist, err)
	}
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errlist = append(errlist, err)
	}
	return errors.Join(errlist...)
}

// Setup builds a tracer provider from cfg and installs it globally. Extra
// options are appended after the exporter, so callers can attach their own
// span processors.
func Setup(ctx context.Context, cfg config.TelemetryConfig, log zerolog.Logger, opts ...trace.TracerProviderOption) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(cfg.ServiceName)
	if err != nil {
		return Telemetry{}, err
	}

	exporter, err := newExporter(ctx, cfg, log)
	if err != nil {
		return Telemetry{}, err
	}

	all := []trace.TracerProviderOption{trace.WithResource(r)}
	if exporter != nil {
		all = append(all, trace.WithBatcher(exporter))
	}
	tp := trace.NewTracerProvider(append(all, opts...)...)
	otel.SetTracerProvider(tp)

	return Telemetry{TracerProvider: tp}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = "xscrape"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// newExporter returns nil when no endpoint is configured.
func newExporter(ctx context.Context, cfg config.TelemetryConfig, log zerolog.Logger) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	switch {
	case cfg.GrpcEndpoint != "":
		log.Info().
			Str("type", "grpc").
			Str("endpoint", cfg.GrpcEndpoint).
			Bool("headers", len(cfg.Headers) > 0).
			Msg("tracer export initialized")
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(cfg.GrpcEndpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
		)
	case cfg.HttpEndpoint != "":
		log.Info().
			Str("type", "http").
			Str("endpoint", cfg.HttpEndpoint).
			Bool("headers", len(cfg.Headers) > 0).
			Msg("tracer export initialized")
		return otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(cfg.HttpEndpoint),
			otlptracehttp.WithHeaders(cfg.Headers),
		)
	default:
		log.Debug().Msg("no trace endpoint configured, spans stay in process")
		return nil, nil
	}
}
