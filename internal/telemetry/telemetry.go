package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "tmdbaddon/searchservice"

// Shutdown flushes pending spans. It is always safe to call.
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Config describes where search and catalog spans are exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/HTTP collector. Empty disables export.
	Endpoint string
	// SampleRatio is the share of root traces kept, in (0, 1].
	SampleRatio float64
}

// ConfigFromEnv reads OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_TRACES_SAMPLER_ARG.
func ConfigFromEnv(serviceName, serviceVersion string) Config {
	cfg := Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		SampleRatio:    1,
	}
	if raw := strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio > 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

// collector is an endpoint split into what the OTLP exporter expects.
type collector struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts "host:port" or a full URL. Only https endpoints are
// dialled with TLS.
func parseEndpoint(raw string) (collector, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return collector{}, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	if parsed.Host == "" {
		return collector{}, fmt.Errorf("otlp endpoint %q has no host", raw)
	}
	out := collector{host: parsed.Host, insecure: parsed.Scheme != "https"}
	if path := strings.TrimRight(parsed.Path, "/"); path != "" {
		out.path = path
	}
	return out, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Init installs the global trace provider. Without an endpoint nothing is
// installed and spans stay noop. An unusable endpoint is reported but the
// returned Shutdown is still callable.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noopShutdown, nil
	}
	target, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return noopShutdown, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(target.host),
		otlptracehttp.WithTimeout(3 * time.Second),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if target.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(target.path))
	}
	if target.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exporter, err := otlptracehttp.New(initCtx, opts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("otlp exporter: %w", err)
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return noopShutdown, fmt.Errorf("otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}

// StartSpan opens a span on the global tracer. It is a noop span until Init
// installs a provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}
