package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := ConfigFromEnv("tmdb-addon", "1.2.3")

	assert.Equal(t, "tmdb-addon", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, 0.25, cfg.SampleRatio)

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "7")
	assert.Equal(t, 1.0, ConfigFromEnv("tmdb-addon", "").SampleRatio)
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw  string
		want collector
	}{
		{raw: "collector:4318", want: collector{host: "collector:4318", insecure: true}},
		{raw: "http://collector:4318/", want: collector{host: "collector:4318", insecure: true}},
		{raw: "https://otel.example.com/v1/traces", want: collector{host: "otel.example.com", path: "/v1/traces"}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseEndpoint(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := parseEndpoint("http://")
	assert.Error(t, err)
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), Config{ServiceName: "tmdb-addon"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitWithBadEndpointStillReturnsShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "tmdb-addon", Endpoint: "http://"})
	assert.Error(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanUsesGlobalProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := StartSpan(context.Background(), "search.Search")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "search.Search", ended[0].Name())
	assert.Equal(t, instrumentationName, ended[0].InstrumentationScope().Name)
}

func TestSamplerHonoursRatio(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}
