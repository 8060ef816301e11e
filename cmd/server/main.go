package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "tmdbaddon/searchservice/internal/api/http"
	"tmdbaddon/searchservice/internal/app"
	"tmdbaddon/searchservice/internal/catalog"
	"tmdbaddon/searchservice/internal/metrics"
	"tmdbaddon/searchservice/internal/providers/gemini"
	"tmdbaddon/searchservice/internal/providers/tmdb"
	"tmdbaddon/searchservice/internal/search"
	"tmdbaddon/searchservice/internal/telemetry"
)

const serviceName = "tmdb-addon"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	cfg := app.LoadConfig()
	logger, logCloser := app.NewLogger(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv(serviceName, version))
	if err != nil {
		logger.Warn("otel init failed, tracing disabled", slog.String("error", err.Error()))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Bool("logFile", cfg.LogFile != ""),
		slog.Bool("dotEnv", cfg.DotEnvLoaded),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.String("geminiModel", cfg.GeminiModel),
		slog.Duration("searchTimeout", cfg.SearchTimeout),
		slog.Duration("geminiTimeout", cfg.GeminiTimeout),
		slog.Int("certConcurrency", cfg.CertConcurrency),
		slog.Bool("seriesCertification", cfg.SeriesCertification),
	)

	tmdbClient := tmdb.NewClient(tmdb.Config{
		APIKey:  cfg.TMDBAPIKey,
		BaseURL: cfg.TMDBBaseURL,
		Client:  &http.Client{Timeout: cfg.TMDBTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if !tmdbClient.Enabled() {
		logger.Warn("tmdb api key not configured, catalogs will be empty")
	}

	geminiHTTP := &http.Client{Timeout: cfg.GeminiTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resolvers := func(apiKey string) search.TitleResolver {
		return gemini.NewClient(gemini.Config{
			APIKey:  apiKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Client:  geminiHTTP,
		})
	}

	searchService := search.NewService(tmdbClient,
		search.WithLogger(logger),
		search.WithResolverFactory(resolvers),
		search.WithTimeout(cfg.SearchTimeout),
		search.WithAITimeout(cfg.GeminiTimeout),
		search.WithCertificationConcurrency(cfg.CertConcurrency),
		search.WithSeriesCertification(cfg.SeriesCertification),
	)
	catalogService := catalog.NewService(tmdbClient, catalog.WithLogger(logger))

	handler := apihttp.NewServer(searchService,
		apihttp.WithLogger(logger),
		apihttp.WithCatalog(catalogService),
		apihttp.WithSessions(tmdbClient),
		apihttp.WithVersion(version),
		apihttp.WithRateLimit(float64(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GeminiTimeout + cfg.SearchTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	baseURL := cfg.AddonBaseURL
	if baseURL == "" {
		baseURL = "http://" + cfg.HTTPAddr
		if strings.HasPrefix(cfg.HTTPAddr, ":") {
			baseURL = "http://127.0.0.1" + cfg.HTTPAddr
		}
	}
	logger.Info("tmdb addon started",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("manifest", baseURL+"/manifest.json"),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("tmdb addon stopped")
}
