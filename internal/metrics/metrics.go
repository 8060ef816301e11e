package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "provider_requests_total",
		Help:      "Total requests to upstream providers by provider, endpoint and result status.",
	}, []string{"provider", "endpoint", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "provider_request_duration_seconds",
		Help:      "Upstream provider request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider", "endpoint"})

	CertificationLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "certification_lookups_total",
		Help:      "Certification lookups by media type and verdict (allowed, denied, missing).",
	}, []string{"media_type", "verdict"})

	AISearchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "ai_search_total",
		Help:      "AI-assisted search attempts by outcome (hit, empty, error).",
	}, []string{"outcome"})

	SearchResultsSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "search_results",
		Help:      "Number of metas returned per search.",
		Buckets:   []float64{0, 1, 5, 10, 20, 30, 40, 50, 100},
	}, []string{"media_type", "path"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		CertificationLookupsTotal,
		AISearchTotal,
		SearchResultsSize,
	)
}

// ObserveProvider records one upstream call.
func ObserveProvider(provider, endpoint string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderRequestsTotal.WithLabelValues(provider, endpoint, status).Inc()
	ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(seconds)
}
