package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/providers/tmdb"
	"tmdbaddon/searchservice/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, catalogID, rawType, language, query string, cfg domain.SearchConfig) (domain.SearchResponse, error)
}

type CatalogService interface {
	Trending(ctx context.Context, rawType, language, genre string, skip int) (domain.CatalogResponse, error)
	Genres(ctx context.Context, rawType, language string) ([]domain.Genre, error)
}

type SessionService interface {
	RequestToken(ctx context.Context) (string, error)
	SessionID(ctx context.Context, requestToken string) (string, error)
}

type Server struct {
	search    SearchService
	catalog   CatalogService
	sessions  SessionService
	logger    *slog.Logger
	version   string
	rateLimit float64
	rateBurst int
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCatalog(catalog CatalogService) ServerOption {
	return func(s *Server) {
		s.catalog = catalog
	}
}

func WithSessions(sessions SessionService) ServerOption {
	return func(s *Server) {
		s.sessions = sessions
	}
}

func WithVersion(version string) ServerOption {
	return func(s *Server) {
		if strings.TrimSpace(version) != "" {
			s.version = version
		}
	}
}

// WithRateLimit sets the global token bucket for everything but health and metrics.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimit = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search:    searchService,
		logger:    slog.Default(),
		version:   "1.0.0",
		rateLimit: 50,
		rateBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	// Config and extra segments carry escaped JSON and free text; match on the
	// raw path and unescape per variable.
	router.UseEncodedPath()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/genres", s.handleGenres).Methods(http.MethodGet)
	router.HandleFunc("/session/request-token", s.handleRequestToken).Methods(http.MethodGet)
	router.HandleFunc("/session/new", s.handleSessionNew).Methods(http.MethodGet)
	router.HandleFunc("/manifest.json", s.handleManifest).Methods(http.MethodGet)
	router.HandleFunc("/catalog/{type}/{id}.json", s.handleCatalog).Methods(http.MethodGet)
	router.HandleFunc("/catalog/{type}/{id}/{extra}.json", s.handleCatalog).Methods(http.MethodGet)
	router.HandleFunc("/{config}/manifest.json", s.handleManifest).Methods(http.MethodGet)
	router.HandleFunc("/{config}/catalog/{type}/{id}.json", s.handleCatalog).Methods(http.MethodGet)
	router.HandleFunc("/{config}/catalog/{type}/{id}/{extra}.json", s.handleCatalog).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	})

	traced := otelhttp.NewHandler(requestIDMiddleware(loggingMiddleware(s.logger, corsMiddleware(router))), "tmdb-addon",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimit, s.rateBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(mux.Vars(r)["config"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildManifest(s.version, cfg))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg, err := decodeConfig(vars["config"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_config", err.Error())
		return
	}
	mediaType, err := url.PathUnescape(vars["type"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid type")
		return
	}
	catalogID, err := url.PathUnescape(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid catalog id")
		return
	}
	extra, err := parseCatalogExtra(vars["extra"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	lang := canonicalLanguage(cfg.Language)
	if queryLang := canonicalLanguage(r.URL.Query().Get("language")); queryLang != "" {
		lang = queryLang
	}

	switch catalogID {
	case search.SearchCatalogID, search.AISearchCatalogID:
		s.serveSearch(w, r, catalogID, mediaType, lang, extra.Search, cfg)
	case TrendingCatalogID:
		s.serveTrending(w, r, mediaType, lang, extra)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown catalog "+catalogID)
	}
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request, catalogID, mediaType, lang, query string, cfg domain.SearchConfig) {
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	if query == "" {
		writeJSON(w, http.StatusOK, domain.CatalogResponse{Metas: []domain.MediaMeta{}})
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	start := time.Now()
	response, err := s.search.Search(r.Context(), catalogID, mediaType, lang, query, cfg)
	if err != nil {
		s.logger.Warn("catalog search failed",
			slog.String("catalog", catalogID),
			slog.String("type", mediaType),
			slog.String("query", domain.Truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrInvalidMediaType) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	s.logger.Info("catalog search completed",
		slog.String("catalog", catalogID),
		slog.String("type", mediaType),
		slog.String("query", domain.Truncate(query, 80)),
		slog.Int("results", len(response.Metas)),
		slog.Int64("elapsedMs", time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) serveTrending(w http.ResponseWriter, r *http.Request, mediaType, lang string, extra catalogExtra) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "trending catalog is not configured")
		return
	}
	response, err := s.catalog.Trending(r.Context(), mediaType, lang, extra.Genre, extra.Skip)
	if err != nil {
		s.logger.Warn("trending catalog failed",
			slog.String("type", mediaType),
			slog.String("genre", extra.Genre),
			slog.Int("skip", extra.Skip),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrInvalidMediaType) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "upstream_error", "trending lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "genre lookup is not configured")
		return
	}
	mediaType := strings.TrimSpace(r.URL.Query().Get("type"))
	if mediaType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}
	genres, err := s.catalog.Genres(r.Context(), mediaType, canonicalLanguage(r.URL.Query().Get("language")))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMediaType) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Warn("genre lookup failed", slog.String("type", mediaType), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream_error", "genre lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

func (s *Server) handleRequestToken(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "tmdb sessions are not configured")
		return
	}
	token, err := s.sessions.RequestToken(r.Context())
	if err != nil {
		s.writeSessionError(w, "request token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"requestToken": token})
}

func (s *Server) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "tmdb sessions are not configured")
		return
	}
	requestToken := strings.TrimSpace(r.URL.Query().Get("request_token"))
	if requestToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_token is required")
		return
	}
	sessionID, err := s.sessions.SessionID(r.Context(), requestToken)
	if err != nil {
		s.writeSessionError(w, "session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (s *Server) writeSessionError(w http.ResponseWriter, step string, err error) {
	s.logger.Warn("tmdb "+step+" failed", slog.String("error", err.Error()))
	switch {
	case errors.Is(err, tmdb.ErrRejected):
		writeError(w, http.StatusUnauthorized, "rejected", "tmdb rejected the "+step+" request")
	case errors.Is(err, tmdb.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "upstream_error", step+" request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
