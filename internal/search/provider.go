package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-unidecode"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/meta"
)

var ErrInvalidMediaType = domain.ErrInvalidMediaType

// MetadataProvider is the subset of TMDB the search pipeline calls.
type MetadataProvider interface {
	SearchMovies(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error)
	SearchTV(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error)
	SearchPerson(ctx context.Context, query, language string) ([]domain.Person, error)
	PersonMovieCredits(ctx context.Context, personID int, language string) (domain.Credits, error)
	PersonTVCredits(ctx context.Context, personID int, language string) (domain.Credits, error)
	GenreList(ctx context.Context, language string, mediaType domain.MediaType) ([]domain.Genre, error)
}

// CertificationSource returns the US certifications recorded for a title.
type CertificationSource interface {
	MovieCertifications(ctx context.Context, movieID int) ([]string, error)
	TVCertifications(ctx context.Context, tvID int) ([]string, error)
}

type Provider interface {
	MetadataProvider
	CertificationSource
}

// TitleResolver turns a free-text query into candidate titles, best first.
type TitleResolver interface {
	SearchWithAI(ctx context.Context, query string, mediaType domain.MediaType) ([]string, error)
}

// ResolverFactory builds a TitleResolver for one user's API key.
type ResolverFactory func(apiKey string) TitleResolver

// Formatter converts a TMDB record into a catalog meta.
type Formatter func(item domain.Candidate, mediaType domain.MediaType, genres []domain.Genre) domain.MediaMeta

type Service struct {
	provider      Provider
	certs         *CertificationEnforcer
	certLimit     int
	resolvers     ResolverFactory
	format        Formatter
	transliterate func(string) string
	logger        *slog.Logger
	now           func() time.Time
	timeout       time.Duration
	aiTimeout     time.Duration
	enforceSeries bool
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithResolverFactory(factory ResolverFactory) ServiceOption {
	return func(s *Service) {
		s.resolvers = factory
	}
}

func WithFormatter(format Formatter) ServiceOption {
	return func(s *Service) {
		if format != nil {
			s.format = format
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeout bounds the direct search of one Search call, provider fan-out
// included.
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithAITimeout bounds the AI attempt that precedes direct search. It
// defaults to half of the WithTimeout value.
func WithAITimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.aiTimeout = timeout
	}
}

func WithCertificationConcurrency(limit int) ServiceOption {
	return func(s *Service) {
		s.certLimit = limit
	}
}

// WithSeriesCertification turns on age-rating enforcement for series
// searches. Movies are always enforced when a rating is configured.
func WithSeriesCertification(enabled bool) ServiceOption {
	return func(s *Service) {
		s.enforceSeries = enabled
	}
}

func NewService(provider Provider, opts ...ServiceOption) *Service {
	svc := &Service{
		provider:      provider,
		certLimit:     DefaultCertificationConcurrency,
		format:        meta.Parse,
		transliterate: Transliterate,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.certs = NewCertificationEnforcer(provider, svc.certLimit, svc.logger)
	return svc
}

// Transliterate rewrites a query into ASCII.
func Transliterate(query string) string {
	return strings.TrimSpace(unidecode.Unidecode(query))
}

func hasNonASCII(value string) bool {
	for _, r := range value {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}
