package search

import (
	"context"
	"log/slog"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/metrics"
)

// DefaultCertificationConcurrency caps parallel certification lookups per batch.
const DefaultCertificationConcurrency = 8

var movieCertificationLadder = map[domain.AgeRating][]string{
	domain.AgeRatingG:    {"G"},
	domain.AgeRatingPG:   {"G", "PG"},
	domain.AgeRatingPG13: {"G", "PG", "PG-13"},
	domain.AgeRatingR:    {"G", "PG", "PG-13", "R"},
}

var seriesCertificationLadder = map[domain.AgeRating][]string{
	domain.AgeRatingG:    {"TV-G"},
	domain.AgeRatingPG:   {"TV-G", "TV-PG"},
	domain.AgeRatingPG13: {"TV-G", "TV-PG", "TV-14"},
	domain.AgeRatingR:    {"TV-G", "TV-PG", "TV-14", "TV-MA"},
}

// AllowedCertifications lists the US certifications a rating permits.
func AllowedCertifications(mediaType domain.MediaType, rating domain.AgeRating) []string {
	if mediaType == domain.MediaTypeSeries {
		return seriesCertificationLadder[rating]
	}
	return movieCertificationLadder[rating]
}

type CertificationResult struct {
	Items []domain.Candidate
	// Certs holds the certification that let each kept item through, by TMDB id.
	Certs map[int]string
}

type CertificationEnforcer struct {
	source      CertificationSource
	concurrency int
	logger      *slog.Logger
}

func NewCertificationEnforcer(source CertificationSource, concurrency int, logger *slog.Logger) *CertificationEnforcer {
	if concurrency <= 0 {
		concurrency = DefaultCertificationConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificationEnforcer{source: source, concurrency: concurrency, logger: logger}
}

// Enforce keeps the items whose US certification fits rating. It issues one
// lookup per item; a failed lookup counts as "no certification" and drops
// the item. With no rating, or no items, the input comes back untouched.
func (e *CertificationEnforcer) Enforce(ctx context.Context, mediaType domain.MediaType, items []domain.Candidate, rating domain.AgeRating) CertificationResult {
	allowed := AllowedCertifications(mediaType, rating)
	if rating == domain.AgeRatingNone || len(allowed) == 0 || len(items) == 0 || e == nil || e.source == nil {
		return CertificationResult{Items: items, Certs: map[int]string{}}
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, cert := range allowed {
		allowedSet[cert] = struct{}{}
	}

	lookup := e.source.MovieCertifications
	if mediaType == domain.MediaTypeSeries {
		lookup = e.source.TVCertifications
	}

	found := RunLimited(ctx, items, e.concurrency, []string(nil), func(ctx context.Context, item domain.Candidate) ([]string, error) {
		certs, err := lookup(ctx, item.ID)
		if err != nil {
			e.logger.Debug("certification lookup failed",
				slog.String("mediaType", string(mediaType)),
				slog.Int("tmdbId", item.ID),
				slog.String("error", err.Error()),
			)
		}
		return certs, err
	})

	result := CertificationResult{
		Items: make([]domain.Candidate, 0, len(items)),
		Certs: make(map[int]string, len(items)),
	}
	for i, item := range items {
		cert, ok := firstAllowed(found[i], allowedSet)
		switch {
		case ok:
			metrics.CertificationLookupsTotal.WithLabelValues(string(mediaType), "allowed").Inc()
			result.Items = append(result.Items, item)
			result.Certs[item.ID] = cert
		case len(found[i]) == 0:
			metrics.CertificationLookupsTotal.WithLabelValues(string(mediaType), "missing").Inc()
		default:
			metrics.CertificationLookupsTotal.WithLabelValues(string(mediaType), "denied").Inc()
		}
	}
	return result
}

func firstAllowed(certs []string, allowed map[string]struct{}) (string, bool) {
	for _, cert := range certs {
		if _, ok := allowed[cert]; ok {
			return cert, true
		}
	}
	return "", false
}
