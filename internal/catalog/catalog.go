// Package catalog serves the browse catalogs and lookup tables that sit next
// to search: trending titles and genre lists.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/meta"
)

// PageSize is how many items one TMDB trending page holds.
const PageSize = 20

var ErrInvalidMediaType = domain.ErrInvalidMediaType

type Source interface {
	Trending(ctx context.Context, mediaType domain.MediaType, window, language string, page int) ([]domain.Candidate, error)
	GenreList(ctx context.Context, language string, mediaType domain.MediaType) ([]domain.Genre, error)
}

type Service struct {
	source Source
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(source Source, opts ...Option) *Service {
	svc := &Service{source: source, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// TrendingWindow maps the catalog's genre extra onto a TMDB time window.
func TrendingWindow(genre string) string {
	if strings.EqualFold(strings.TrimSpace(genre), "week") {
		return "week"
	}
	return "day"
}

// PageForSkip converts an addon skip offset into a 1-based TMDB page.
func PageForSkip(skip int) int {
	if skip <= 0 {
		return 1
	}
	return skip/PageSize + 1
}

// Trending returns one page of trending titles. A missing genre table only
// leaves the metas without genres.
func (s *Service) Trending(ctx context.Context, rawType, language, genre string, skip int) (domain.CatalogResponse, error) {
	response := domain.CatalogResponse{Metas: []domain.MediaMeta{}}
	mediaType, ok := domain.ParseMediaType(rawType)
	if !ok {
		return response, fmt.Errorf("%w: %q", ErrInvalidMediaType, rawType)
	}

	window := TrendingWindow(genre)
	items, err := s.source.Trending(ctx, mediaType, window, language, PageForSkip(skip))
	if err != nil {
		return response, fmt.Errorf("trending %s/%s: %w", mediaType, window, err)
	}

	genres, err := s.source.GenreList(ctx, language, mediaType)
	if err != nil {
		s.logger.Warn("genre list unavailable for trending",
			slog.String("mediaType", string(mediaType)),
			slog.String("error", err.Error()),
		)
		genres = nil
	}

	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		if item.ID <= 0 {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		response.Metas = append(response.Metas, meta.Parse(item, mediaType, genres))
	}
	return response, nil
}

func (s *Service) Genres(ctx context.Context, rawType, language string) ([]domain.Genre, error) {
	mediaType, ok := domain.ParseMediaType(rawType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMediaType, rawType)
	}
	genres, err := s.source.GenreList(ctx, language, mediaType)
	if err != nil {
		return nil, fmt.Errorf("genre list %s: %w", mediaType, err)
	}
	if genres == nil {
		genres = []domain.Genre{}
	}
	return genres, nil
}
