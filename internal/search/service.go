package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/metrics"
	"tmdbaddon/searchservice/internal/telemetry"
)

const (
	// AISearchCatalogID is the catalog whose searches go through the title resolver first.
	AISearchCatalogID = "tmdb.aisearch"
	// SearchCatalogID is the plain search catalog.
	SearchCatalogID = "tmdb.search"

	// maxMergedResults caps the list once person credits start being merged.
	maxMergedResults = 50
	// minSeriesEpisodes is how many episodes an actor needs for a show to
	// count among their credits.
	minSeriesEpisodes = 5
)

// batch is one search strategy's output, filtered and ordered, ready to merge.
type batch struct {
	items []domain.Candidate
	certs map[int]string
}

// outcome carries a sub-task's result or the reason it contributes nothing.
type outcome[T any] struct {
	value T
	err   error
}

// Search runs the catalog search pipeline. Provider and AI failures only
// shrink the result; the only error is an unsupported media type.
func (s *Service) Search(ctx context.Context, catalogID, rawType, language, query string, cfg domain.SearchConfig) (domain.SearchResponse, error) {
	response := domain.SearchResponse{Query: query, Metas: []domain.MediaMeta{}}
	mediaType, ok := domain.ParseMediaType(rawType)
	if !ok {
		return response, fmt.Errorf("%w: %q", ErrInvalidMediaType, rawType)
	}
	cfg = cfg.Normalize()

	ctx, span := telemetry.StartSpan(ctx, "search.Search", trace.WithAttributes(
		attribute.String("catalog", catalogID),
		attribute.String("media_type", string(mediaType)),
	))
	defer span.End()

	path := "direct"
	var metas []domain.MediaMeta
	if catalogID == AISearchCatalogID && cfg.AIKey != "" && s.resolvers != nil {
		aiCtx, cancel := withBudget(ctx, s.aiBudget())
		metas = s.aiSearch(aiCtx, mediaType, language, query, cfg)
		cancel()
		if len(metas) > 0 {
			path = "ai"
		}
	}
	if len(metas) == 0 {
		// The fallback gets its own budget; a slow resolver must not starve it.
		directCtx, cancel := withBudget(ctx, s.timeout)
		metas = s.directSearch(directCtx, mediaType, language, query, cfg)
		cancel()
	}

	if metas != nil {
		response.Metas = metas
	}
	span.SetAttributes(attribute.Int("results", len(response.Metas)), attribute.String("path", path))
	metrics.SearchResultsSize.WithLabelValues(string(mediaType), path).Observe(float64(len(response.Metas)))
	return response, nil
}

// aiSearch asks the resolver for titles and keeps the first TMDB hit for
// each. A title whose lookup fails only loses its own slot.
func (s *Service) aiSearch(ctx context.Context, mediaType domain.MediaType, language, query string, cfg domain.SearchConfig) []domain.MediaMeta {
	resolver := s.resolvers(cfg.AIKey)
	if resolver == nil {
		return nil
	}
	titles, err := resolver.SearchWithAI(ctx, query, mediaType)
	if err != nil {
		metrics.AISearchTotal.WithLabelValues("error").Inc()
		s.logger.Warn("ai title resolution failed, falling back to direct search",
			slog.String("mediaType", string(mediaType)),
			slog.String("query", domain.Truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(titles) == 0 {
		metrics.AISearchTotal.WithLabelValues("empty").Inc()
		return nil
	}

	genres := s.genres(ctx, language, mediaType)
	hits := iter.Map(titles, func(title *string) outcome[*domain.Candidate] {
		item, err := s.firstTitleHit(ctx, mediaType, *title, language, cfg.IncludeAdult)
		return outcome[*domain.Candidate]{value: item, err: err}
	})

	merger := NewMerger(s.format, mediaType, genres)
	for i, hit := range hits {
		if hit.err != nil {
			s.logger.Debug("ai title lookup failed",
				slog.String("title", domain.Truncate(titles[i], 80)),
				slog.String("error", hit.err.Error()),
			)
			continue
		}
		if hit.value == nil {
			continue
		}
		merger.Append([]domain.Candidate{*hit.value}, nil, 0)
	}

	if merger.Len() == 0 {
		metrics.AISearchTotal.WithLabelValues("empty").Inc()
		return nil
	}
	metrics.AISearchTotal.WithLabelValues("hit").Inc()
	return merger.Metas()
}

// aiBudget bounds the resolver round trip and its title lookups. Without an
// explicit AI timeout it takes half of the search timeout.
func (s *Service) aiBudget() time.Duration {
	if s.aiTimeout > 0 {
		return s.aiTimeout
	}
	return s.timeout / 2
}

func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

func (s *Service) firstTitleHit(ctx context.Context, mediaType domain.MediaType, title, language string, includeAdult bool) (*domain.Candidate, error) {
	items, err := s.searchTitles(ctx, mediaType, title, language, includeAdult)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// directSearch runs the title and person strategies side by side and merges
// title matches first, so they win identity ties.
func (s *Service) directSearch(ctx context.Context, mediaType domain.MediaType, language, query string, cfg domain.SearchConfig) []domain.MediaMeta {
	genres := s.genres(ctx, language, mediaType)

	searchQuery := strings.TrimSpace(query)
	if hasNonASCII(searchQuery) {
		if transliterated := s.transliterate(searchQuery); transliterated != "" {
			searchQuery = transliterated
		}
	}

	var titles, people outcome[batch]
	var group errgroup.Group
	group.Go(func() error {
		titles.value, titles.err = s.titleBranch(ctx, mediaType, searchQuery, language, cfg)
		return nil
	})
	group.Go(func() error {
		people.value, people.err = s.personBranch(ctx, mediaType, searchQuery, language, cfg)
		return nil
	})
	_ = group.Wait()

	merger := NewMerger(s.format, mediaType, genres)
	if titles.err != nil {
		s.logBranchFailure("title", mediaType, query, titles.err)
	} else {
		merger.Append(titles.value.items, s.decorator(mediaType, titles.value.certs), 0)
	}
	if people.err != nil {
		s.logBranchFailure("person", mediaType, query, people.err)
	} else {
		// The cap is checked before each credit, so a title batch of
		// maxMergedResults or more leaves no room for credits.
		merger.Append(people.value.items, s.decorator(mediaType, people.value.certs), maxMergedResults)
	}
	return merger.Metas()
}

func (s *Service) titleBranch(ctx context.Context, mediaType domain.MediaType, query, language string, cfg domain.SearchConfig) (batch, error) {
	items, err := s.searchTitles(ctx, mediaType, query, language, cfg.IncludeAdult)
	if err != nil {
		return batch{}, fmt.Errorf("title search: %w", err)
	}
	return s.refine(ctx, mediaType, items, cfg), nil
}

// personBranch expands the most popular person matching query into their
// credits.
func (s *Service) personBranch(ctx context.Context, mediaType domain.MediaType, query, language string, cfg domain.SearchConfig) (batch, error) {
	people, err := s.provider.SearchPerson(ctx, query, language)
	if err != nil {
		return batch{}, fmt.Errorf("person search: %w", err)
	}
	person, ok := mostPopular(people)
	if !ok {
		return batch{}, nil
	}

	var credits domain.Credits
	if mediaType == domain.MediaTypeSeries {
		credits, err = s.provider.PersonTVCredits(ctx, person.ID, language)
	} else {
		credits, err = s.provider.PersonMovieCredits(ctx, person.ID, language)
	}
	if err != nil {
		return batch{}, fmt.Errorf("credits for person %d: %w", person.ID, err)
	}
	return s.refine(ctx, mediaType, creditCandidates(credits, mediaType), cfg), nil
}

// refine filters, enforces certification where it applies, then sorts.
func (s *Service) refine(ctx context.Context, mediaType domain.MediaType, items []domain.Candidate, cfg domain.SearchConfig) batch {
	items = FilterCandidates(items, mediaType, cfg, s.now())
	certs := map[int]string{}
	if s.enforcesCertification(mediaType) {
		result := s.certs.Enforce(ctx, mediaType, items, cfg.AgeRating)
		items, certs = result.Items, result.Certs
	}
	SortCandidates(items, cfg.SortBy, cfg.SortDir)
	return batch{items: items, certs: certs}
}

func (s *Service) enforcesCertification(mediaType domain.MediaType) bool {
	return mediaType == domain.MediaTypeMovie || s.enforceSeries
}

// decorator appends year and certification to names wherever certification
// is enforced. Series names stay plain otherwise.
func (s *Service) decorator(mediaType domain.MediaType, certs map[int]string) Decorator {
	if !s.enforcesCertification(mediaType) {
		return nil
	}
	return certificationDecorator(certs)
}

func (s *Service) searchTitles(ctx context.Context, mediaType domain.MediaType, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	if mediaType == domain.MediaTypeSeries {
		return s.provider.SearchTV(ctx, query, language, includeAdult)
	}
	return s.provider.SearchMovies(ctx, query, language, includeAdult)
}

// genres resolves the genre table; without one, metas simply carry no genres.
func (s *Service) genres(ctx context.Context, language string, mediaType domain.MediaType) []domain.Genre {
	genres, err := s.provider.GenreList(ctx, language, mediaType)
	if err != nil {
		s.logger.Warn("genre list unavailable",
			slog.String("mediaType", string(mediaType)),
			slog.String("language", language),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return genres
}

func (s *Service) logBranchFailure(branch string, mediaType domain.MediaType, query string, err error) {
	s.logger.Warn("search branch failed",
		slog.String("branch", branch),
		slog.String("mediaType", string(mediaType)),
		slog.String("query", domain.Truncate(query, 80)),
		slog.String("error", err.Error()),
	)
}

func mostPopular(people []domain.Person) (domain.Person, bool) {
	if len(people) == 0 {
		return domain.Person{}, false
	}
	best := people[0]
	for _, person := range people[1:] {
		if person.Popularity > best.Popularity {
			best = person
		}
	}
	return best, true
}

// creditCandidates merges cast credits with directing and writing crew
// credits. Series cast need minSeriesEpisodes appearances. A title credited
// twice keeps its first entry.
func creditCandidates(credits domain.Credits, mediaType domain.MediaType) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(credits.Cast)+len(credits.Crew))
	seen := make(map[int]struct{}, cap(out))
	add := func(item domain.Candidate) {
		if _, dup := seen[item.ID]; dup {
			return
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	for _, item := range credits.Cast {
		if mediaType == domain.MediaTypeSeries && item.EpisodeCount < minSeriesEpisodes {
			continue
		}
		add(item)
	}
	for _, item := range credits.Crew {
		if item.Job == "Director" || item.Job == "Writer" {
			add(item)
		}
	}
	return out
}
