package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmdbaddon/searchservice/internal/domain"
)

type fakeTMDB struct {
	fakeCertificationSource

	mu         sync.Mutex
	movies     map[string][]domain.Candidate
	shows      map[string][]domain.Candidate
	people     map[string][]domain.Person
	movieCreds map[int]domain.Credits
	tvCreds    map[int]domain.Credits
	genres     []domain.Genre
	titleErr   error
	personErr  error
	genreErr   error
	queries    []string
	creditsFor []int
}

func (f *fakeTMDB) record(query string) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
}

func (f *fakeTMDB) SearchMovies(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	f.record("movie:" + query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	return append([]domain.Candidate(nil), f.movies[query]...), nil
}

func (f *fakeTMDB) SearchTV(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	f.record("tv:" + query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	return append([]domain.Candidate(nil), f.shows[query]...), nil
}

func (f *fakeTMDB) SearchPerson(ctx context.Context, query, language string) ([]domain.Person, error) {
	f.record("person:" + query)
	if f.personErr != nil {
		return nil, f.personErr
	}
	return f.people[query], nil
}

func (f *fakeTMDB) PersonMovieCredits(ctx context.Context, personID int, language string) (domain.Credits, error) {
	f.mu.Lock()
	f.creditsFor = append(f.creditsFor, personID)
	f.mu.Unlock()
	return f.movieCreds[personID], nil
}

func (f *fakeTMDB) PersonTVCredits(ctx context.Context, personID int, language string) (domain.Credits, error) {
	f.mu.Lock()
	f.creditsFor = append(f.creditsFor, personID)
	f.mu.Unlock()
	return f.tvCreds[personID], nil
}

func (f *fakeTMDB) GenreList(ctx context.Context, language string, mediaType domain.MediaType) ([]domain.Genre, error) {
	if f.genreErr != nil {
		return nil, f.genreErr
	}
	return f.genres, nil
}

type fakeResolver struct {
	titles []string
	err    error
	calls  int
}

func (r *fakeResolver) SearchWithAI(ctx context.Context, query string, mediaType domain.MediaType) ([]string, error) {
	r.calls++
	return r.titles, r.err
}

// stalledResolver never answers before its context ends.
type stalledResolver struct{}

func (stalledResolver) SearchWithAI(ctx context.Context, query string, mediaType domain.MediaType) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func newTestService(provider Provider, opts ...ServiceOption) *Service {
	base := []ServiceOption{WithLogger(quietLogger()), WithClock(fixedClock)}
	return NewService(provider, append(base, opts...)...)
}

func openConfig() domain.SearchConfig {
	cfg := domain.DefaultSearchConfig()
	cfg.MinVotesMovies = 0
	cfg.MinVotesTV = 0
	cfg.NumYears = 0
	return cfg
}

func movie(id int, title, date string, popularity float64) domain.Candidate {
	return domain.Candidate{ID: id, Title: title, ReleaseDate: date, Popularity: popularity, VoteCount: 1000, VoteAverage: 7}
}

func TestSearchMergesTitleAndPersonBranches(t *testing.T) {
	provider := &fakeTMDB{
		movies: map[string][]domain.Candidate{
			"keanu": {movie(1, "Keanu", "2016-04-29", 10)},
		},
		people: map[string][]domain.Person{
			"keanu": {{ID: 7, Name: "Keanu Lookalike", Popularity: 1}, {ID: 6384, Name: "Keanu Reeves", Popularity: 80}},
		},
		movieCreds: map[int]domain.Credits{
			6384: {
				Cast: []domain.Candidate{movie(603, "The Matrix", "1999-03-31", 90), movie(1, "Keanu", "2016-04-29", 10)},
				Crew: []domain.Candidate{
					{ID: 900, Title: "Man of Tai Chi", ReleaseDate: "2013-07-05", Job: "Director", Popularity: 5, VoteCount: 500},
					{ID: 901, Title: "Catering", Job: "Producer", Popularity: 50, VoteCount: 500},
				},
			},
		},
	}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "en-US", "keanu", openConfig())
	require.NoError(t, err)

	assert.Equal(t, "keanu", resp.Query)
	assert.Equal(t, []string{"tmdb:1", "tmdb:603", "tmdb:900"}, metaIDs(resp.Metas))
	assert.Equal(t, []int{6384}, provider.creditsFor)
	assert.Equal(t, "Keanu (2016)", resp.Metas[0].Name)
}

func TestSearchNoPersonMatchLeavesTitles(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"dune": {movie(438631, "Dune", "2021-09-15", 50), movie(693134, "Dune: Part Two", "2024-02-27", 90)},
	}}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "dune", openConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"tmdb:693134", "tmdb:438631"}, metaIDs(resp.Metas))
	assert.Empty(t, provider.creditsFor)
}

func TestSearchBranchFailuresYieldEmptyList(t *testing.T) {
	provider := &fakeTMDB{
		titleErr:  errors.New("tmdb down"),
		personErr: errors.New("tmdb down"),
		genreErr:  errors.New("tmdb down"),
	}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "anything", openConfig())
	require.NoError(t, err)

	require.NotNil(t, resp.Metas)
	assert.Empty(t, resp.Metas)
}

func TestSearchRejectsUnknownType(t *testing.T) {
	svc := newTestService(&fakeTMDB{})

	_, err := svc.Search(context.Background(), SearchCatalogID, "podcast", "", "q", openConfig())

	assert.ErrorIs(t, err, ErrInvalidMediaType)
}

func TestSearchAppliesAgeRatingToMovies(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"matrix": {movie(603, "The Matrix", "1999-03-31", 90), movie(604, "The Matrix Kids", "2001-01-01", 10)},
	}}
	provider.fakeCertificationSource.movies = map[int][]string{603: {"R"}, 604: {"PG"}}
	svc := newTestService(provider)

	cfg := openConfig()
	cfg.AgeRating = domain.AgeRatingPG13
	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "matrix", cfg)
	require.NoError(t, err)

	require.Len(t, resp.Metas, 1)
	assert.Equal(t, "tmdb:604", resp.Metas[0].ID)
	assert.Equal(t, "The Matrix Kids (2001) – PG", resp.Metas[0].Name)
}

func TestSearchSeriesSkipsCertificationByDefault(t *testing.T) {
	provider := &fakeTMDB{
		shows: map[string][]domain.Candidate{
			"breaking": {{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", Popularity: 200, VoteCount: 12000}},
		},
		people: map[string][]domain.Person{
			"breaking": {{ID: 17419, Name: "Bryan Cranston", Popularity: 30}},
		},
		tvCreds: map[int]domain.Credits{
			17419: {Cast: []domain.Candidate{
				{ID: 1396, Name: "Breaking Bad", EpisodeCount: 62, Popularity: 200, VoteCount: 12000},
				{ID: 2004, Name: "Malcolm in the Middle", EpisodeCount: 151, Popularity: 80, VoteCount: 1500},
				{ID: 1400, Name: "Seinfeld", EpisodeCount: 1, Popularity: 90, VoteCount: 4000},
			}},
		},
	}
	provider.fakeCertificationSource.shows = map[int][]string{1396: {"TV-MA"}}
	svc := newTestService(provider)

	cfg := openConfig()
	cfg.AgeRating = domain.AgeRatingG
	resp, err := svc.Search(context.Background(), SearchCatalogID, "tv", "", "breaking", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmdb:1396", "tmdb:2004"}, metaIDs(resp.Metas))
	assert.Equal(t, "Breaking Bad", resp.Metas[0].Name)
	assert.Equal(t, "series", resp.Metas[0].Type)
	assert.Empty(t, provider.fakeCertificationSource.calls)
}

func TestSearchSeriesCertificationWhenEnabled(t *testing.T) {
	provider := &fakeTMDB{shows: map[string][]domain.Candidate{
		"office": {
			{ID: 2316, Name: "The Office", FirstAirDate: "2005-03-24", Popularity: 100, VoteCount: 4000},
			{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", Popularity: 200, VoteCount: 12000},
		},
	}}
	provider.fakeCertificationSource.shows = map[int][]string{2316: {"TV-14"}, 1396: {"TV-MA"}}
	svc := newTestService(provider, WithSeriesCertification(true))

	cfg := openConfig()
	cfg.AgeRating = domain.AgeRatingPG13
	resp, err := svc.Search(context.Background(), SearchCatalogID, "series", "", "office", cfg)
	require.NoError(t, err)

	require.Len(t, resp.Metas, 1)
	assert.Equal(t, "The Office (2005) – TV-14", resp.Metas[0].Name)
}

func TestSearchTransliteratesNonASCIIQuery(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"Amelie": {movie(194, "Amélie", "2001-04-25", 40)},
	}}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "Amélie", openConfig())
	require.NoError(t, err)

	assert.Equal(t, "Amélie", resp.Query)
	assert.Equal(t, []string{"tmdb:194"}, metaIDs(resp.Metas))
	assert.Contains(t, provider.queries, "movie:Amelie")
	assert.Contains(t, provider.queries, "person:Amelie")
}

func TestSearchPersonCreditsRespectCap(t *testing.T) {
	cast := make([]domain.Candidate, 0, 80)
	for i := 1; i <= 80; i++ {
		cast = append(cast, movie(1000+i, "Credit", "2010-01-01", float64(200-i)))
	}
	titles := make([]domain.Candidate, 0, 10)
	for i := 1; i <= 10; i++ {
		titles = append(titles, movie(i, "Title", "2010-01-01", float64(100-i)))
	}
	provider := &fakeTMDB{
		movies:     map[string][]domain.Candidate{"prolific": titles},
		people:     map[string][]domain.Person{"prolific": {{ID: 1, Popularity: 10}}},
		movieCreds: map[int]domain.Credits{1: {Cast: cast}},
	}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "prolific", openConfig())
	require.NoError(t, err)

	assert.Len(t, resp.Metas, maxMergedResults)
	assert.Equal(t, "tmdb:1", resp.Metas[0].ID)
	assert.Equal(t, "tmdb:1040", resp.Metas[maxMergedResults-1].ID)
}

func TestSearchAIPathResolvesTitlesInOrder(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"Inception":    {movie(27205, "Inception", "2010-07-15", 80), movie(1, "Inception: The Cobol Job", "2010-12-07", 3)},
		"Interstellar": {movie(157336, "Interstellar", "2014-11-05", 90)},
		"Memento":      {movie(77, "Memento", "2000-10-11", 30)},
		"Again":        {movie(27205, "Inception", "2010-07-15", 80)},
	}}
	resolver := &fakeResolver{titles: []string{"Inception", "Unknown Film", "Interstellar", "Again", "Memento"}}
	var gotKey string
	svc := newTestService(provider, WithResolverFactory(func(apiKey string) TitleResolver {
		gotKey = apiKey
		return resolver
	}))

	cfg := openConfig()
	cfg.AIKey = "user-key"
	resp, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "mind-bending nolan films", cfg)
	require.NoError(t, err)

	assert.Equal(t, "user-key", gotKey)
	assert.Equal(t, []string{"tmdb:27205", "tmdb:157336", "tmdb:77"}, metaIDs(resp.Metas))
	assert.Equal(t, "Inception", resp.Metas[0].Name)
	for _, query := range provider.queries {
		assert.False(t, strings.HasPrefix(query, "person:"), "direct search ran: %s", query)
	}
}

func TestSearchAIFailureFallsBackToDirect(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"heist": {movie(10, "Heist", "2001-11-09", 12)},
	}}
	resolver := &fakeResolver{err: errors.New("quota exceeded")}
	svc := newTestService(provider, WithResolverFactory(func(string) TitleResolver { return resolver }))

	cfg := openConfig()
	cfg.AIKey = "user-key"
	resp, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, []string{"tmdb:10"}, metaIDs(resp.Metas))
}

func TestSearchFullTitleBatchLeavesNoRoomForCredits(t *testing.T) {
	titles := make([]domain.Candidate, 0, 60)
	for i := 1; i <= 60; i++ {
		titles = append(titles, movie(i, "Title", "2010-01-01", float64(100-i)))
	}
	provider := &fakeTMDB{
		movies:     map[string][]domain.Candidate{"prolific": titles},
		people:     map[string][]domain.Person{"prolific": {{ID: 1, Popularity: 10}}},
		movieCreds: map[int]domain.Credits{1: {Cast: []domain.Candidate{movie(5000, "Credit", "2010-01-01", 500)}}},
	}
	svc := newTestService(provider)

	resp, err := svc.Search(context.Background(), SearchCatalogID, "movie", "", "prolific", openConfig())
	require.NoError(t, err)

	assert.Len(t, resp.Metas, 60)
	assert.NotContains(t, metaIDs(resp.Metas), "tmdb:5000")
}

func TestSearchAITimeoutLeavesBudgetForDirect(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"heist": {movie(10, "Heist", "2001-11-09", 12)},
	}}
	svc := newTestService(provider,
		WithResolverFactory(func(string) TitleResolver { return stalledResolver{} }),
		WithTimeout(300*time.Millisecond),
	)

	cfg := openConfig()
	cfg.AIKey = "user-key"
	started := time.Now()
	resp, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmdb:10"}, metaIDs(resp.Metas))
	assert.Less(t, time.Since(started), 300*time.Millisecond)
}

func TestSearchExplicitAITimeout(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"heist": {movie(10, "Heist", "2001-11-09", 12)},
	}}
	svc := newTestService(provider,
		WithResolverFactory(func(string) TitleResolver { return stalledResolver{} }),
		WithTimeout(time.Second),
		WithAITimeout(50*time.Millisecond),
	)

	cfg := openConfig()
	cfg.AIKey = "user-key"
	started := time.Now()
	resp, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmdb:10"}, metaIDs(resp.Metas))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestSearchAINoMatchesFallsBackToDirect(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{
		"heist": {movie(10, "Heist", "2001-11-09", 12)},
	}}
	resolver := &fakeResolver{titles: []string{"Nothing Like This"}}
	svc := newTestService(provider, WithResolverFactory(func(string) TitleResolver { return resolver }))

	cfg := openConfig()
	cfg.AIKey = "user-key"
	resp, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmdb:10"}, metaIDs(resp.Metas))
}

func TestSearchAIRequiresKeyAndCatalog(t *testing.T) {
	provider := &fakeTMDB{movies: map[string][]domain.Candidate{"heist": {movie(10, "Heist", "2001-11-09", 12)}}}
	resolver := &fakeResolver{titles: []string{"Heat"}}
	svc := newTestService(provider, WithResolverFactory(func(string) TitleResolver { return resolver }))

	cfg := openConfig()
	_, err := svc.Search(context.Background(), AISearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	cfg.AIKey = "user-key"
	_, err = svc.Search(context.Background(), SearchCatalogID, "movie", "", "heist", cfg)
	require.NoError(t, err)

	assert.Zero(t, resolver.calls)
}

func TestCreditCandidates(t *testing.T) {
	credits := domain.Credits{
		Cast: []domain.Candidate{{ID: 1, EpisodeCount: 4}, {ID: 2, EpisodeCount: 5}, {ID: 3}},
		Crew: []domain.Candidate{{ID: 2, Job: "Director"}, {ID: 4, Job: "Writer"}, {ID: 5, Job: "Editor"}},
	}

	assert.Equal(t, []int{1, 2, 3, 4}, candidateIDs(creditCandidates(credits, domain.MediaTypeMovie)))
	assert.Equal(t, []int{2, 4}, candidateIDs(creditCandidates(credits, domain.MediaTypeSeries)))
}
