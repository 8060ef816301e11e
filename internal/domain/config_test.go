package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchConfigDefaultsWhenAbsent(t *testing.T) {
	var cfg SearchConfig
	require.NoError(t, json.Unmarshal([]byte(`{}`), &cfg))

	require.Equal(t, DefaultMinVotes, cfg.MinVotesMovies)
	require.Equal(t, DefaultMinVotes, cfg.MinVotesTV)
	require.Equal(t, DefaultNumYears, cfg.NumYears)
	require.Equal(t, SortKeyPopularity, cfg.SortBy)
	require.Equal(t, SortDesc, cfg.SortDir)
	require.Equal(t, AgeRatingNone, cfg.AgeRating)
	require.False(t, cfg.IncludeAdult)
}

func TestSearchConfigParsesConfigurePagePayload(t *testing.T) {
	payload := `{
		"includeAdult": "true",
		"minVotesMovies": "250",
		"minVotesTV": 0,
		"minPopularity": 3.5,
		"numYears": "no limit",
		"sortBy": "vote_average",
		"sortDir": "asc",
		"ageRating": "pg-13",
		"geminikey": "  secret ",
		"castCount": "Unlimited"
	}`
	var cfg SearchConfig
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))

	require.True(t, cfg.IncludeAdult)
	require.Equal(t, 250, cfg.MinVotesMovies)
	require.Equal(t, 0, cfg.MinVotesTV)
	require.InDelta(t, 3.5, cfg.MinPopularity, 1e-9)
	require.Equal(t, 0, cfg.NumYears)
	require.Equal(t, SortKeyVoteAverage, cfg.SortBy)
	require.Equal(t, SortAsc, cfg.SortDir)
	require.Equal(t, AgeRatingPG13, cfg.AgeRating)
	require.Equal(t, "secret", cfg.AIKey)
	require.Equal(t, 0, cfg.CastCount)
}

func TestSearchConfigUnknownValuesFallBack(t *testing.T) {
	var cfg SearchConfig
	require.NoError(t, json.Unmarshal([]byte(`{"sortBy":"revenue","sortDir":"sideways","ageRating":"NC-17","numYears":-3}`), &cfg))

	require.Equal(t, SortKeyPopularity, cfg.SortBy)
	require.Equal(t, SortDesc, cfg.SortDir)
	require.Equal(t, AgeRatingNone, cfg.AgeRating)
	require.Equal(t, 0, cfg.NumYears)
}

func TestSearchConfigUnreadableFieldsKeepDefaults(t *testing.T) {
	var cfg SearchConfig
	payload := `{"numYears":"forever-ish","castCount":"lots","minVotesMovies":"many","minVotesTV":[1],"minPopularity":"12.5","sortBy":"vote_average"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))

	require.Equal(t, DefaultNumYears, cfg.NumYears)
	require.Equal(t, 0, cfg.CastCount)
	require.Equal(t, DefaultMinVotes, cfg.MinVotesMovies)
	require.Equal(t, DefaultMinVotes, cfg.MinVotesTV)
	require.Equal(t, 12.5, cfg.MinPopularity)
	require.Equal(t, SortKeyVoteAverage, cfg.SortBy)
}

func TestSearchConfigMalformedJSONIsAnError(t *testing.T) {
	var cfg SearchConfig
	require.Error(t, json.Unmarshal([]byte(`{"numYears":`), &cfg))
}

func TestParseMediaType(t *testing.T) {
	for raw, want := range map[string]MediaType{
		"movie":  MediaTypeMovie,
		"series": MediaTypeSeries,
		" TV ":   MediaTypeSeries,
		"Movies": MediaTypeMovie,
	} {
		got, ok := ParseMediaType(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := ParseMediaType("channel")
	require.False(t, ok)
}

func TestCandidateYear(t *testing.T) {
	year, ok := Candidate{ReleaseDate: "1999-03-31"}.Year()
	require.True(t, ok)
	require.Equal(t, 1999, year)

	year, ok = Candidate{FirstAirDate: "2008-01-20"}.Year()
	require.True(t, ok)
	require.Equal(t, 2008, year)

	_, ok = Candidate{}.Year()
	require.False(t, ok)
	_, ok = Candidate{ReleaseDate: "TBA"}.Year()
	require.False(t, ok)
}
