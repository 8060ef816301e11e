// Package meta converts TMDB records into addon catalog metas.
package meta

import (
	"strconv"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/providers/tmdb"
)

// Parse builds the catalog meta for one record. Genre ids missing from the
// table are skipped.
func Parse(item domain.Candidate, mediaType domain.MediaType, genres []domain.Genre) domain.MediaMeta {
	meta := domain.MediaMeta{
		ID:          domain.MetaID(item.ID),
		Type:        string(mediaType),
		Name:        displayName(item, mediaType),
		Genres:      genreNames(item.GenreIDs, genres),
		Poster:      tmdb.PosterURL(item.PosterPath),
		Background:  tmdb.BackdropURL(item.BackdropPath),
		Description: item.Overview,
	}
	if year, ok := item.Year(); ok {
		meta.ReleaseInfo = strconv.Itoa(year)
	}
	if item.VoteAverage > 0 {
		meta.IMDbRating = strconv.FormatFloat(item.VoteAverage, 'f', 1, 64)
	}
	return meta
}

func displayName(item domain.Candidate, mediaType domain.MediaType) string {
	if mediaType == domain.MediaTypeSeries {
		for _, name := range []string{item.Name, item.Title, item.OriginalName} {
			if name != "" {
				return name
			}
		}
		return ""
	}
	for _, name := range []string{item.Title, item.Name, item.OriginalTitle} {
		if name != "" {
			return name
		}
	}
	return ""
}

func genreNames(ids []int, genres []domain.Genre) []string {
	if len(ids) == 0 || len(genres) == 0 {
		return nil
	}
	byID := make(map[int]string, len(genres))
	for _, genre := range genres {
		byID[genre.ID] = genre.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
