package search

import (
	"sort"
	"time"

	"tmdbaddon/searchservice/internal/domain"
)

// FilterCandidates applies the adult, popularity, vote-count and recency
// filters in that order.
func FilterCandidates(items []domain.Candidate, mediaType domain.MediaType, cfg domain.SearchConfig, now time.Time) []domain.Candidate {
	minVotes := cfg.MinVotes(mediaType)
	out := make([]domain.Candidate, 0, len(items))
	for _, item := range items {
		if item.Adult && !cfg.IncludeAdult {
			continue
		}
		if item.Popularity < cfg.MinPopularity {
			continue
		}
		if item.VoteCount < minVotes {
			continue
		}
		if !withinYears(item.Date(), cfg.NumYears, now) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// withinYears reports whether date falls in the last numYears calendar years,
// the current year included. numYears == 0 disables the window; a date whose
// year cannot be read fails it.
func withinYears(date string, numYears int, now time.Time) bool {
	if numYears <= 0 {
		return true
	}
	year, ok := domain.ParseYear(date)
	if !ok {
		return false
	}
	return year >= now.Year()-numYears+1
}

// SortCandidates orders items in place by key and direction. Equal keys keep
// their input order.
func SortCandidates(items []domain.Candidate, key domain.SortKey, dir domain.SortDirection) {
	value := sortValue(key)
	desc := dir != domain.SortAsc
	sort.SliceStable(items, func(i, j int) bool {
		left, right := value(items[i]), value(items[j])
		if desc {
			return left > right
		}
		return left < right
	})
}

func sortValue(key domain.SortKey) func(domain.Candidate) float64 {
	switch key {
	case domain.SortKeyVoteAverage:
		return func(item domain.Candidate) float64 { return item.VoteAverage }
	default:
		return func(item domain.Candidate) float64 { return item.Popularity }
	}
}
