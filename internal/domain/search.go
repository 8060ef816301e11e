package domain

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidMediaType = errors.New("media type must be movie or series")

type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// ParseMediaType accepts the addon type names plus TMDB's "tv" alias.
func ParseMediaType(raw string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie", "movies":
		return MediaTypeMovie, true
	case "series", "tv", "show", "shows":
		return MediaTypeSeries, true
	default:
		return "", false
	}
}

// TMDBPath is the path segment TMDB uses for this media type.
func (t MediaType) TMDBPath() string {
	if t == MediaTypeSeries {
		return "tv"
	}
	return "movie"
}

// Candidate is a raw TMDB record for a movie or show. Credit listings reuse
// the same shape and fill Character, Job or EpisodeCount.
type Candidate struct {
	ID            int     `json:"id"`
	Title         string  `json:"title,omitempty"`
	Name          string  `json:"name,omitempty"`
	OriginalTitle string  `json:"original_title,omitempty"`
	OriginalName  string  `json:"original_name,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	BackdropPath  string  `json:"backdrop_path,omitempty"`
	Popularity    float64 `json:"popularity"`
	VoteCount     int     `json:"vote_count"`
	VoteAverage   float64 `json:"vote_average"`
	Adult         bool    `json:"adult"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	FirstAirDate  string  `json:"first_air_date,omitempty"`
	GenreIDs      []int   `json:"genre_ids,omitempty"`
	MediaType     string  `json:"media_type,omitempty"`
	Character     string  `json:"character,omitempty"`
	Job           string  `json:"job,omitempty"`
	EpisodeCount  int     `json:"episode_count,omitempty"`
}

func (c Candidate) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// Date returns the release date for movies and the first air date for shows.
func (c Candidate) Date() string {
	if c.ReleaseDate != "" {
		return c.ReleaseDate
	}
	return c.FirstAirDate
}

// Year parses the leading four digits of Date.
func (c Candidate) Year() (int, bool) {
	return ParseYear(c.Date())
}

func ParseYear(date string) (int, bool) {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// MetaID is the identifier used for de-duplication and in addon responses.
func MetaID(tmdbID int) string {
	return "tmdb:" + strconv.Itoa(tmdbID)
}

type Person struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	Popularity         float64 `json:"popularity"`
	KnownForDepartment string  `json:"known_for_department,omitempty"`
	Adult              bool    `json:"adult"`
}

type Credits struct {
	Cast []Candidate `json:"cast"`
	Crew []Candidate `json:"crew"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MediaMeta is a catalog entry in the shape the addon protocol expects.
type MediaMeta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Genres      []string `json:"genres,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Description string   `json:"description,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	IMDbRating  string   `json:"imdbRating,omitempty"`
}

type SearchResponse struct {
	Query string      `json:"query"`
	Metas []MediaMeta `json:"metas"`
}

type CatalogResponse struct {
	Metas []MediaMeta `json:"metas"`
}
