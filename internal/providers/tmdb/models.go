package tmdb

import "tmdbaddon/searchservice/internal/domain"

const (
	posterBaseURL   = "https://image.tmdb.org/t/p/w500"
	backdropBaseURL = "https://image.tmdb.org/t/p/original"
)

type pagedResponse[T any] struct {
	Page         int `json:"page"`
	Results      []T `json:"results"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

type releaseDatesResponse struct {
	ID      int `json:"id"`
	Results []struct {
		Region       string `json:"iso_3166_1"`
		ReleaseDates []struct {
			Certification string `json:"certification"`
			ReleaseDate   string `json:"release_date"`
			Type          int    `json:"type"`
		} `json:"release_dates"`
	} `json:"results"`
}

type contentRatingsResponse struct {
	ID      int `json:"id"`
	Results []struct {
		Region string `json:"iso_3166_1"`
		Rating string `json:"rating"`
	} `json:"results"`
}

type genreListResponse struct {
	Genres []domain.Genre `json:"genres"`
}

type tokenResponse struct {
	Success      bool   `json:"success"`
	ExpiresAt    string `json:"expires_at"`
	RequestToken string `json:"request_token"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// PosterURL expands a TMDB poster path into an absolute image URL.
func PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return posterBaseURL + path
}

// BackdropURL expands a TMDB backdrop path into an absolute image URL.
func BackdropURL(path string) string {
	if path == "" {
		return ""
	}
	return backdropBaseURL + path
}
