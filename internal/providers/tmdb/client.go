package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/metrics"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"
	providerName    = "tmdb"
	// certificationRegion is the release region whose ratings feed the
	// certification ladders.
	certificationRegion = "US"
	maxResponseBytes    = 2 << 20
)

var (
	ErrNotConfigured = errors.New("tmdb api key not configured")
	ErrRejected      = errors.New("tmdb rejected the request")
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) SearchMovies(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	return c.searchTitles(ctx, "search_movie", "/search/movie", query, language, includeAdult)
}

func (c *Client) SearchTV(ctx context.Context, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	return c.searchTitles(ctx, "search_tv", "/search/tv", query, language, includeAdult)
}

func (c *Client) searchTitles(ctx context.Context, endpoint, path, query, language string, includeAdult bool) ([]domain.Candidate, error) {
	params := url.Values{
		"query":         {strings.TrimSpace(query)},
		"language":      {languageOrDefault(language)},
		"include_adult": {strconv.FormatBool(includeAdult)},
	}
	var response pagedResponse[domain.Candidate]
	if err := c.get(ctx, endpoint, path, params, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

func (c *Client) SearchPerson(ctx context.Context, query, language string) ([]domain.Person, error) {
	params := url.Values{
		"query":    {strings.TrimSpace(query)},
		"language": {languageOrDefault(language)},
	}
	var response pagedResponse[domain.Person]
	if err := c.get(ctx, "search_person", "/search/person", params, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

func (c *Client) PersonMovieCredits(ctx context.Context, personID int, language string) (domain.Credits, error) {
	return c.personCredits(ctx, "person_movie_credits", personID, "movie_credits", language)
}

func (c *Client) PersonTVCredits(ctx context.Context, personID int, language string) (domain.Credits, error) {
	return c.personCredits(ctx, "person_tv_credits", personID, "tv_credits", language)
}

func (c *Client) personCredits(ctx context.Context, endpoint string, personID int, kind, language string) (domain.Credits, error) {
	var credits domain.Credits
	path := fmt.Sprintf("/person/%d/%s", personID, kind)
	if err := c.get(ctx, endpoint, path, url.Values{"language": {languageOrDefault(language)}}, &credits); err != nil {
		return domain.Credits{}, err
	}
	return credits, nil
}

// MovieCertifications returns the non-empty US certifications of a movie in
// the order TMDB lists its release dates.
func (c *Client) MovieCertifications(ctx context.Context, movieID int) ([]string, error) {
	var response releaseDatesResponse
	if err := c.get(ctx, "movie_release_dates", fmt.Sprintf("/movie/%d/release_dates", movieID), nil, &response); err != nil {
		return nil, err
	}
	for _, country := range response.Results {
		if !strings.EqualFold(country.Region, certificationRegion) {
			continue
		}
		certs := make([]string, 0, len(country.ReleaseDates))
		for _, release := range country.ReleaseDates {
			if cert := strings.TrimSpace(release.Certification); cert != "" {
				certs = append(certs, cert)
			}
		}
		return certs, nil
	}
	return nil, nil
}

// TVCertifications returns the US content rating of a show, if any.
func (c *Client) TVCertifications(ctx context.Context, tvID int) ([]string, error) {
	var response contentRatingsResponse
	if err := c.get(ctx, "tv_content_ratings", fmt.Sprintf("/tv/%d/content_ratings", tvID), nil, &response); err != nil {
		return nil, err
	}
	for _, rating := range response.Results {
		if !strings.EqualFold(rating.Region, certificationRegion) {
			continue
		}
		if value := strings.TrimSpace(rating.Rating); value != "" {
			return []string{value}, nil
		}
		return nil, nil
	}
	return nil, nil
}

func (c *Client) GenreList(ctx context.Context, language string, mediaType domain.MediaType) ([]domain.Genre, error) {
	var response genreListResponse
	path := "/genre/" + mediaType.TMDBPath() + "/list"
	if err := c.get(ctx, "genre_list", path, url.Values{"language": {languageOrDefault(language)}}, &response); err != nil {
		return nil, err
	}
	return response.Genres, nil
}

// Trending lists trending titles for a time window ("day" or "week").
func (c *Client) Trending(ctx context.Context, mediaType domain.MediaType, window, language string, page int) ([]domain.Candidate, error) {
	window = strings.ToLower(strings.TrimSpace(window))
	if window != "week" {
		window = "day"
	}
	if page <= 0 {
		page = 1
	}
	params := url.Values{
		"language": {languageOrDefault(language)},
		"page":     {strconv.Itoa(page)},
	}
	var response pagedResponse[domain.Candidate]
	path := "/trending/" + mediaType.TMDBPath() + "/" + window
	if err := c.get(ctx, "trending", path, params, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// RequestToken starts the user-approval flow for a TMDB session.
func (c *Client) RequestToken(ctx context.Context) (string, error) {
	var response tokenResponse
	if err := c.get(ctx, "request_token", "/authentication/token/new", nil, &response); err != nil {
		return "", err
	}
	if !response.Success || response.RequestToken == "" {
		return "", ErrRejected
	}
	return response.RequestToken, nil
}

// SessionID exchanges an approved request token for a session id.
func (c *Client) SessionID(ctx context.Context, requestToken string) (string, error) {
	requestToken = strings.TrimSpace(requestToken)
	if requestToken == "" {
		return "", fmt.Errorf("%w: request token is required", ErrRejected)
	}
	var response sessionResponse
	params := url.Values{"request_token": {requestToken}}
	if err := c.get(ctx, "session_new", "/authentication/session/new", params, &response); err != nil {
		return "", err
	}
	if !response.Success || response.SessionID == "" {
		return "", ErrRejected
	}
	return response.SessionID, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, dest any) (err error) {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	startedAt := time.Now()
	defer func() {
		metrics.ObserveProvider(providerName, endpoint, err, time.Since(startedAt).Seconds())
	}()

	if params == nil {
		params = url.Values{}
	}
	bearer := isBearerToken(c.apiKey)
	if !bearer {
		params.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tmdb %s HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("tmdb %s: read body: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", endpoint, err)
	}
	return nil
}

// isBearerToken reports whether the key is a v4 read access token rather
// than a v3 api key.
func isBearerToken(key string) bool {
	return strings.HasPrefix(key, "eyJ") && strings.Count(key, ".") == 2
}

func languageOrDefault(language string) string {
	if language = strings.TrimSpace(language); language != "" {
		return language
	}
	return defaultLanguage
}
