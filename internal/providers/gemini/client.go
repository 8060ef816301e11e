package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/metrics"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
	providerName   = "gemini"
	maxTitles      = 20
)

var (
	ErrNotConfigured = errors.New("gemini api key not configured")
	ErrEmptyResponse = errors.New("gemini returned empty response")
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

// Client resolves free-text descriptions into concrete titles. One client is
// built per user key.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpClient,
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// SearchWithAI asks the model which titles best match query and returns them
// most relevant first.
func (c *Client) SearchWithAI(ctx context.Context, query string, mediaType domain.MediaType) (titles []string, err error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	startedAt := time.Now()
	defer func() {
		metrics.ObserveProvider(providerName, "generate_content", err, time.Since(startedAt).Seconds())
	}()

	bodyBytes, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(query, mediaType)}}}},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			MaxOutputTokens:  1024,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gemini API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("gemini API error: %s", decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	return parseTitles(decoded.Candidates[0].Content.Parts[0].Text)
}

func buildPrompt(query string, mediaType domain.MediaType) string {
	kind := "movies"
	if mediaType == domain.MediaTypeSeries {
		kind = "TV series"
	}
	return fmt.Sprintf(`You help users find %[1]s on TMDB. The user searched for:

%[2]q

The search may be a title, a partial title, a plot description, an actor, a mood or a theme.
Return up to %[3]d %[1]s that best match it, most relevant first.

Respond with ONLY a JSON array of strings, no other text. Each string must be the exact title as it appears on TMDB, without the year.

Example format:
["Inception", "Interstellar"]`, kind, query, maxTitles)
}

// parseTitles accepts a JSON array of strings or of {"title": ...} objects,
// optionally wrapped in a markdown code fence.
func parseTitles(text string) ([]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("parse gemini titles: %w (raw: %s)", err, cleaned[:min(200, len(cleaned))])
	}

	titles := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		var title string
		if err := json.Unmarshal(item, &title); err != nil {
			var obj struct {
				Title string `json:"title"`
			}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			title = obj.Title
		}
		title = strings.TrimSpace(title)
		key := strings.ToLower(title)
		if title == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, title)
		if len(titles) == maxTitles {
			break
		}
	}
	return titles, nil
}
