package apihttp

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"tmdbaddon/searchservice/internal/domain"
	"tmdbaddon/searchservice/internal/search"
)

// TrendingCatalogID is the browse catalog backed by TMDB's trending lists.
const TrendingCatalogID = "tmdb.trending"

var errBadConfig = errors.New("addon config must be JSON or base64url JSON")

type Manifest struct {
	ID            string            `json:"id"`
	Version       string            `json:"version"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Resources     []string          `json:"resources"`
	Types         []string          `json:"types"`
	IDPrefixes    []string          `json:"idPrefixes"`
	Catalogs      []ManifestCatalog `json:"catalogs"`
	BehaviorHints map[string]bool   `json:"behaviorHints,omitempty"`
}

type ManifestCatalog struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra []CatalogExtra `json:"extra,omitempty"`
}

type CatalogExtra struct {
	Name       string   `json:"name"`
	IsRequired bool     `json:"isRequired,omitempty"`
	Options    []string `json:"options,omitempty"`
}

// buildManifest lists the catalogs for cfg. The AI catalog only appears once
// the user configured a key for it.
func buildManifest(version string, cfg domain.SearchConfig) Manifest {
	manifest := Manifest{
		ID:          "community.tmdb.search",
		Version:     version,
		Name:        "TMDB Search",
		Description: "Movie and series search over TMDB with person credits, age ratings and AI title matching.",
		Resources:   []string{"catalog"},
		Types:       []string{string(domain.MediaTypeMovie), string(domain.MediaTypeSeries)},
		IDPrefixes:  []string{"tmdb:"},
		BehaviorHints: map[string]bool{
			"configurable": true,
		},
	}
	for _, mediaType := range []domain.MediaType{domain.MediaTypeMovie, domain.MediaTypeSeries} {
		label := "Movies"
		if mediaType == domain.MediaTypeSeries {
			label = "Series"
		}
		manifest.Catalogs = append(manifest.Catalogs,
			ManifestCatalog{
				Type: string(mediaType),
				ID:   TrendingCatalogID,
				Name: "Trending " + label,
				Extra: []CatalogExtra{
					{Name: "genre", Options: []string{"day", "week"}},
					{Name: "skip"},
				},
			},
			ManifestCatalog{
				Type:  string(mediaType),
				ID:    search.SearchCatalogID,
				Name:  "TMDB " + label,
				Extra: []CatalogExtra{{Name: "search", IsRequired: true}},
			},
		)
		if cfg.AIKey != "" {
			manifest.Catalogs = append(manifest.Catalogs, ManifestCatalog{
				Type:  string(mediaType),
				ID:    search.AISearchCatalogID,
				Name:  "AI " + label,
				Extra: []CatalogExtra{{Name: "search", IsRequired: true}},
			})
		}
	}
	return manifest
}

// decodeConfig reads the user config path segment. It arrives either as
// URL-encoded JSON or as base64url JSON; an empty segment means defaults.
func decodeConfig(raw string) (domain.SearchConfig, error) {
	text, err := url.PathUnescape(strings.TrimSpace(raw))
	if err != nil {
		return domain.SearchConfig{}, fmt.Errorf("%w: %v", errBadConfig, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DefaultSearchConfig(), nil
	}

	payload := []byte(text)
	if !strings.HasPrefix(text, "{") {
		decoded, decodeErr := base64.RawURLEncoding.DecodeString(strings.TrimRight(text, "="))
		if decodeErr != nil {
			return domain.SearchConfig{}, fmt.Errorf("%w: %v", errBadConfig, decodeErr)
		}
		payload = decoded
	}

	var cfg domain.SearchConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return domain.SearchConfig{}, fmt.Errorf("%w: %v", errBadConfig, err)
	}
	return cfg, nil
}

// EncodeConfig renders cfg as the base64url path segment decodeConfig reads.
func EncodeConfig(cfg domain.SearchConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// catalogExtra holds the key=value pairs of a catalog request's extra segment.
type catalogExtra struct {
	Search string
	Genre  string
	Skip   int
}

func parseCatalogExtra(raw string) (catalogExtra, error) {
	var extra catalogExtra
	if strings.TrimSpace(raw) == "" {
		return extra, nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return extra, fmt.Errorf("invalid extra: %w", err)
	}
	extra.Search = strings.TrimSpace(values.Get("search"))
	extra.Genre = strings.TrimSpace(values.Get("genre"))
	if skip := strings.TrimSpace(values.Get("skip")); skip != "" {
		value, convErr := strconv.Atoi(skip)
		if convErr != nil || value < 0 {
			return extra, fmt.Errorf("invalid skip %q", skip)
		}
		extra.Skip = value
	}
	return extra, nil
}

// canonicalLanguage normalises a BCP 47 tag such as "pt-br" to "pt-BR".
// Anything unparseable becomes "", which leaves the upstream default.
func canonicalLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ""
	}
	return tag.String()
}
