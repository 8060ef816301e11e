package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	DefaultMinVotes = 100
	DefaultNumYears = 10
)

type SortKey string

const (
	SortKeyPopularity  SortKey = "popularity"
	SortKeyVoteAverage SortKey = "vote_average"
)

func NormalizeSortKey(raw string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case SortKeyVoteAverage:
		return SortKeyVoteAverage
	default:
		return SortKeyPopularity
	}
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func NormalizeSortDirection(raw string) SortDirection {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case SortAsc:
		return SortAsc
	default:
		return SortDesc
	}
}

type AgeRating string

const (
	AgeRatingNone AgeRating = ""
	AgeRatingG    AgeRating = "G"
	AgeRatingPG   AgeRating = "PG"
	AgeRatingPG13 AgeRating = "PG-13"
	AgeRatingR    AgeRating = "R"
)

// NormalizeAgeRating maps unknown values to AgeRatingNone, which disables
// certification enforcement.
func NormalizeAgeRating(raw string) AgeRating {
	switch AgeRating(strings.ToUpper(strings.TrimSpace(raw))) {
	case AgeRatingG:
		return AgeRatingG
	case AgeRatingPG:
		return AgeRatingPG
	case AgeRatingPG13:
		return AgeRatingPG13
	case AgeRatingR:
		return AgeRatingR
	default:
		return AgeRatingNone
	}
}

// SearchConfig is the per-user configuration carried in the addon URL.
type SearchConfig struct {
	IncludeAdult   bool          `json:"includeAdult"`
	MinVotesMovies int           `json:"minVotesMovies"`
	MinVotesTV     int           `json:"minVotesTV"`
	MinPopularity  float64       `json:"minPopularity"`
	NumYears       int           `json:"numYears"`
	SortBy         SortKey       `json:"sortBy"`
	SortDir        SortDirection `json:"sortDir"`
	AgeRating      AgeRating     `json:"ageRating,omitempty"`
	AIKey          string        `json:"geminikey,omitempty"`
	RPDBKey        string        `json:"rpdbkey,omitempty"`
	Language       string        `json:"language,omitempty"`
	CastCount      int           `json:"castCount,omitempty"`
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinVotesMovies: DefaultMinVotes,
		MinVotesTV:     DefaultMinVotes,
		NumYears:       DefaultNumYears,
		SortBy:         SortKeyPopularity,
		SortDir:        SortDesc,
	}
}

// Normalize clamps numeric fields and resolves enum fields to known values.
func (c SearchConfig) Normalize() SearchConfig {
	if c.MinVotesMovies < 0 {
		c.MinVotesMovies = 0
	}
	if c.MinVotesTV < 0 {
		c.MinVotesTV = 0
	}
	if c.MinPopularity < 0 {
		c.MinPopularity = 0
	}
	if c.NumYears < 0 {
		c.NumYears = 0
	}
	if c.CastCount < 0 {
		c.CastCount = 0
	}
	c.SortBy = NormalizeSortKey(string(c.SortBy))
	c.SortDir = NormalizeSortDirection(string(c.SortDir))
	c.AgeRating = NormalizeAgeRating(string(c.AgeRating))
	c.AIKey = strings.TrimSpace(c.AIKey)
	c.RPDBKey = strings.TrimSpace(c.RPDBKey)
	c.Language = strings.TrimSpace(c.Language)
	return c
}

// MinVotes returns the vote-count floor for the media type.
func (c SearchConfig) MinVotes(mediaType MediaType) int {
	if mediaType == MediaTypeSeries {
		return c.MinVotesTV
	}
	return c.MinVotesMovies
}

type searchConfigJSON struct {
	IncludeAdult   flexBool        `json:"includeAdult"`
	MinVotesMovies json.RawMessage `json:"minVotesMovies"`
	MinVotesTV     json.RawMessage `json:"minVotesTV"`
	MinPopularity  json.RawMessage `json:"minPopularity"`
	NumYears       json.RawMessage `json:"numYears"`
	SortBy         string          `json:"sortBy"`
	SortDir        string          `json:"sortDir"`
	AgeRating      string          `json:"ageRating"`
	AIKey          string          `json:"geminikey"`
	RPDBKey        string          `json:"rpdbkey"`
	Language       string          `json:"language"`
	CastCount      json.RawMessage `json:"castCount"`
}

// UnmarshalJSON fills absent or unreadable fields with defaults. The configure
// page sends numbers as strings and uses "no limit" / "Unlimited" for
// unbounded knobs. Only malformed JSON is an error.
func (c *SearchConfig) UnmarshalJSON(data []byte) error {
	var raw searchConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cfg := DefaultSearchConfig()
	cfg.IncludeAdult = bool(raw.IncludeAdult)
	if votes, ok := parseNumber(raw.MinVotesMovies); ok {
		cfg.MinVotesMovies = int(votes)
	}
	if votes, ok := parseNumber(raw.MinVotesTV); ok {
		cfg.MinVotesTV = int(votes)
	}
	if popularity, ok := parseNumber(raw.MinPopularity); ok {
		cfg.MinPopularity = popularity
	}
	if years, ok := parseUnbounded(raw.NumYears); ok {
		cfg.NumYears = years
	}
	if count, ok := parseUnbounded(raw.CastCount); ok {
		cfg.CastCount = count
	}
	if raw.SortBy != "" {
		cfg.SortBy = SortKey(raw.SortBy)
	}
	if raw.SortDir != "" {
		cfg.SortDir = SortDirection(raw.SortDir)
	}
	cfg.AgeRating = AgeRating(raw.AgeRating)
	cfg.AIKey = raw.AIKey
	cfg.RPDBKey = raw.RPDBKey
	cfg.Language = raw.Language

	*c = cfg.Normalize()
	return nil
}

// parseNumber reads a number or numeric string. ok is false when the field is
// absent, null or not a number.
func parseNumber(data json.RawMessage) (float64, bool) {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		return 0, false
	}
	var number flexNumber
	if err := json.Unmarshal(data, &number); err != nil {
		return 0, false
	}
	return float64(number), true
}

// parseUnbounded reads a knob that is either a number or an "unlimited"
// marker. The marker yields 0. ok is false when the field is absent, null or
// neither.
func parseUnbounded(data json.RawMessage) (int, bool) {
	if number, ok := parseNumber(data); ok {
		return int(number), true
	}
	var marker string
	if err := json.Unmarshal(data, &marker); err != nil {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(marker)) {
	case "", "no limit", "nolimit", "unlimited", "none", "all":
		return 0, true
	}
	return 0, false
}

// flexNumber decodes both 12 and "12".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" {
		*n = 0
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(value)
	return nil
}

// flexBool decodes true, "true", "1" and "on".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`)) {
	case "true", "1", "yes", "on":
		*b = true
	default:
		*b = false
	}
	return nil
}
