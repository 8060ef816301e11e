package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string
	LogLevel            string
	LogFormat           string
	LogFile             string
	TMDBAPIKey          string
	TMDBBaseURL         string
	TMDBTimeout         time.Duration
	GeminiBaseURL       string
	GeminiModel         string
	GeminiTimeout       time.Duration
	SearchTimeout       time.Duration
	CertConcurrency     int
	SeriesCertification bool
	AddonBaseURL        string
	RateLimitPerSecond  int
	RateLimitBurst      int
	DotEnvLoaded        bool
}

// LoadConfig reads the environment, after merging a local .env file when one
// exists. Variables already set in the environment win over the file.
func LoadConfig() Config {
	dotEnvLoaded := godotenv.Load() == nil
	searchTimeout := time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 20)) * time.Second

	return Config{
		HTTPAddr:            httpAddr(),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:             getEnv("LOG_FILE", ""),
		TMDBAPIKey:          getEnv("TMDB_API", getEnv("TMDB_API_KEY", "")),
		TMDBBaseURL:         getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBTimeout:         time.Duration(getEnvInt("TMDB_TIMEOUT_SECONDS", 10)) * time.Second,
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout:       geminiTimeout(searchTimeout),
		SearchTimeout:       searchTimeout,
		CertConcurrency:     getEnvInt("SEARCH_CERT_CONCURRENCY", 8),
		SeriesCertification: getEnvBool("SEARCH_TV_CERTIFICATION", false),
		AddonBaseURL:        strings.TrimRight(getEnv("ADDON_BASE_URL", ""), "/"),
		RateLimitPerSecond:  getEnvInt("HTTP_RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getEnvInt("HTTP_RATE_LIMIT_BURST", 40),
		DotEnvLoaded:        dotEnvLoaded,
	}
}

// httpAddr prefers HTTP_ADDR and falls back to a bare PORT, as hosting
// platforms set it.
func httpAddr() string {
	if addr := getEnv("HTTP_ADDR", ""); addr != "" {
		return addr
	}
	if port := getEnvInt("PORT", 0); port > 0 {
		return ":" + strconv.Itoa(port)
	}
	return ":1337"
}

// geminiTimeout bounds the AI attempt. It stays below the search timeout so a
// stalled resolver still leaves the direct fallback a full budget.
func geminiTimeout(searchTimeout time.Duration) time.Duration {
	timeout := time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 8)) * time.Second
	if timeout >= searchTimeout {
		return searchTimeout / 2
	}
	return timeout
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
