package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Claude oracle
	AnthropicAPIKey string
	AnthropicModel  string
	OracleTimeout   time.Duration
	MaxPromptChars  int

	// Exercise store connection (optional)
	StoreURL    string
	StoreAPIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Recovery tuning
	AdjacencyOrder     []int
	AdjacencyWindow    int
	MinExerciseChars   int
	MinPageChars       int
	MinStructuralSpan  int
	PatternPrefixChars int
	PatternCacheSize   int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("EXAMSTRUCT_API_KEY"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OracleTimeout:   envDuration("ORACLE_TIMEOUT", 2*time.Minute),
		MaxPromptChars:  envInt("MAX_PROMPT_CHARS", 50000),

		StoreURL:    os.Getenv("STORE_URL"),
		StoreAPIKey: os.Getenv("STORE_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		AdjacencyOrder:     envIntList("SEARCH_ADJACENCY_ORDER", []int{-1, 1, -2, 2}),
		AdjacencyWindow:    envInt("ADJACENCY_WINDOW_CHARS", 500),
		MinExerciseChars:   envInt("MIN_EXERCISE_CHARS", 20),
		MinPageChars:       envInt("MIN_PAGE_CHARS", 80),
		MinStructuralSpan:  envInt("MIN_STRUCTURAL_SPAN", 30),
		PatternPrefixChars: envInt("PATTERN_PREFIX_CHARS", 20000),
		PatternCacheSize:   envInt("PATTERN_CACHE_SIZE", 128),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MinExerciseChars <= 0 {
		cfg.MinExerciseChars = 20
	}
	if cfg.AdjacencyWindow <= 0 {
		cfg.AdjacencyWindow = 500
	}
	if cfg.PatternCacheSize <= 0 {
		cfg.PatternCacheSize = 128
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("EXAMSTRUCT_API_KEY is required")
	}
	if c.StoreURL != "" && c.StoreAPIKey == "" {
		return fmt.Errorf("STORE_API_KEY is required when STORE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envIntList parses a comma-separated list of integers, e.g. "-1,1,-2,2".
// A malformed value falls back entirely rather than partially.
func envIntList(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fallback
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
