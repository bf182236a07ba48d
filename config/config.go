package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FailurePolicy decides what happens when a page exhausts its retry budget
type FailurePolicy string

const (
	// FailureSkip advances past the failed page using the last known-good cursor
	FailureSkip FailurePolicy = "skip"
	// FailureAbort terminates the whole crawl on the first failed page
	FailureAbort FailurePolicy = "abort"
)

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	StartURL       string
	Region         string
	OutputPath     string
	MaxPages       int
	MaxRecords     int
	MaxRetries     int
	Concurrency    int
	WaitCondition  string
	IdentityFields []string
	FetchEngine    string
	OnPageFailure  FailurePolicy
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   float64

	// Extraction selectors
	RowSelector  string
	NextSelector string

	// Browser configuration
	BrowserHeadless  bool
	BrowserNoSandbox bool
	BrowserBin       string
	Stealth          bool
	DismissDialogs   bool
	NavTimeout       time.Duration

	// Sink flush cadence
	FlushEvery    int
	FlushInterval time.Duration

	// Dedup configuration
	DedupBackend string
	MemcacheAddr string
	DedupTTL     time.Duration

	// Record publishing (optional)
	PublishEnabled       bool
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	region := getEnv("CRAWLER_REGION", "Brazil")

	maxPages, _ := strconv.Atoi(getEnv("CRAWLER_MAX_PAGES", "10"))
	maxRecords, _ := strconv.Atoi(getEnv("CRAWLER_MAX_RECORDS", "1000"))
	maxRetries, _ := strconv.Atoi(getEnv("CRAWLER_MAX_RETRIES", "3"))
	concurrency, _ := strconv.Atoi(getEnv("CRAWLER_CONCURRENCY", "1"))
	retryBaseMs, _ := strconv.Atoi(getEnv("CRAWLER_RETRY_BASE_MS", "500"))
	retryMaxMs, _ := strconv.Atoi(getEnv("CRAWLER_RETRY_MAX_MS", "10000"))
	rateLimit, _ := strconv.ParseFloat(getEnv("CRAWLER_RATE_LIMIT_RPS", "1"), 64)
	navTimeout, _ := strconv.Atoi(getEnv("CRAWLER_NAV_TIMEOUT_SECONDS", "30"))
	flushEvery, _ := strconv.Atoi(getEnv("CRAWLER_FLUSH_EVERY", "20"))
	flushInterval, _ := strconv.Atoi(getEnv("CRAWLER_FLUSH_INTERVAL_SECONDS", "5"))
	dedupTTL, _ := strconv.Atoi(getEnv("DEDUP_TTL_SECONDS", "0"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAXLEN", "1000"))

	return Config{
		StartURL:       strings.TrimSpace(getEnv("CRAWLER_START_URL", "")),
		Region:         region,
		OutputPath:     getEnv("CRAWLER_OUTPUT", fmt.Sprintf("output_%s.csv", region)),
		MaxPages:       maxPages,
		MaxRecords:     maxRecords,
		MaxRetries:     maxRetries,
		Concurrency:    concurrency,
		WaitCondition:  getEnv("CRAWLER_WAIT_CONDITION", "networkidle"),
		IdentityFields: splitList(getEnv("CRAWLER_IDENTITY_FIELDS", "url")),
		FetchEngine:    getEnv("CRAWLER_FETCH_ENGINE", "browser"),
		OnPageFailure:  FailurePolicy(getEnv("CRAWLER_ON_PAGE_FAILURE", "skip")),
		RetryBaseDelay: time.Duration(retryBaseMs) * time.Millisecond,
		RetryMaxDelay:  time.Duration(retryMaxMs) * time.Millisecond,
		RateLimitRPS:   rateLimit,

		RowSelector:  getEnv("CRAWLER_ROW_SELECTOR", "tr"),
		NextSelector: getEnv("CRAWLER_NEXT_SELECTOR", "a[rel=next]"),

		BrowserHeadless:  getBoolEnv("BROWSER_HEADLESS", true),
		BrowserNoSandbox: getBoolEnv("BROWSER_NO_SANDBOX", false),
		BrowserBin:       getEnv("BROWSER_BIN", ""),
		Stealth:          getBoolEnv("BROWSER_STEALTH", false),
		DismissDialogs:   getBoolEnv("BROWSER_DISMISS_DIALOGS", true),
		NavTimeout:       time.Duration(navTimeout) * time.Second,

		FlushEvery:    flushEvery,
		FlushInterval: time.Duration(flushInterval) * time.Second,

		DedupBackend: getEnv("DEDUP_BACKEND", "memory"),
		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),
		DedupTTL:     time.Duration(dedupTTL) * time.Second,

		PublishEnabled:       getBoolEnv("CRAWLER_PUBLISH", false),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "records"),
		RedisStreamMaxLength: redisMaxLen,

		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("CRAWLER_START_URL is not set")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("CRAWLER_MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	if c.MaxRecords <= 0 {
		return fmt.Errorf("CRAWLER_MAX_RECORDS must be positive, got %d", c.MaxRecords)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("CRAWLER_MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("CRAWLER_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if len(c.IdentityFields) == 0 {
		return fmt.Errorf("CRAWLER_IDENTITY_FIELDS must name at least one field")
	}
	switch c.OnPageFailure {
	case FailureSkip, FailureAbort:
	default:
		return fmt.Errorf("CRAWLER_ON_PAGE_FAILURE must be %q or %q, got %q", FailureSkip, FailureAbort, c.OnPageFailure)
	}
	switch c.FetchEngine {
	case "browser", "http":
	default:
		return fmt.Errorf("CRAWLER_FETCH_ENGINE must be \"browser\" or \"http\", got %q", c.FetchEngine)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolEnv retrieves a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// splitList splits a comma-separated list, trimming whitespace and dropping empties
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
