package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Telegram
	TelegramToken string
	AdminIDs      []int64

	// Database
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Price source
	FlightsBaseURL  string
	FetchTimeout    time.Duration
	FetchRatePerSec float64
	FetchRetries    int
	UserAgent       string

	// Scheduler
	CheckInterval     time.Duration
	CycleWaitTimeout  time.Duration
	NotifyTimeout     time.Duration
	MaxMonitors       int
	MaxWorkers        int
	FileWorkers       int
	StoreFailureLimit int

	// Retention
	DataRetentionDays   int
	ConfigRetentionDays int

	// Admin HTTP
	HTTPAddr string
	APIToken string

	// Logging
	LogLevel string
}

// Load reads the environment, after merging an optional .env file from the
// working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		// Defaults
		RedisAddr:           "localhost:6379",
		FlightsBaseURL:      "https://flight.naver.com",
		FetchTimeout:        60 * time.Second,
		FetchRatePerSec:     1,
		FetchRetries:        3,
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		CheckInterval:       30 * time.Minute,
		CycleWaitTimeout:    20 * time.Minute,
		NotifyTimeout:       10 * time.Second,
		MaxMonitors:         3,
		MaxWorkers:          5,
		FileWorkers:         5,
		StoreFailureLimit:   3,
		DataRetentionDays:   30,
		ConfigRetentionDays: 7,
		HTTPAddr:            ":8080",
		LogLevel:            "info",
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if ids := os.Getenv("ADMIN_IDS"); ids != "" {
		parsed, err := ParseAdminIDs(ids)
		if err != nil {
			return nil, err
		}
		cfg.AdminIDs = parsed
	}

	if baseURL := os.Getenv("FLIGHTS_BASE_URL"); baseURL != "" {
		cfg.FlightsBaseURL = strings.TrimRight(baseURL, "/")
	}
	if ua := os.Getenv("USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	cfg.APIToken = os.Getenv("API_TOKEN")

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if rate := os.Getenv("FETCH_RATE_PER_SEC"); rate != "" {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FETCH_RATE_PER_SEC: %w", err)
		}
		cfg.FetchRatePerSec = f
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"CHECK_INTERVAL", &cfg.CheckInterval},
		{"CYCLE_WAIT_TIMEOUT", &cfg.CycleWaitTimeout},
		{"NOTIFY_TIMEOUT", &cfg.NotifyTimeout},
	}
	for _, d := range durations {
		if err := durationEnv(d.key, d.dst); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &cfg.RedisDB},
		{"FETCH_RETRIES", &cfg.FetchRetries},
		{"MAX_MONITORS", &cfg.MaxMonitors},
		{"MAX_WORKERS", &cfg.MaxWorkers},
		{"FILE_WORKERS", &cfg.FileWorkers},
		{"STORE_FAILURE_LIMIT", &cfg.StoreFailureLimit},
		{"DATA_RETENTION_DAYS", &cfg.DataRetentionDays},
		{"CONFIG_RETENTION_DAYS", &cfg.ConfigRetentionDays},
	}
	for _, i := range ints {
		if err := intEnv(i.key, i.dst); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram token is empty")
	}

	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN is empty")
	}

	if c.CheckInterval < time.Minute {
		return fmt.Errorf("check interval too small: %v", c.CheckInterval)
	}

	if c.CycleWaitTimeout <= 0 || c.CycleWaitTimeout > c.CheckInterval {
		return fmt.Errorf("cycle wait timeout must be positive and at most the check interval: %v", c.CycleWaitTimeout)
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive: %v", c.FetchTimeout)
	}

	if c.FetchRatePerSec <= 0 {
		return fmt.Errorf("fetch rate must be positive: %v", c.FetchRatePerSec)
	}

	if c.MaxMonitors < 1 {
		return fmt.Errorf("max monitors must be at least 1")
	}

	if c.MaxWorkers < 1 || c.MaxWorkers > 50 {
		return fmt.Errorf("max workers must be between 1 and 50")
	}

	if c.FileWorkers < 1 || c.FileWorkers > 50 {
		return fmt.Errorf("file workers must be between 1 and 50")
	}

	if c.StoreFailureLimit < 1 {
		return fmt.Errorf("store failure limit must be at least 1")
	}

	if c.DataRetentionDays < 1 || c.ConfigRetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// DataRetention is DataRetentionDays as a duration.
func (c *Config) DataRetention() time.Duration {
	return time.Duration(c.DataRetentionDays) * 24 * time.Hour
}

func (c *Config) ConfigRetention() time.Duration {
	return time.Duration(c.ConfigRetentionDays) * 24 * time.Hour
}

// ParseAdminIDs parses a comma separated list of Telegram user ids.
func ParseAdminIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func durationEnv(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func intEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
