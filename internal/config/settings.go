package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override config.yaml.
const (
	EnvAPIURL         = "TASKCTL_API_URL"
	EnvRateLimit      = "TASKCTL_RATE_LIMIT"
	EnvRequestTimeout = "TASKCTL_REQUEST_TIMEOUT"
)

// Default settings.
const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultRequestTimeout = 10 * time.Second
	DefaultStaleTime      = 60 * time.Second
	DefaultRetention      = 5 * time.Minute
	DefaultRetry          = 1
	DefaultRateLimit      = 10.0
	DefaultRateBurst      = 5
)

// Settings are user-tunable options.
type Settings struct {
	// APIURL is the base URL of the task API.
	APIURL string `yaml:"api_url"`

	// RequestTimeout bounds a single API call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StaleTime is how long a cached list is served without refetching.
	StaleTime time.Duration `yaml:"stale_time"`

	// Retention is how long an unused cached list is kept.
	Retention time.Duration `yaml:"retention"`

	// Retry is the number of retries for a failed list fetch.
	Retry *int `yaml:"retry"`

	// RateLimit is the maximum requests per second; 0 disables pacing.
	RateLimit *float64 `yaml:"rate_limit"`

	// RateBurst is the burst allowed above RateLimit.
	RateBurst int `yaml:"rate_burst"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	retry := DefaultRetry
	rl := DefaultRateLimit
	return Settings{
		APIURL:         DefaultAPIURL,
		RequestTimeout: DefaultRequestTimeout,
		StaleTime:      DefaultStaleTime,
		Retention:      DefaultRetention,
		Retry:          &retry,
		RateLimit:      &rl,
		RateBurst:      DefaultRateBurst,
	}
}

// RetryCount returns the configured retry count.
func (s Settings) RetryCount() int {
	if s.Retry == nil {
		return DefaultRetry
	}
	return *s.Retry
}

// RequestsPerSecond returns the configured rate limit.
func (s Settings) RequestsPerSecond() float64 {
	if s.RateLimit == nil {
		return DefaultRateLimit
	}
	return *s.RateLimit
}

// LoadSettings reads settingsPath (missing is fine), then applies
// environment overrides. envPath and ./.env are loaded into the environment
// first; variables already set are never overwritten.
func LoadSettings(settingsPath, envPath string) (Settings, error) {
	loadDotenv(envPath, EnvFile)

	s := DefaultSettings()

	data, err := os.ReadFile(settingsPath)
	switch {
	case err == nil:
		var fileSettings Settings
		if err := yaml.Unmarshal(data, &fileSettings); err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", settingsPath, err)
		}
		s.merge(fileSettings)
	case !errors.Is(err, os.ErrNotExist):
		return Settings{}, fmt.Errorf("failed to read %s: %w", settingsPath, err)
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// loadDotenv loads the files that exist. godotenv.Load does not override
// variables that are already set.
func loadDotenv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func (s *Settings) merge(o Settings) {
	if o.APIURL != "" {
		s.APIURL = o.APIURL
	}
	if o.RequestTimeout > 0 {
		s.RequestTimeout = o.RequestTimeout
	}
	if o.StaleTime > 0 {
		s.StaleTime = o.StaleTime
	}
	if o.Retention > 0 {
		s.Retention = o.Retention
	}
	if o.Retry != nil {
		s.Retry = o.Retry
	}
	if o.RateLimit != nil {
		s.RateLimit = o.RateLimit
	}
	if o.RateBurst > 0 {
		s.RateBurst = o.RateBurst
	}
}

func (s *Settings) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		s.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRateLimit)); v != "" {
		rl, err := strconv.ParseFloat(v, 64)
		if err != nil || rl < 0 {
			return fmt.Errorf("invalid %s: %s", EnvRateLimit, v)
		}
		s.RateLimit = &rl
	}
	if v := strings.TrimSpace(os.Getenv(EnvRequestTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %s", EnvRequestTimeout, v)
		}
		s.RequestTimeout = d
	}
	return nil
}
