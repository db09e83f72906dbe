package config

import (
	"fmt"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/breaker"
	"github.com/veranemoloko/bulk-downloader/internal/classifier"
	"github.com/veranemoloko/bulk-downloader/internal/retry"
	"github.com/veranemoloko/bulk-downloader/internal/worker"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds all application configuration settings. Every field is read
// from a BD_-prefixed environment variable.
type Config struct {
	Concurrency       int           `envconfig:"CONCURRENCY" default:"10"`
	MaxAttempts       int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	AttemptCeiling    int           `envconfig:"ATTEMPT_CEILING" default:"10"`
	BackoffBase       time.Duration `envconfig:"BACKOFF_BASE" default:"1s"`
	BackoffMax        time.Duration `envconfig:"BACKOFF_MAX" default:"10s"`
	DefaultRetryAfter time.Duration `envconfig:"DEFAULT_RETRY_AFTER" default:"60s"`
	DispatchDelay     time.Duration `envconfig:"DISPATCH_DELAY" default:"500ms"`

	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"30m"`
	UserAgent         string        `envconfig:"USER_AGENT" default:"bulk-downloader/1.0"`
	BlockPrivateHosts bool          `envconfig:"BLOCK_PRIVATE_HOSTS" default:"false"`

	CorruptionThreshold int           `envconfig:"CORRUPTION_THRESHOLD" default:"5"`
	PauseDuration       time.Duration `envconfig:"PAUSE_DURATION" default:"30m"`
	CumulativeBreaker   bool          `envconfig:"CORRUPTION_CUMULATIVE" default:"false"`
	ErrorPageSize       int64         `envconfig:"ERROR_PAGE_SIZE" default:"1960"`
	ErrorPageTolerance  int64         `envconfig:"ERROR_PAGE_TOLERANCE" default:"9"`
	MinBinarySize       int64         `envconfig:"MIN_BINARY_SIZE" default:"1024"`

	CheckpointEvery int `envconfig:"CHECKPOINT_EVERY" default:"10"`
	ErrorListCap    int `envconfig:"ERROR_LIST_CAP" default:"100"`

	DownloadDir    string `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	CheckpointFile string `envconfig:"CHECKPOINT_FILE" default:"./state/progress.json"`
	StoreBackend   string `envconfig:"STORE" default:"file"`
	RedisURL       string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPrefix    string `envconfig:"REDIS_PREFIX" default:"bulk-downloader"`

	StatusAddr string `envconfig:"STATUS_ADDR"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %d", c.Concurrency)
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive: %d", c.MaxAttempts)
	}
	if c.AttemptCeiling < c.MaxAttempts {
		return fmt.Errorf("attempt ceiling %d is below max attempts %d", c.AttemptCeiling, c.MaxAttempts)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("invalid backoff: base %s, max %s", c.BackoffBase, c.BackoffMax)
	}
	if c.DefaultRetryAfter < 0 || c.DispatchDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive: %s", c.FetchTimeout)
	}

	if c.CorruptionThreshold <= 0 {
		return fmt.Errorf("corruption threshold must be positive: %d", c.CorruptionThreshold)
	}
	if c.PauseDuration < 0 {
		return fmt.Errorf("pause duration cannot be negative: %s", c.PauseDuration)
	}
	if c.ErrorPageTolerance < 0 || c.MinBinarySize < 0 {
		return fmt.Errorf("size thresholds cannot be negative")
	}

	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint cadence must be positive: %d", c.CheckpointEvery)
	}
	if c.ErrorListCap <= 0 {
		return fmt.Errorf("error list cap must be positive: %d", c.ErrorListCap)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	switch c.StoreBackend {
	case StoreFile:
		if c.CheckpointFile == "" {
			return fmt.Errorf("checkpoint file cannot be empty")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.StoreBackend)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format: %q", c.LogFormat)
	}

	return nil
}

func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:       c.MaxAttempts,
		AttemptCeiling:    c.AttemptCeiling,
		BaseDelay:         c.BackoffBase,
		MaxDelay:          c.BackoffMax,
		DefaultRetryAfter: c.DefaultRetryAfter,
	}
}

func (c *Config) BreakerConfig() breaker.Config {
	return breaker.Config{
		Threshold:     c.CorruptionThreshold,
		PauseDuration: c.PauseDuration,
		Cumulative:    c.CumulativeBreaker,
	}
}

func (c *Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		ErrorPageSize: c.ErrorPageSize,
		Tolerance:     c.ErrorPageTolerance,
		MinBinarySize: c.MinBinarySize,
	}
}

func (c *Config) FetcherConfig() worker.Config {
	return worker.Config{Timeout: c.FetchTimeout, UserAgent: c.UserAgent}
}
