package retry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts is the total number of fetches allowed for transient failures,
	// including the first one.
	MaxAttempts int
	// AttemptCeiling bounds every task overall, rate-limited attempts included.
	AttemptCeiling int
	// BaseDelay and MaxDelay shape the exponential backoff:
	// wait = min(BaseDelay * 2^(attempt-1), MaxDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// DefaultRetryAfter is used when a rate-limit response carries no Retry-After.
	DefaultRetryAfter time.Duration
}

// DefaultConfig mirrors the defaults of the downloader configuration.
var DefaultConfig = Config{
	MaxAttempts:       3,
	AttemptCeiling:    10,
	BaseDelay:         time.Second,
	MaxDelay:          10 * time.Second,
	DefaultRetryAfter: 60 * time.Second,
}

// Action is what the caller should do after a failed attempt.
type Action int

const (
	ActionGiveUp Action = iota
	ActionRetry
)

func (a Action) String() string {
	if a == ActionRetry {
		return "retry"
	}
	return "give_up"
}

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonRateLimited Reason = "rate_limited"
	ReasonTransient   Reason = "transient"
	ReasonPermanent   Reason = "permanent"
	ReasonExhausted   Reason = "exhausted"
)

// Attempts counts the fetches a task has made so far, including the one that
// just finished. Transient counts only fetches that failed with a transient
// error; rate-limited fetches are excluded from it.
type Attempts struct {
	Total     int
	Transient int
}

// Decision is the outcome of Policy.Decide. A retry with zero Delay means retry now.
type Decision struct {
	Action Action
	Delay  time.Duration
	Reason Reason
}

// Immediate reports whether the retry should happen without waiting.
func (d Decision) Immediate() bool {
	return d.Action == ActionRetry && d.Delay <= 0
}

func (d Decision) String() string {
	if d.Action == ActionRetry {
		return fmt.Sprintf("%s in %s (%s)", d.Action, d.Delay, d.Reason)
	}
	return fmt.Sprintf("%s (%s)", d.Action, d.Reason)
}

// Policy decides whether a failed fetch is retried. It performs no I/O and
// never sleeps; the caller waits for Decision.Delay.
type Policy struct {
	cfg Config
}

// NewPolicy returns a Policy, filling zero fields of cfg from DefaultConfig.
func NewPolicy(cfg Config) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.AttemptCeiling < cfg.MaxAttempts {
		cfg.AttemptCeiling = max(DefaultConfig.AttemptCeiling, cfg.MaxAttempts)
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = DefaultConfig.DefaultRetryAfter
	}
	return &Policy{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Decide maps the attempt counts and the latest result to a retry decision.
// Rules, in priority order:
//
//   - rate limit (429, or 503 with Retry-After): retry after the server delay,
//     bounded only by AttemptCeiling on the total
//   - transient (network error, 5xx, 408): exponential backoff until the
//     transient count reaches MaxAttempts
//   - anything else: give up
func (p *Policy) Decide(a Attempts, r domain.FetchResult) Decision {
	if r.OK() || r.Class == domain.FailureCanceled {
		return Decision{Action: ActionGiveUp, Reason: ReasonPermanent}
	}

	if IsRateLimit(r) {
		if a.Total >= p.cfg.AttemptCeiling {
			return Decision{Action: ActionGiveUp, Reason: ReasonExhausted}
		}
		delay := p.cfg.DefaultRetryAfter
		if r.HasRetryAfter {
			delay = r.RetryAfter
		}
		return Decision{Action: ActionRetry, Delay: max(delay, 0), Reason: ReasonRateLimited}
	}

	if IsTransient(r) {
		if a.Transient >= p.cfg.MaxAttempts || a.Total >= p.cfg.AttemptCeiling {
			return Decision{Action: ActionGiveUp, Reason: ReasonExhausted}
		}
		return Decision{Action: ActionRetry, Delay: p.Backoff(a.Transient), Reason: ReasonTransient}
	}

	return Decision{Action: ActionGiveUp, Reason: ReasonPermanent}
}

// Backoff returns the wait after the given failed attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.cfg.MaxDelay {
			return p.cfg.MaxDelay
		}
	}
	return min(delay, p.cfg.MaxDelay)
}

// IsRateLimit reports whether the server asked the client to back off.
func IsRateLimit(r domain.FetchResult) bool {
	switch r.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return r.HasRetryAfter
	}
	return false
}

// IsTransient reports whether the failure is worth retrying with backoff.
func IsTransient(r domain.FetchResult) bool {
	if r.Class == domain.FailureNetwork {
		return true
	}
	if r.Class != domain.FailureHTTP {
		return false
	}
	return r.StatusCode >= 500 || r.StatusCode == http.StatusRequestTimeout
}
