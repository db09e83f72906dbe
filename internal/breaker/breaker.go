package breaker

import (
	"sync"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// Config holds the trip threshold and the pause length.
type Config struct {
	Threshold     int
	PauseDuration time.Duration
	// Cumulative keeps counting across successes; only a pause clears the
	// count.
	Cumulative bool
}

var DefaultConfig = Config{
	Threshold:     5,
	PauseDuration: 30 * time.Minute,
}

// Breaker pauses dispatch after Threshold consecutive corruption events across
// the whole pool and resumes once PauseDuration has elapsed. It never preempts
// work that is already running.
type Breaker struct {
	mu          sync.Mutex
	cfg         Config
	clock       clock.Clock
	mode        domain.CircuitMode
	consecutive int
	resumeAt    time.Time
}

func New(cfg Config, c clock.Clock) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig.Threshold
	}
	if cfg.PauseDuration < 0 {
		cfg.PauseDuration = 0
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Breaker{cfg: cfg, clock: c, mode: domain.CircuitRunning}
}

// Allow reports whether a new task may be dispatched. A paused breaker whose
// pause has elapsed returns to running here.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeResume()
	return b.mode == domain.CircuitRunning
}

// RecordCorruption counts a corrupted outcome and reports whether this event
// tripped the breaker. Events observed while paused are ignored.
func (b *Breaker) RecordCorruption() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeResume()
	if b.mode != domain.CircuitRunning {
		return false
	}

	b.consecutive++
	if b.consecutive < b.cfg.Threshold {
		return false
	}

	b.mode = domain.CircuitPaused
	b.resumeAt = b.clock.Now().Add(b.cfg.PauseDuration)
	return true
}

// RecordSuccess resets the consecutive corruption count unless the breaker
// is cumulative.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeResume()
	if b.mode == domain.CircuitRunning && !b.cfg.Cumulative {
		b.consecutive = 0
	}
}

// ResumeIn returns how long until a paused breaker resumes, or zero.
func (b *Breaker) ResumeIn() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode != domain.CircuitPaused {
		return 0
	}
	return max(b.resumeAt.Sub(b.clock.Now()), 0)
}

// State returns a snapshot of the breaker.
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := domain.CircuitState{Mode: b.mode, ConsecutiveCorruptions: b.consecutive}
	if b.mode == domain.CircuitPaused {
		at := b.resumeAt
		st.ResumeAt = &at
	}
	return st
}

func (b *Breaker) maybeResume() {
	if b.mode == domain.CircuitPaused && !b.clock.Now().Before(b.resumeAt) {
		b.mode = domain.CircuitRunning
		b.consecutive = 0
		b.resumeAt = time.Time{}
	}
}
