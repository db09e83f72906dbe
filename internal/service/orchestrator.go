package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/bulk-downloader/internal/breaker"
	"github.com/veranemoloko/bulk-downloader/internal/classifier"
	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
	"github.com/veranemoloko/bulk-downloader/internal/metrics"
	"github.com/veranemoloko/bulk-downloader/internal/report"
	"github.com/veranemoloko/bulk-downloader/internal/repository"
	"github.com/veranemoloko/bulk-downloader/internal/retry"
	"github.com/veranemoloko/bulk-downloader/internal/validation"
)

const (
	defaultConcurrency     = 10
	defaultDispatchDelay   = 500 * time.Millisecond
	defaultCheckpointEvery = 10
	finalSaveTimeout       = 10 * time.Second
)

// Fetcher performs a single fetch attempt for a task.
type Fetcher interface {
	Fetch(ctx context.Context, task domain.DownloadTask) domain.FetchResult
}

// ArtifactStore deletes artifacts rejected by the classifier.
type ArtifactStore interface {
	Remove(dest string) error
}

// TaskValidator rejects malformed tasks before they are queued.
type TaskValidator interface {
	ValidateTask(task domain.DownloadTask) error
}

// Orchestrator drives a task list to completion with at most N fetches in
// flight. All run state is owned by the goroutine executing Run; fetch
// goroutines report back over a channel and never touch it.
type Orchestrator struct {
	fetcher    Fetcher
	store      repository.ProgressStore
	artifacts  ArtifactStore
	validator  TaskValidator
	policy     *retry.Policy
	classifier *classifier.Classifier
	breaker    *breaker.Breaker
	reporter   *report.Reporter
	clock      clock.Clock
	logger     *slog.Logger

	concurrency     int
	dispatchDelay   time.Duration
	checkpointEvery int
	errorListCap    int
	retryCfg        retry.Config
	breakerCfg      breaker.Config
	classifierCfg   classifier.Config

	mu       sync.RWMutex
	snapshot domain.StatusResponse
}

type Option func(*Orchestrator)

func WithConcurrency(n int) Option                { return func(o *Orchestrator) { o.concurrency = n } }
func WithDispatchDelay(d time.Duration) Option    { return func(o *Orchestrator) { o.dispatchDelay = d } }
func WithCheckpointEvery(k int) Option            { return func(o *Orchestrator) { o.checkpointEvery = k } }
func WithErrorListCap(n int) Option               { return func(o *Orchestrator) { o.errorListCap = n } }
func WithRetry(cfg retry.Config) Option           { return func(o *Orchestrator) { o.retryCfg = cfg } }
func WithBreaker(cfg breaker.Config) Option       { return func(o *Orchestrator) { o.breakerCfg = cfg } }
func WithClassifier(cfg classifier.Config) Option { return func(o *Orchestrator) { o.classifierCfg = cfg } }
func WithValidator(v TaskValidator) Option        { return func(o *Orchestrator) { o.validator = v } }
func WithClock(c clock.Clock) Option              { return func(o *Orchestrator) { o.clock = c } }
func WithLogger(l *slog.Logger) Option            { return func(o *Orchestrator) { o.logger = l } }

// NewOrchestrator wires the orchestrator. Unset options take the package
// defaults of each component.
func NewOrchestrator(fetcher Fetcher, store repository.ProgressStore, artifacts ArtifactStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:         fetcher,
		store:           store,
		artifacts:       artifacts,
		concurrency:     defaultConcurrency,
		dispatchDelay:   defaultDispatchDelay,
		checkpointEvery: defaultCheckpointEvery,
		errorListCap:    domain.DefaultErrorListCap,
		retryCfg:        retry.DefaultConfig,
		breakerCfg:      breaker.DefaultConfig,
		classifierCfg:   classifier.DefaultConfig,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.validator == nil {
		o.validator = validation.New(false)
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultConcurrency
	}
	if o.dispatchDelay < 0 {
		o.dispatchDelay = 0
	}
	if o.checkpointEvery <= 0 {
		o.checkpointEvery = defaultCheckpointEvery
	}

	o.policy = retry.NewPolicy(o.retryCfg)
	o.classifier = classifier.New(o.classifierCfg)
	o.breaker = breaker.New(o.breakerCfg, o.clock)
	o.reporter = report.New(o.clock)
	o.snapshot = domain.StatusResponse{
		Stats:   domain.NewStatistics(o.errorListCap),
		Circuit: o.breaker.State(),
	}
	return o
}

// Snapshot returns a copy of the current run state for status readers.
func (o *Orchestrator) Snapshot() domain.StatusResponse {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.snapshot
	s.Stats = s.Stats.Clone()
	s.Circuit = o.breaker.State()
	return s
}

// Reporter returns the formatter used for progress lines.
func (o *Orchestrator) Reporter() *report.Reporter {
	return o.reporter
}

type queueItem struct {
	task     domain.DownloadTask
	requeued bool
}

type completion struct {
	item     queueItem
	result   domain.FetchResult
	attempts int
	decision retry.Decision
}

// run holds the state of one Run call. Only the coordinator goroutine uses it.
type run struct {
	o           *Orchestrator
	id          string
	logger      *slog.Logger
	concurrency int

	stats        domain.Statistics
	queue        []queueItem
	inFlight     int
	completions  int
	results      chan completion
	lastDispatch time.Time
	dispatched   bool
}

// Run processes tasks until every one of them is completed, skipped or
// failed, or until ctx is cancelled. Per-task failures never abort the run;
// the returned error is non-nil only on cancellation. If concurrency is not
// positive the configured default is used.
func (o *Orchestrator) Run(ctx context.Context, tasks []domain.DownloadTask, concurrency int) (domain.Statistics, error) {
	if concurrency <= 0 {
		concurrency = o.concurrency
	}

	r := &run{
		o:           o,
		id:          uuid.NewString(),
		concurrency: concurrency,
		stats:       domain.NewStatistics(o.errorListCap),
		results:     make(chan completion, concurrency),
	}
	r.logger = o.logger.With("run_id", r.id)
	r.stats.Total = len(tasks)
	r.stats.StartedAt = o.clock.Now()

	cp, err := o.store.Load(ctx)
	switch {
	case err != nil:
		r.logger.Warn("failed to load checkpoint, starting fresh", "error", err)
	case cp != nil:
		r.logger.Info("resuming from checkpoint", "completed", len(cp.CompletedKeys), "last_saved", cp.LastSaved)
	}

	r.enqueue(tasks)
	r.logger.Info("run started", "tasks", len(tasks), "queued", len(r.queue), "concurrency", concurrency)

	err = r.loop(ctx)

	r.stats.FinishedAt = o.clock.Now()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	r.save(saveCtx, "final")
	cancel()
	r.publish()

	r.logger.Info("run finished", "report", o.reporter.FormatFinal(r.stats))
	return r.stats.Clone(), err
}

func (r *run) enqueue(tasks []domain.DownloadTask) {
	seen := make(map[string]struct{}, len(tasks))
	r.queue = make([]queueItem, 0, len(tasks))

	for _, t := range tasks {
		key := t.Key()
		if err := r.o.validator.ValidateTask(t); err != nil {
			r.stats.Errored++
			r.stats.AddError(errpkg.NewTaskError(key, "validate", err).Error())
			metrics.DownloadsTotal.WithLabelValues("invalid").Inc()
			r.logger.Warn("dropping invalid task", "key", key, "error", err)
			continue
		}
		if _, dup := seen[key]; dup {
			r.stats.Skipped++
			metrics.TasksSkipped.Inc()
			r.logger.Debug("skipping duplicate task", "key", key)
			continue
		}
		seen[key] = struct{}{}
		t.Attempt = 0
		r.queue = append(r.queue, queueItem{task: t})
	}
	r.publish()
}

func (r *run) loop(ctx context.Context) error {
	var g errgroup.Group
	done := ctx.Done()
	canceled := false
	var wake <-chan time.Time

	for {
		if !canceled {
			if wait, blocked := r.admit(ctx, &g); blocked && wake == nil {
				wake = r.o.clock.After(wait)
			}
		}
		if r.inFlight == 0 && (canceled || len(r.queue) == 0) {
			break
		}

		select {
		case c := <-r.results:
			r.inFlight--
			metrics.InFlight.Dec()
			r.handle(ctx, c)
		case <-wake:
			wake = nil
		case <-done:
			canceled = true
			done = nil
			wake = nil
			r.logger.Warn("run cancelled, draining in-flight tasks", "in_flight", r.inFlight, "queued", len(r.queue))
		}
		r.publish()
	}

	_ = g.Wait()
	if canceled {
		return ctx.Err()
	}
	return nil
}

// admit dispatches queued tasks while slots are free. It reports whether
// admission is blocked on time (breaker pause or dispatch delay) and how long
// to wait before trying again.
func (r *run) admit(ctx context.Context, g *errgroup.Group) (time.Duration, bool) {
	for len(r.queue) > 0 && r.inFlight < r.concurrency {
		item := r.queue[0]
		key := item.task.Key()

		if r.o.store.IsCompleted(key) {
			r.queue = r.queue[1:]
			r.stats.Skipped++
			metrics.TasksSkipped.Inc()
			r.logger.Debug("skipping completed task", "key", key)
			continue
		}

		if !r.o.breaker.Allow() {
			metrics.CircuitPaused.Set(1)
			return r.o.breaker.ResumeIn(), true
		}
		metrics.CircuitPaused.Set(0)

		if r.dispatched && r.o.dispatchDelay > 0 {
			if wait := r.lastDispatch.Add(r.o.dispatchDelay).Sub(r.o.clock.Now()); wait > 0 {
				return wait, true
			}
		}

		r.queue = r.queue[1:]
		r.dispatch(ctx, g, item)
	}
	return 0, false
}

func (r *run) dispatch(ctx context.Context, g *errgroup.Group, item queueItem) {
	r.inFlight++
	metrics.InFlight.Inc()
	r.lastDispatch = r.o.clock.Now()
	r.dispatched = true

	logger := r.logger
	g.Go(func() error {
		r.results <- r.o.execute(ctx, item, logger)
		return nil
	})
}

// execute runs the fetch/retry loop for one task. The task keeps its slot
// while it waits out a backoff.
func (o *Orchestrator) execute(ctx context.Context, item queueItem, logger *slog.Logger) completion {
	task := item.task
	var counts retry.Attempts
	for {
		counts.Total++
		task.Attempt = counts.Total
		res := o.fetcher.Fetch(ctx, task)

		if res.OK() || res.Class == domain.FailureCanceled {
			return completion{item: item, result: res, attempts: counts.Total}
		}
		if ctx.Err() != nil {
			return completion{item: item, result: canceledResult(ctx), attempts: counts.Total}
		}

		// Rate-limited fetches only count toward the overall ceiling.
		if !retry.IsRateLimit(res) {
			counts.Transient++
		}
		d := o.policy.Decide(counts, res)
		if d.Action != retry.ActionRetry {
			return completion{item: item, result: res, attempts: counts.Total, decision: d}
		}

		metrics.RetriesTotal.WithLabelValues(string(d.Reason)).Inc()
		logger.Info("retrying task",
			"key", task.Key(),
			"attempt", counts.Total,
			"status", res.StatusCode,
			"decision", d.String(),
		)
		if d.Immediate() {
			continue
		}
		if err := clock.Sleep(ctx, o.clock, d.Delay); err != nil {
			return completion{item: item, result: canceledResult(ctx), attempts: counts.Total}
		}
	}
}

func canceledResult(ctx context.Context) domain.FetchResult {
	return domain.FetchResult{Class: domain.FailureCanceled, Err: ctx.Err()}
}

func (r *run) handle(ctx context.Context, c completion) {
	task := c.item.task
	key := task.Key()
	res := c.result

	if res.Class == domain.FailureCanceled {
		r.logger.Debug("discarding cancelled fetch", "key", key)
		return
	}

	if !res.OK() {
		outcome := failureOutcome(res, c.decision)
		r.fail(key, outcome, c.attempts)
		r.completed(ctx)
		return
	}

	class := classifier.ResolveClass(task.Hint, task.Destination)
	outcome := r.o.classifier.Classify(res.BytesWritten, class).Outcome(res.BytesWritten)

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		r.o.store.MarkCompleted(key)
		r.o.breaker.RecordSuccess()
		r.stats.Downloaded++
		r.stats.Bytes += outcome.BytesWritten
		metrics.DownloadsTotal.WithLabelValues(string(domain.OutcomeSuccess)).Inc()
		metrics.DownloadBytes.Add(float64(outcome.BytesWritten))
		r.logger.Info("download completed", "key", key, "bytes", outcome.BytesWritten, "attempts", c.attempts)

	case domain.OutcomeCorrupted, domain.OutcomeSuspicious:
		r.stats.Corrupted++
		if err := r.o.artifacts.Remove(task.Destination); err != nil {
			r.logger.Error("failed to remove rejected artifact", "key", key, "path", task.Destination, "error", err)
		}
		r.logger.Warn("artifact rejected", "key", key, "outcome", outcome.Kind, "reason", outcome.Reason, "bytes", outcome.BytesWritten)

		if outcome.Kind == domain.OutcomeCorrupted && r.o.breaker.RecordCorruption() {
			r.tripped(ctx)
		}

		if !c.item.requeued {
			item := c.item
			item.requeued = true
			item.task.Attempt = 0
			r.queue = append(r.queue, item)
			metrics.DownloadsTotal.WithLabelValues("requeued").Inc()
		} else {
			cause := fmt.Errorf("%w: %s", errpkg.ErrCorruptionDetected, outcome)
			r.fail(key, domain.PermanentFailure(cause), c.attempts)
		}
	}

	r.completed(ctx)
}

func (r *run) tripped(ctx context.Context) {
	st := r.o.breaker.State()
	r.stats.PauseEvents++
	metrics.PauseEvents.Inc()
	metrics.CircuitPaused.Set(1)

	attrs := []any{"pause_events", r.stats.PauseEvents, "in_flight", r.inFlight}
	if st.ResumeAt != nil {
		attrs = append(attrs, "resume_at", st.ResumeAt.Format(time.RFC3339))
	}
	r.logger.Warn("circuit breaker tripped, pausing dispatch", attrs...)
	r.save(ctx, "pause")
}

func (r *run) fail(key string, outcome domain.TaskOutcome, attempts int) {
	r.stats.Errored++
	metrics.DownloadsTotal.WithLabelValues(string(outcome.Kind)).Inc()

	err := errpkg.NewTaskError(key, "download", outcome.Cause)
	r.stats.AddError(err.Error())
	r.logger.Error("task failed", "key", key, "outcome", outcome.Kind, "attempts", attempts, "error", outcome.Cause)
}

// completed counts a handled completion and runs the periodic checkpoint.
func (r *run) completed(ctx context.Context) {
	r.completions++
	if r.completions%r.o.checkpointEvery != 0 {
		return
	}
	r.logger.Info(r.o.reporter.Format(r.stats))
	r.save(ctx, "periodic")
}

func (r *run) save(ctx context.Context, reason string) {
	cp := &domain.Checkpoint{
		RunID:         r.id,
		CompletedKeys: r.o.store.CompletedKeys(),
		Stats:         r.stats.Clone(),
		LastSaved:     r.o.clock.Now().UTC(),
	}
	if err := r.o.store.Save(ctx, cp); err != nil {
		metrics.CheckpointSaves.WithLabelValues("error").Inc()
		r.logger.Error("failed to save checkpoint", "reason", reason, "error", err)
		return
	}
	metrics.CheckpointSaves.WithLabelValues("ok").Inc()
	r.logger.Debug("checkpoint saved", "reason", reason, "completed", len(cp.CompletedKeys))
}

func (r *run) publish() {
	r.o.mu.Lock()
	r.o.snapshot = domain.StatusResponse{
		RunID:    r.id,
		InFlight: r.inFlight,
		Queued:   len(r.queue),
		Stats:    r.stats.Clone(),
	}
	r.o.mu.Unlock()
}

// failureOutcome turns the last failed fetch and the decision that ended the
// retry loop into the task's terminal outcome.
func failureOutcome(res domain.FetchResult, d retry.Decision) domain.TaskOutcome {
	cause := res.Err
	if cause == nil {
		cause = errors.New("fetch failed")
	}

	switch {
	case retry.IsRateLimit(res):
		return domain.TaskOutcome{
			Kind:       domain.OutcomeRateLimited,
			RetryAfter: res.RetryAfter,
			Cause:      fmt.Errorf("%w: %w: %v", errpkg.ErrPermanentFailure, errpkg.ErrRateLimited, cause),
		}
	case d.Reason == retry.ReasonExhausted:
		return domain.TaskOutcome{
			Kind:  domain.OutcomeTransientFailure,
			Cause: fmt.Errorf("%w: attempts exhausted: %w", errpkg.ErrPermanentFailure, cause),
		}
	default:
		return domain.PermanentFailure(fmt.Errorf("%w: %w", errpkg.ErrPermanentFailure, cause))
	}
}
