package domain

// ContentClass is the expected kind of content behind a task, used only by the
// corruption heuristics.
type ContentClass string

const (
	ContentUnknown ContentClass = ""
	ContentBinary  ContentClass = "binary"
	ContentText    ContentClass = "text"
)

// OutcomeKind tags a TaskOutcome.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeCorrupted        OutcomeKind = "corrupted"
	OutcomeSuspicious       OutcomeKind = "suspicious"
	OutcomeRateLimited      OutcomeKind = "rate_limited"
	OutcomeTransientFailure OutcomeKind = "transient_failure"
	OutcomePermanentFailure OutcomeKind = "permanent_failure"
)

// CircuitMode is the pipeline mode driven by the circuit breaker.
type CircuitMode string

const (
	CircuitRunning CircuitMode = "running"
	CircuitPaused  CircuitMode = "paused"
)
