package domain

import (
	"fmt"
	"time"
)

// FailureClass groups the ways a single fetch attempt can fail.
type FailureClass string

const (
	FailureNone       FailureClass = ""
	FailureNetwork    FailureClass = "network"
	FailureHTTP       FailureClass = "http"
	FailureFilesystem FailureClass = "filesystem"
	FailureRequest    FailureClass = "request"
	FailureCanceled   FailureClass = "canceled"
)

// FetchResult is the raw result of one fetch attempt, before any retry or
// corruption decision is made.
type FetchResult struct {
	StatusCode    int
	RetryAfter    time.Duration
	HasRetryAfter bool
	Class         FailureClass
	Err           error
	BytesWritten  int64
	Duration      time.Duration
}

// OK reports whether the fetch produced an artifact on disk.
func (r FetchResult) OK() bool {
	return r.Class == FailureNone && r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// TaskOutcome is the tagged result of a fetch attempt after classification.
type TaskOutcome struct {
	Kind         OutcomeKind
	BytesWritten int64
	Reason       string
	RetryAfter   time.Duration
	Cause        error
}

func Success(bytesWritten int64) TaskOutcome {
	return TaskOutcome{Kind: OutcomeSuccess, BytesWritten: bytesWritten}
}

func Corrupted(bytesWritten int64, reason string) TaskOutcome {
	return TaskOutcome{Kind: OutcomeCorrupted, BytesWritten: bytesWritten, Reason: reason}
}

func Suspicious(bytesWritten int64, reason string) TaskOutcome {
	return TaskOutcome{Kind: OutcomeSuspicious, BytesWritten: bytesWritten, Reason: reason}
}

func RateLimited(retryAfter time.Duration) TaskOutcome {
	return TaskOutcome{Kind: OutcomeRateLimited, RetryAfter: retryAfter}
}

func TransientFailure(cause error) TaskOutcome {
	return TaskOutcome{Kind: OutcomeTransientFailure, Cause: cause}
}

func PermanentFailure(cause error) TaskOutcome {
	return TaskOutcome{Kind: OutcomePermanentFailure, Cause: cause}
}

// IsFailure reports whether the outcome leaves the task without a valid artifact.
func (o TaskOutcome) IsFailure() bool {
	return o.Kind != OutcomeSuccess
}

func (o TaskOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success (%d bytes)", o.BytesWritten)
	case OutcomeCorrupted, OutcomeSuspicious:
		return fmt.Sprintf("%s: %s (%d bytes)", o.Kind, o.Reason, o.BytesWritten)
	case OutcomeRateLimited:
		return fmt.Sprintf("rate limited (retry after %s)", o.RetryAfter)
	default:
		if o.Cause != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Cause)
		}
		return string(o.Kind)
	}
}
