package errors

import (
	"errors"
	"fmt"
)

var (
	ErrTransientNetwork      = errors.New("transient network error")
	ErrRateLimited           = errors.New("rate limited")
	ErrPermanentFailure      = errors.New("permanent failure")
	ErrCorruptionDetected    = errors.New("corruption detected")
	ErrFilesystem            = errors.New("filesystem error")
	ErrCheckpointPersistence = errors.New("checkpoint persistence failed")
	ErrCheckpointNotFound    = errors.New("checkpoint not found")
	ErrInvalidTask           = errors.New("invalid task")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// TaskError ties a failure to the task key and the operation that failed.
type TaskError struct {
	Key string
	Op  string
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError wraps err for the given task key and operation.
func NewTaskError(key, op string, err error) error {
	return &TaskError{Key: key, Op: op, Err: err}
}
