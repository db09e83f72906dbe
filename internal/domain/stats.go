package domain

import "time"

// DefaultErrorListCap bounds Statistics.Errors when no cap is configured.
const DefaultErrorListCap = 100

// Statistics are the run counters. Only the orchestrator mutates them.
type Statistics struct {
	Total         int       `json:"total"`
	Downloaded    int       `json:"downloaded"`
	Skipped       int       `json:"skipped"`
	Corrupted     int       `json:"corrupted"`
	Errored       int       `json:"errored"`
	PauseEvents   int       `json:"pauseEvents"`
	Bytes         int64     `json:"bytes"`
	Errors        []string  `json:"errors"`
	ErrorsDropped int       `json:"errorsDropped,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt,omitempty"`

	errorCap int
}

// NewStatistics returns zeroed statistics whose error list keeps at most
// errorCap entries.
func NewStatistics(errorCap int) Statistics {
	if errorCap <= 0 {
		errorCap = DefaultErrorListCap
	}
	return Statistics{Errors: []string{}, errorCap: errorCap}
}

// AddError records an error description, dropping the oldest entry once the
// list is full.
func (s *Statistics) AddError(msg string) {
	limit := s.errorCap
	if limit <= 0 {
		limit = DefaultErrorListCap
	}
	if len(s.Errors) >= limit {
		drop := len(s.Errors) - limit + 1
		s.Errors = append(s.Errors[:0:0], s.Errors[drop:]...)
		s.ErrorsDropped += drop
	}
	s.Errors = append(s.Errors, msg)
}

// Processed is the number of tasks that reached a terminal state in this run.
func (s Statistics) Processed() int {
	return s.Downloaded + s.Skipped + s.Errored
}

// Clone returns a copy that shares no memory with s.
func (s Statistics) Clone() Statistics {
	out := s
	out.Errors = append([]string{}, s.Errors...)
	return out
}
