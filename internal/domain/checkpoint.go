package domain

import "time"

// Checkpoint is the durable record that lets a run resume. CompletedKeys only
// ever grows; membership is the only meaning of the list.
type Checkpoint struct {
	RunID         string     `json:"runId,omitempty"`
	CompletedKeys []string   `json:"completedKeys"`
	Stats         Statistics `json:"stats"`
	LastSaved     time.Time  `json:"lastSaved"`
}

// CircuitState is a snapshot of the circuit breaker.
type CircuitState struct {
	Mode                   CircuitMode `json:"mode"`
	ConsecutiveCorruptions int         `json:"consecutiveCorruptions"`
	ResumeAt               *time.Time  `json:"resumeAt,omitempty"`
}

// StatusResponse is returned by the status API.
type StatusResponse struct {
	RunID    string       `json:"run_id"`
	InFlight int          `json:"in_flight"`
	Queued   int          `json:"queued"`
	Stats    Statistics   `json:"stats"`
	Circuit  CircuitState `json:"circuit"`
}
