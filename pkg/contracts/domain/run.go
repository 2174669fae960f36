package domain

import (
	"time"
)

// RunStatus is the lifecycle state of an import run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status is final
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run describes one execution of the import pipeline
type Run struct {
	RunID           int64      `json:"run_id"`
	InstanceID      int64      `json:"instance_id"`
	JobName         string     `json:"job_name"`
	Status          RunStatus  `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Files           []string   `json:"files,omitempty"`
	ReadCount       int        `json:"read_count"`
	WriteCount      int        `json:"write_count"`
	ChunksCommitted int        `json:"chunks_committed"`
	Error           *RunError  `json:"error,omitempty"`
}

// RunError is the failure cause recorded on a failed run
type RunError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Duration returns how long the run took, or has been running so far
func (r Run) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.EndedAt == nil {
		return time.Since(*r.StartedAt)
	}
	return r.EndedAt.Sub(*r.StartedAt)
}

// Clone returns a deep copy of the run
func (r Run) Clone() Run {
	c := r
	if r.Files != nil {
		c.Files = append([]string(nil), r.Files...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return c
}
