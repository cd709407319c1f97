package engine

import (
	"time"
)

// RetryPolicy controls automatic retries of transient transfer failures.
// MaxAttempts counts total attempts, not re-tries, so 1 means no retry.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
	Delay       time.Duration
}

// DownloadSpec is the validated, immutable input for one orchestrator run.
// The CLI and config loader produce it; the engine never parses files or
// flags itself.
type DownloadSpec struct {
	URLTemplate    string
	OutputDir      string
	MaxConcurrent  int
	ChunkSize      int64
	Timeout        time.Duration
	ConnectTimeout time.Duration
	UserAgent      string
	Headers        map[string]string
	Retry          RetryPolicy
	ResumeEnabled  bool
}

// Phase is the lifecycle state of one transfer unit.
type Phase int

const (
	PhaseProbing Phase = iota
	PhaseDeciding
	PhaseFetching
	PhasePersisting
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseProbing:
		return "probing"
	case PhaseDeciding:
		return "deciding"
	case PhaseFetching:
		return "fetching"
	case PhasePersisting:
		return "persisting"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Failure records one file that exhausted its attempts.
type Failure struct {
	Filename string
	Message  string
}

// Summary aggregates terminal states across a run. Bytes counts only data
// fetched by this run, not bytes a resumed partial file already held.
// Failures keep template order so reports are stable regardless of
// completion order.
type Summary struct {
	Completed int
	Failed    int
	Cancelled int
	Bytes     int64
	Failures  []Failure
}
