// Package job provides job ID generation, the job lifecycle state machine
// and a bounded registry of recent jobs.
package job

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a transcription job.
type State int

const (
	// StatePending - Job accepted, waiting for the per-file lock.
	StatePending State = iota
	// StateRunning - Pipeline is executing.
	StateRunning
	// StateCompleted - Transcript persisted.
	StateCompleted
	// StateFailed - Pipeline or persistence failed; nothing was written.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the state is terminal (COMPLETED or FAILED).
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Errors for invalid state transitions.
var (
	ErrJobFinished    = errors.New("job already finished")
	ErrJobNotStarted  = errors.New("job not started")
	ErrAlreadyRunning = errors.New("job already running")
)

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID                 string     `json:"id"`
	Filename           string     `json:"filename"`
	TranscriptFilename string     `json:"transcript_filename,omitempty"`
	State              State      `json:"state"`
	Error              string     `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// Lifecycle manages the state machine for a single job.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	PENDING → RUNNING → COMPLETED
//	   │          │
//	   │          └──→ FAILED
//	   └──────────────→ FAILED
type Lifecycle struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewLifecycle creates a job in PENDING state.
func NewLifecycle(id, filename string) *Lifecycle {
	l := &Lifecycle{now: time.Now}
	l.snap = Snapshot{ID: id, Filename: filename, State: StatePending, CreatedAt: l.now()}
	return l
}

// ID returns the job ID.
func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap.ID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap.State
}

// Snapshot returns a copy of the job.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Start transitions PENDING to RUNNING.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.snap.State {
	case StatePending:
		now := l.now()
		l.snap.State = StateRunning
		l.snap.StartedAt = &now
		return nil
	case StateRunning:
		return ErrAlreadyRunning
	default:
		return ErrJobFinished
	}
}

// Complete transitions RUNNING to COMPLETED.
func (l *Lifecycle) Complete(transcriptFilename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.snap.State {
	case StateRunning:
		l.finish(StateCompleted)
		l.snap.TranscriptFilename = transcriptFilename
		return nil
	case StatePending:
		return ErrJobNotStarted
	default:
		return ErrJobFinished
	}
}

// Fail transitions a non-terminal job to FAILED.
// Returns false if the job had already finished.
func (l *Lifecycle) Fail(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snap.State.IsTerminal() {
		return false
	}
	l.finish(StateFailed)
	if err != nil {
		l.snap.Error = err.Error()
	}
	return true
}

func (l *Lifecycle) finish(s State) {
	now := l.now()
	l.snap.State = s
	l.snap.FinishedAt = &now
}
