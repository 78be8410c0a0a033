package job

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")

	if lc.State() != StatePending {
		t.Errorf("expected StatePending, got %v", lc.State())
	}
	if lc.ID() != "job-1" {
		t.Errorf("expected job-1, got %v", lc.ID())
	}
	snap := lc.Snapshot()
	if snap.StartedAt != nil || snap.FinishedAt != nil {
		t.Error("expected no timestamps before start")
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")

	if err := lc.Start(); err != nil {
		t.Fatalf("start: unexpected error: %v", err)
	}
	if lc.State() != StateRunning {
		t.Errorf("expected StateRunning, got %v", lc.State())
	}
	if err := lc.Complete("call.json"); err != nil {
		t.Fatalf("complete: unexpected error: %v", err)
	}

	snap := lc.Snapshot()
	if snap.State != StateCompleted {
		t.Errorf("expected StateCompleted, got %v", snap.State)
	}
	if snap.TranscriptFilename != "call.json" {
		t.Errorf("expected call.json, got %s", snap.TranscriptFilename)
	}
	if snap.StartedAt == nil || snap.FinishedAt == nil {
		t.Error("expected start and finish timestamps")
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")

	if err := lc.Complete("x.json"); err != ErrJobNotStarted {
		t.Errorf("expected ErrJobNotStarted, got %v", err)
	}
	if err := lc.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.Start(); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := lc.Complete("x.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.Start(); err != ErrJobFinished {
		t.Errorf("expected ErrJobFinished, got %v", err)
	}
	if lc.Fail(errors.New("late")) {
		t.Error("expected Fail to be a no-op after completion")
	}
	if lc.State() != StateCompleted {
		t.Errorf("expected StateCompleted, got %v", lc.State())
	}
}

func TestLifecycle_FailFromPending(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")

	if !lc.Fail(errors.New("lock wait cancelled")) {
		t.Fatal("expected Fail to succeed")
	}
	snap := lc.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("expected StateFailed, got %v", snap.State)
	}
	if snap.Error != "lock wait cancelled" {
		t.Errorf("expected error recorded, got %q", snap.Error)
	}
	if lc.Fail(nil) {
		t.Error("expected second Fail to return false")
	}
}

func TestLifecycle_ConcurrentFail(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")
	lc.Start()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.Fail(errors.New("boom")) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful Fail, got %d", wins)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{StatePending, "PENDING", false},
		{StateRunning, "RUNNING", false},
		{StateCompleted, "COMPLETED", true},
		{StateFailed, "FAILED", true},
		{State(99), "UNKNOWN(99)", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("%s: expected IsTerminal %v, got %v", tt.expected, tt.terminal, got)
		}
	}
}

func TestSnapshot_JSON(t *testing.T) {
	lc := NewLifecycle("job-1", "call.wav")
	data, err := json.Marshal(lc.Snapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"state":"PENDING"`) {
		t.Errorf("expected state by name, got %s", data)
	}
}
