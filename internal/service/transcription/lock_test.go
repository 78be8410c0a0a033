package transcription

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	l := newKeyedLock()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "a.json")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("expected at most 1 holder, got %d", peak.Load())
	}
	if l.size() != 0 {
		t.Errorf("expected entries released, got %d", l.size())
	}
}

func TestKeyedLock_IndependentKeys(t *testing.T) {
	l := newKeyedLock()

	unlockA, _ := l.Lock(context.Background(), "a.json")
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b.json")
	if err != nil {
		t.Fatalf("expected other key to be free, got %v", err)
	}
	unlockB()
}

func TestKeyedLock_ContextCancel(t *testing.T) {
	l := newKeyedLock()

	unlock, _ := l.Lock(context.Background(), "a.json")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a.json"); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	unlock()
	unlock() // idempotent
	if l.size() != 0 {
		t.Errorf("expected entries released, got %d", l.size())
	}
}

func TestKeyedLock_LockAll(t *testing.T) {
	l := newKeyedLock()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		keys := []string{"a.json", "b.json"}
		if i%2 == 1 {
			keys = []string{"b.json", "a.json"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.LockAll(context.Background(), keys...)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}

	unlock, err := l.LockAll(context.Background(), "a.json", "a.json")
	if err != nil {
		t.Fatalf("expected duplicate keys to be tolerated, got %v", err)
	}
	unlock()
}
