package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestFS_PutGet(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a.json", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "a.json", []byte("two")); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.Get(ctx, "a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("expected replaced value, got %q", got)
	}

	if _, err := s.Get(ctx, "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFS_PutLeavesNoTempFiles(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(ctx, "shared.json", []byte(fmt.Sprintf("value-%02d", i)))
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "shared.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only shared.json, got %v", names)
	}

	got, _ := s.Get(ctx, "shared.json")
	if !strings.HasPrefix(string(got), "value-") || len(got) != len("value-00") {
		t.Errorf("expected one complete value, got %q", got)
	}
}

func TestFS_InvalidKeys(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()

	for _, key := range []string{"", ".", "..", "../x.json", "a/b.json", `a\b.json`, ".tmp-123"} {
		if err := s.Put(ctx, key, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Put(%q): expected ErrInvalidName, got %v", key, err)
		}
	}
}

func TestFS_DeleteAndExists(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()
	s.Put(ctx, "a.json", []byte("x"))

	if ok, _ := s.Exists(ctx, "a.json"); !ok {
		t.Error("expected key to exist")
	}
	if err := s.Delete(ctx, "a.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "a.json"); ok {
		t.Error("expected key to be gone")
	}
	if err := s.Delete(ctx, "a.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFS_Rename(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()
	s.Put(ctx, "a.json", []byte("a"))
	s.Put(ctx, "b.json", []byte("b"))

	if err := s.Rename(ctx, "a.json", "b.json"); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if err := s.Rename(ctx, "missing.json", "c.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Rename(ctx, "a.json", "c.json"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	got, _ := s.Get(ctx, "c.json")
	if string(got) != "a" {
		t.Errorf("expected moved content, got %q", got)
	}
	if ok, _ := s.Exists(ctx, "a.json"); ok {
		t.Error("expected old key removed")
	}
	b, _ := s.Get(ctx, "b.json")
	if string(b) != "b" {
		t.Errorf("expected b.json untouched, got %q", b)
	}
}

func TestFS_Keys(t *testing.T) {
	s := newFS(t)
	ctx := context.Background()
	s.Put(ctx, "b.json", []byte("x"))
	s.Put(ctx, "a.json", []byte("x"))
	os.WriteFile(s.Dir()+"/"+tempPrefix+"partial", []byte("x"), 0o644)
	os.Mkdir(s.Dir()+"/sub", 0o755)

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if strings.Join(keys, ",") != "a.json,b.json" {
		t.Errorf("expected [a.json b.json], got %v", keys)
	}
}

func TestFS_CancelledContext(t *testing.T) {
	s := newFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "a.json", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
