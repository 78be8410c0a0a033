package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"speech-diarization-service/internal/config"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	t.Setenv("UPLOAD_DIR", filepath.Join(root, "uploads"))
	t.Setenv("TRANSCRIPT_DIR", filepath.Join(root, "transcripts"))
	t.Setenv("INBOX_DIR", filepath.Join(root, "inbox"))
	t.Setenv("TRANSCRIPTION_MODEL", "mock")
	t.Setenv("DIARIZATION_MODEL", "mock")
	t.Setenv("DEVICE", "cpu")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestApplication_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Enabled = true

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Ready() {
		t.Error("expected not ready before Start")
	}
	if a.Watcher == nil {
		t.Fatal("expected watcher when enabled")
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.Ready() {
		t.Error("expected ready after Start")
	}

	out, err := a.Transcripts.Upload(ctx, "call.wav", bytes.NewReader(testutil.WAVBytes(8000, 4)), pipeline.Options{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(out.Transcript.Speakers) == 0 {
		t.Error("expected a transcript from the mock engines")
	}
	if a.Cache.Len() != 2 {
		t.Errorf("expected both mock models cached, got %d", a.Cache.Len())
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if a.Ready() {
		t.Error("expected not ready after Shutdown")
	}
}

func TestNewTranscribers_Routing(t *testing.T) {
	cfg := testConfig(t)
	r := newTranscribers(cfg)

	tests := []struct {
		model, provider string
	}{
		{"openai/whisper-large-v3", "whisper"},
		{"google/latest_long", "google"},
		{"mock", "mock"},
	}
	for _, tt := range tests {
		if p, _ := r.Resolve(tt.model); p != tt.provider {
			t.Errorf("%s: expected provider %s, got %s", tt.model, tt.provider, p)
		}
	}

	if p, _ := newDiarizers(cfg).Resolve("pyannote/speaker-diarization-3.1"); p != "pyannote" {
		t.Errorf("expected pyannote provider, got %s", p)
	}
}
