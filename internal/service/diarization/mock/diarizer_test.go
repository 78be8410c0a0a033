package mock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/align"
	"speech-diarization-service/internal/service/diarization"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/testutil"
)

func TestDiarize_HonorsConstraint(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "call.wav", 8000, 12)

	tests := []struct {
		name     string
		c        diarization.Constraint
		speakers int
	}{
		{"default", diarization.None(), 2},
		{"exact", diarization.Exactly(3), 3},
		{"min above default", diarization.Between(4, 6), 4},
		{"max below default", diarization.Between(0, 1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns, err := New().Diarize(context.Background(), path, tt.c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := align.SpeakerCount(turns); got != tt.speakers {
				t.Errorf("expected %d speakers, got %d", tt.speakers, got)
			}
			if !tt.c.Satisfied(align.SpeakerCount(turns)) {
				t.Errorf("expected constraint %v satisfied", tt.c)
			}
			last := turns[len(turns)-1]
			if last.End < 11.9 || last.End > 12.1 {
				t.Errorf("expected turns to cover the audio, last ends at %v", last.End)
			}
		})
	}
}

func TestDiarize_FixedTurns(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "call.wav", 8000, 1)
	d := New()
	d.Turns = []models.SpeakerTurn{}

	turns, err := d.Diarize(context.Background(), path, diarization.None())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
	if d.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", d.Calls())
	}
}

func TestDiarize_InvalidAudio(t *testing.T) {
	_, err := New().Diarize(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), diarization.None())
	if !errors.Is(err, engine.ErrInvalidAudio) {
		t.Errorf("expected invalid audio error, got %v", err)
	}
}
