package pyannote

import (
	"context"
	"errors"
	"testing"

	"speech-diarization-service/internal/service/diarization"
	"speech-diarization-service/internal/service/engine"
)

func TestLoad_RequiresToken(t *testing.T) {
	_, err := Load(context.Background(), Config{}, "pyannote/speaker-diarization-3.1", engine.DeviceCPU)
	if !errors.Is(err, engine.ErrModelLoad) {
		t.Errorf("expected model load error, got %v", err)
	}
}

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name     string
		c        diarization.Constraint
		expected request
	}{
		{"none", diarization.None(), request{Audio: "a.wav"}},
		{"exact", diarization.Exactly(2), request{Audio: "a.wav", NumSpeakers: 2}},
		{"range", diarization.Between(1, 4), request{Audio: "a.wav", MinSpeakers: 1, MaxSpeakers: 4}},
		{"min only", diarization.Between(3, 0), request{Audio: "a.wav", MinSpeakers: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newRequest("a.wav", tt.c); got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
