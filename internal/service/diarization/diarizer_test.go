package diarization

import (
	"errors"
	"testing"

	"speech-diarization-service/internal/models"
)

func intp(n int) *int { return &n }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		num      *int
		min      *int
		max      *int
		expected Constraint
		wantErr  bool
	}{
		{"none", nil, nil, nil, None(), false},
		{"exact", intp(2), nil, nil, Exactly(2), false},
		{"exact wins over range", intp(3), intp(1), intp(5), Exactly(3), false},
		{"range", nil, intp(2), intp(4), Between(2, 4), false},
		{"min only", nil, intp(2), nil, Between(2, 0), false},
		{"max only", nil, nil, intp(4), Between(0, 4), false},
		{"min equals max", nil, intp(2), intp(2), Between(2, 2), false},
		{"zero exact", intp(0), nil, nil, Constraint{}, true},
		{"negative min", nil, intp(-1), intp(3), Constraint{}, true},
		{"zero max", nil, nil, intp(0), Constraint{}, true},
		{"inverted", nil, intp(5), intp(2), Constraint{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.num, tt.min, tt.max)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConstraint) {
					t.Errorf("expected ErrInvalidConstraint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestConstraint_Satisfied(t *testing.T) {
	tests := []struct {
		c        Constraint
		n        int
		expected bool
	}{
		{None(), 0, true},
		{None(), 7, true},
		{Exactly(2), 2, true},
		{Exactly(2), 1, false},
		{Between(2, 4), 1, false},
		{Between(2, 4), 3, true},
		{Between(2, 4), 5, false},
		{Between(2, 0), 9, true},
		{Between(0, 3), 4, false},
	}

	for _, tt := range tests {
		if got := tt.c.Satisfied(tt.n); got != tt.expected {
			t.Errorf("%v.Satisfied(%d) = %v, want %v", tt.c, tt.n, got, tt.expected)
		}
	}
}

func TestConstraint_String(t *testing.T) {
	tests := map[string]Constraint{
		"none":       None(),
		"exact(2)":   Exactly(2),
		"range(1,3)": Between(1, 3),
	}
	for want, c := range tests {
		if got := c.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
	if !None().IsZero() || Exactly(1).IsZero() {
		t.Error("unexpected IsZero result")
	}
}

func TestNormalize(t *testing.T) {
	turns := []models.SpeakerTurn{
		{Start: 5, End: 6, Speaker: "SPEAKER_01"},
		{Start: 0, End: 2, Speaker: "SPEAKER_00"},
		{Start: 3, End: 1, Speaker: "SPEAKER_00"},
		{Start: 7, End: 8, Speaker: " "},
	}

	got := Normalize(turns)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Speaker != "SPEAKER_00" || got[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestClamp(t *testing.T) {
	turns := []models.SpeakerTurn{
		{Start: 0, End: 4, Speaker: "A"},
		{Start: 4, End: 11, Speaker: "B"},
		{Start: 10, End: 12, Speaker: "A"},
	}

	got := Clamp(turns, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[1].End != 10 {
		t.Errorf("expected end clamped to 10, got %v", got[1].End)
	}
	if turns[1].End != 11 {
		t.Error("expected input left unmodified")
	}
	if len(Clamp(turns, 0)) != 3 {
		t.Error("expected unknown duration to keep all turns")
	}
}
