// Package diarization defines the speaker diarization contract, speaker-count
// constraints and provider routing.
package diarization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/engine"
)

// ErrInvalidConstraint is returned for non-positive or inverted speaker bounds.
var ErrInvalidConstraint = errors.New("invalid speaker constraint")

// Constraint bounds the number of speakers the diarizer may produce.
// Zero fields are unset; Exact excludes Min and Max.
type Constraint struct {
	Exact int
	Min   int
	Max   int
}

// None places no bound on the speaker count.
func None() Constraint { return Constraint{} }

// Exactly requires n speakers.
func Exactly(n int) Constraint { return Constraint{Exact: n} }

// Between requires between min and max speakers; either bound may be zero.
func Between(min, max int) Constraint { return Constraint{Min: min, Max: max} }

// Resolve builds a constraint from optional request fields. A speaker count
// takes precedence over min/max when both are supplied.
func Resolve(num, min, max *int) (Constraint, error) {
	if num != nil {
		if *num < 1 {
			return Constraint{}, fmt.Errorf("%w: num_speakers must be at least 1, got %d", ErrInvalidConstraint, *num)
		}
		return Exactly(*num), nil
	}

	var c Constraint
	if min != nil {
		if *min < 1 {
			return Constraint{}, fmt.Errorf("%w: min_speakers must be at least 1, got %d", ErrInvalidConstraint, *min)
		}
		c.Min = *min
	}
	if max != nil {
		if *max < 1 {
			return Constraint{}, fmt.Errorf("%w: max_speakers must be at least 1, got %d", ErrInvalidConstraint, *max)
		}
		c.Max = *max
	}
	if c.Min > 0 && c.Max > 0 && c.Min > c.Max {
		return Constraint{}, fmt.Errorf("%w: min_speakers %d exceeds max_speakers %d", ErrInvalidConstraint, c.Min, c.Max)
	}
	return c, nil
}

// IsZero reports whether the constraint places no bound.
func (c Constraint) IsZero() bool {
	return c == Constraint{}
}

// Satisfied reports whether n distinct speakers honor the constraint.
func (c Constraint) Satisfied(n int) bool {
	if c.Exact > 0 {
		return n == c.Exact
	}
	if c.Min > 0 && n < c.Min {
		return false
	}
	if c.Max > 0 && n > c.Max {
		return false
	}
	return true
}

func (c Constraint) String() string {
	switch {
	case c.Exact > 0:
		return fmt.Sprintf("exact(%d)", c.Exact)
	case c.Min > 0 || c.Max > 0:
		return fmt.Sprintf("range(%d,%d)", c.Min, c.Max)
	default:
		return "none"
	}
}

// Diarizer partitions the speech in an audio file into speaker turns.
type Diarizer interface {
	// Diarize returns turns ordered by start. When no speech is detected it
	// returns an empty slice and no error.
	Diarize(ctx context.Context, audioPath string, c Constraint) ([]models.SpeakerTurn, error)

	// Close releases the loaded model.
	Close() error
}

// Factory loads a diarizer for a provider-local model name.
type Factory = engine.Factory[Diarizer]

// Registry routes model identifiers to diarization providers.
type Registry = engine.Registry[Diarizer]

// NewRegistry creates a registry that sends unprefixed models to fallback.
func NewRegistry(fallback string) *Registry {
	return engine.NewRegistry[Diarizer]("diarization", fallback)
}

// Normalize drops turns without a speaker or with inverted bounds and orders
// the rest by start.
func Normalize(turns []models.SpeakerTurn) []models.SpeakerTurn {
	out := make([]models.SpeakerTurn, 0, len(turns))
	for _, t := range turns {
		t.Speaker = strings.TrimSpace(t.Speaker)
		if t.Speaker == "" || t.End < t.Start {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Clamp trims turns to the audio length in seconds, dropping turns that start
// past the end. A non-positive duration leaves turns untouched.
func Clamp(turns []models.SpeakerTurn, duration float64) []models.SpeakerTurn {
	if duration <= 0 {
		return turns
	}
	out := turns[:0:0]
	for _, t := range turns {
		if t.Start >= duration {
			continue
		}
		if t.End > duration {
			t.End = duration
		}
		out = append(out, t)
	}
	return out
}
