// Package schema checks transcripts and speaker name maps before they are
// persisted.
package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"speech-diarization-service/internal/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("schema validation failed")

// MaxSpeakerNameLength bounds display names.
const MaxSpeakerNameLength = 128

// ValidationError lists every problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks segment bounds, ordering and labels.
func (v *Validator) Validate(t models.Transcript) error {
	var problems []string
	prevStart := math.Inf(-1)
	for i, s := range t.Speakers {
		switch {
		case math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0):
			problems = append(problems, fmt.Sprintf("speakers[%d]: non-finite time", i))
			continue
		case s.Start < 0:
			problems = append(problems, fmt.Sprintf("speakers[%d]: negative start %.3f", i, s.Start))
		case s.End < s.Start:
			problems = append(problems, fmt.Sprintf("speakers[%d]: end %.3f before start %.3f", i, s.End, s.Start))
		}
		if s.Start < prevStart {
			problems = append(problems, fmt.Sprintf("speakers[%d]: out of order", i))
		}
		if strings.TrimSpace(s.Speaker) == "" {
			problems = append(problems, fmt.Sprintf("speakers[%d]: empty speaker", i))
		}
		prevStart = s.Start
	}
	return result(problems)
}

// ValidateNames checks a speaker rename map. Keys and values must be
// non-blank and values bounded in length.
func (v *Validator) ValidateNames(names models.SpeakerNameMap) error {
	var problems []string
	for k, name := range names {
		if strings.TrimSpace(k) == "" {
			problems = append(problems, "blank speaker label")
		}
		if strings.TrimSpace(name) == "" {
			problems = append(problems, fmt.Sprintf("%s: blank name", k))
		}
		if len(name) > MaxSpeakerNameLength {
			problems = append(problems, fmt.Sprintf("%s: name longer than %d bytes", k, MaxSpeakerNameLength))
		}
	}
	return result(problems)
}

func result(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
