// Package stt defines the transcription engine contract and routes model
// identifiers to the provider that serves them.
package stt

import (
	"context"
	"sort"
	"strings"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/engine"
)

// Transcriber converts an audio file into time-stamped text segments.
type Transcriber interface {
	// Transcribe returns segments ordered by start time.
	Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error)

	// Close releases the loaded model.
	Close() error
}

// Factory loads a transcriber for a provider-local model name.
type Factory = engine.Factory[Transcriber]

// Registry routes model identifiers to transcription providers.
type Registry = engine.Registry[Transcriber]

// NewRegistry creates a registry that sends unprefixed models to fallback.
func NewRegistry(fallback string) *Registry {
	return engine.NewRegistry[Transcriber]("transcription", fallback)
}

// Normalize trims text, drops empty segments, repairs inverted bounds and
// orders segments by start.
func Normalize(segments []models.TranscriptSegment) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// CloseOpenEnds widens zero-width segments, which engines emit when they
// lose a chunk's end timestamp. Each one extends to the next segment's start,
// or to duration for the last segment. Segments must be ordered by start.
func CloseOpenEnds(segments []models.TranscriptSegment, duration float64) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, len(segments))
	copy(out, segments)
	for i := range out {
		if out[i].End > out[i].Start {
			continue
		}
		limit := duration
		if i+1 < len(out) {
			limit = out[i+1].Start
		}
		if limit > out[i].Start {
			out[i].End = limit
		}
	}
	return out
}
