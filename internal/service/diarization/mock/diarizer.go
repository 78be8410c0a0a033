// Package mock provides a deterministic diarizer for running the service and
// its tests without pyannote.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/diarization"
	"speech-diarization-service/internal/service/engine"
)

// defaultSpeakers is used when the constraint does not fix a count.
const defaultSpeakers = 2

// Diarizer alternates speakers over equal windows of the audio.
type Diarizer struct {
	// Turns, when set, is returned verbatim instead of generated turns.
	Turns []models.SpeakerTurn
	// TurnsPerSpeaker controls how often the speaker changes.
	TurnsPerSpeaker int

	mu     sync.Mutex
	calls  int
	closed bool
}

// New creates a new mock diarizer.
func New() *Diarizer {
	return &Diarizer{TurnsPerSpeaker: 2}
}

// Factory returns a diarization.Factory producing mock diarizers.
func Factory() diarization.Factory {
	return func(ctx context.Context, model string, device engine.Device) (diarization.Diarizer, error) {
		return New(), nil
	}
}

// Diarize returns turns honoring the constraint's speaker count.
func (d *Diarizer) Diarize(ctx context.Context, audioPath string, c diarization.Constraint) ([]models.SpeakerTurn, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, engine.Errorf(engine.KindInternal, "mock diarize", "diarizer closed")
	}
	d.calls++
	d.mu.Unlock()

	info, err := audio.Probe(audioPath, audio.Limits{})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Turns != nil {
		return diarization.Normalize(d.Turns), nil
	}

	speakers := speakerCount(c)
	perSpeaker := d.TurnsPerSpeaker
	if perSpeaker < 1 {
		perSpeaker = 1
	}
	n := speakers * perSpeaker
	duration := info.Duration
	if duration <= 0 {
		duration = time.Duration(n) * 2 * time.Second
	}
	window := duration / time.Duration(n)

	turns := make([]models.SpeakerTurn, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(i) * window
		turns = append(turns, models.SpeakerTurn{
			Start:   start.Seconds(),
			End:     (start + window).Seconds(),
			Speaker: fmt.Sprintf("SPEAKER_%02d", i%speakers),
		})
	}
	return turns, nil
}

func speakerCount(c diarization.Constraint) int {
	switch {
	case c.Exact > 0:
		return c.Exact
	case c.Min > defaultSpeakers:
		return c.Min
	case c.Max > 0 && c.Max < defaultSpeakers:
		return c.Max
	default:
		return defaultSpeakers
	}
}

// Calls returns how many times Diarize ran.
func (d *Diarizer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Close marks the diarizer closed.
func (d *Diarizer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
