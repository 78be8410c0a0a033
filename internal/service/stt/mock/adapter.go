// Package mock provides a deterministic transcriber for running the service
// and its tests without model downloads or cloud credentials.
package mock

import (
	"context"
	"sync"
	"time"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/stt"
)

// DefaultUtterances is the script laid over the audio, cycled as needed.
var DefaultUtterances = []string{
	"I want to cancel my subscription",
	"Yes please go ahead",
	"Can you help me with my account",
	"I've been waiting for over an hour",
	"Thank you very much",
}

// defaultSlot is the utterance length used when the audio duration is unknown.
const defaultSlot = 2 * time.Second

// Adapter implements stt.Transcriber with canned utterances.
type Adapter struct {
	Utterances []string
	Latency    time.Duration // simulated inference time

	mu     sync.Mutex
	calls  int
	closed bool
}

// New creates a new mock transcriber.
func New() *Adapter {
	return &Adapter{Utterances: DefaultUtterances}
}

// Factory returns an stt.Factory producing mock transcribers.
func Factory() stt.Factory {
	return func(ctx context.Context, model string, device engine.Device) (stt.Transcriber, error) {
		return New(), nil
	}
}

// Transcribe splits the audio into equal slots, one utterance per slot.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, engine.Errorf(engine.KindInternal, "mock transcribe", "transcriber closed")
	}
	a.calls++
	a.mu.Unlock()

	info, err := audio.Probe(audioPath, audio.Limits{})
	if err != nil {
		return nil, err
	}

	if a.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.Latency):
		}
	}

	n := len(a.Utterances)
	if n == 0 {
		return nil, nil
	}
	slot := defaultSlot
	if info.Duration > 0 {
		slot = info.Duration / time.Duration(n)
	}

	segments := make([]models.TranscriptSegment, 0, n)
	for i, text := range a.Utterances {
		start := time.Duration(i) * slot
		segments = append(segments, models.TranscriptSegment{
			Start: start.Seconds(),
			End:   (start + slot).Seconds(),
			Text:  text,
		})
	}
	return stt.Normalize(segments), nil
}

// Calls returns how many times Transcribe ran.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Close marks the transcriber closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
