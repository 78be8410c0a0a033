// Package pipeline runs transcription and diarization over one audio file and
// merges the results into a speaker-attributed transcript.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/observability/metrics"
	"speech-diarization-service/internal/service/align"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/diarization"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/stt"
)

// ErrInvalidOptions is returned when request options cannot be honored as given.
var ErrInvalidOptions = errors.New("invalid options")

// Engine kinds used as model cache key prefixes.
const (
	KindTranscription = "transcription"
	KindDiarization   = "diarization"
)

// Options selects models, device and speaker bounds for one run.
// Empty strings fall back to the orchestrator defaults.
type Options struct {
	TranscriptionModel string
	DiarizationModel   string
	NumSpeakers        *int
	MinSpeakers        *int
	MaxSpeakers        *int
	Device             string
}

// Request is one pipeline invocation.
type Request struct {
	AudioPath string
	Options
}

// Resolved holds options after defaults and validation.
type Resolved struct {
	TranscriptionModel string
	DiarizationModel   string
	Constraint         diarization.Constraint
	Device             engine.Device
}

// Result is the outcome of a successful run.
type Result struct {
	Transcript          models.Transcript
	Resolved            Resolved
	AudioDuration       time.Duration
	Speakers            int // distinct diarized speakers
	UnknownSegments     int
	ConstraintSatisfied bool
}

// Config holds orchestrator defaults.
type Config struct {
	TranscriptionModel string
	DiarizationModel   string
	Device             string
	Limits             audio.Limits
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TranscriptionModel: "openai/whisper-large-v3",
		DiarizationModel:   "pyannote/speaker-diarization-3.1",
		Device:             "0",
		Limits:             audio.DefaultLimits(),
	}
}

// Orchestrator runs the pipeline. It is safe for concurrent use; loaded
// models are shared through the cache.
type Orchestrator struct {
	cfg          Config
	transcribers *stt.Registry
	diarizers    *diarization.Registry
	cache        *engine.Cache
	metrics      *metrics.Metrics
}

// New creates an orchestrator.
func New(cfg Config, transcribers *stt.Registry, diarizers *diarization.Registry, cache *engine.Cache) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		transcribers: transcribers,
		diarizers:    diarizers,
		cache:        cache,
		metrics:      metrics.DefaultMetrics,
	}
}

// Resolve applies defaults to opts and validates them.
func (o *Orchestrator) Resolve(opts Options) (Resolved, error) {
	r := Resolved{
		TranscriptionModel: opts.TranscriptionModel,
		DiarizationModel:   opts.DiarizationModel,
	}
	if r.TranscriptionModel == "" {
		r.TranscriptionModel = o.cfg.TranscriptionModel
	}
	if r.DiarizationModel == "" {
		r.DiarizationModel = o.cfg.DiarizationModel
	}

	c, err := diarization.Resolve(opts.NumSpeakers, opts.MinSpeakers, opts.MaxSpeakers)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	r.Constraint = c

	device := opts.Device
	if device == "" {
		device = o.cfg.Device
	}
	d, err := engine.ParseDevice(device)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	r.Device = d
	return r, nil
}

// Run transcribes and diarizes the file concurrently and merges the results.
//
// A diarization result that violates the speaker constraint is logged and
// counted but still used. An empty turn set labels every segment UNKNOWN.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	resolved, err := o.Resolve(req.Options)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("component", "pipeline").
		Str("audio", req.AudioPath).
		Str("transcriptionModel", resolved.TranscriptionModel).
		Str("diarizationModel", resolved.DiarizationModel).
		Str("device", resolved.Device.String()).
		Str("constraint", resolved.Constraint.String()).
		Logger()

	start := time.Now()
	info, err := audio.Probe(req.AudioPath, o.cfg.Limits)
	o.metrics.RecordStage("probe", time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordEngineError("probe", engine.KindOf(err).String())
		return nil, err
	}

	var (
		segments []models.TranscriptSegment
		turns    []models.SpeakerTurn
	)

	// Plain group: a failure in one engine must not cancel the other, since
	// cancelling a call kills its model worker.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		segments, err = o.transcribe(ctx, resolved, req.AudioPath)
		return err
	})
	g.Go(func() error {
		var err error
		turns, err = o.diarize(ctx, resolved, req.AudioPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	turns = diarization.Clamp(turns, info.Duration.Seconds())
	speakers := align.SpeakerCount(turns)
	satisfied := resolved.Constraint.Satisfied(speakers)

	switch {
	case len(turns) == 0:
		logger.Info().Msg("No speaker turns detected, segments will be labeled UNKNOWN")
	case !satisfied:
		o.metrics.RecordConstraintViolation()
		logger.Warn().
			Err(engine.ErrConstraintUnsatisfiable).
			Int("speakers", speakers).
			Msg("Diarization did not honor speaker constraint, using best-effort turns")
	}

	alignStart := time.Now()
	merged := align.Merge(segments, turns)
	o.metrics.RecordStage("align", time.Since(alignStart).Seconds())

	unknown := 0
	for _, s := range merged {
		if s.Speaker == models.UnknownSpeaker {
			unknown++
		}
	}
	o.metrics.RecordAlignment(len(merged), unknown)

	logger.Info().
		Int("segments", len(merged)).
		Int("turns", len(turns)).
		Int("speakers", speakers).
		Int("unknown", unknown).
		Dur("duration", time.Since(start)).
		Msg("Pipeline completed")

	return &Result{
		Transcript:          models.Transcript{Speakers: merged},
		Resolved:            resolved,
		AudioDuration:       info.Duration,
		Speakers:            speakers,
		UnknownSegments:     unknown,
		ConstraintSatisfied: len(turns) == 0 || satisfied,
	}, nil
}

// deadChecker is implemented by worker-backed models that can die mid-call.
type deadChecker interface {
	Dead() bool
}

func (o *Orchestrator) transcribe(ctx context.Context, r Resolved, path string) ([]models.TranscriptSegment, error) {
	key := engine.Key{Kind: KindTranscription, Model: r.TranscriptionModel, Device: r.Device}
	m, release, err := o.cache.Acquire(ctx, key, func(ctx context.Context) (engine.Model, error) {
		return o.transcribers.Load(ctx, r.TranscriptionModel, r.Device)
	})
	if err != nil {
		o.metrics.RecordEngineError(KindTranscription, engine.KindOf(err).String())
		return nil, err
	}
	defer release()

	start := time.Now()
	segments, err := m.(stt.Transcriber).Transcribe(ctx, path)
	o.metrics.RecordStage(KindTranscription, time.Since(start).Seconds())
	if err != nil {
		o.afterFailure(key, m, KindTranscription, err)
		return nil, err
	}
	return segments, nil
}

func (o *Orchestrator) diarize(ctx context.Context, r Resolved, path string) ([]models.SpeakerTurn, error) {
	key := engine.Key{Kind: KindDiarization, Model: r.DiarizationModel, Device: r.Device}
	m, release, err := o.cache.Acquire(ctx, key, func(ctx context.Context) (engine.Model, error) {
		return o.diarizers.Load(ctx, r.DiarizationModel, r.Device)
	})
	if err != nil {
		o.metrics.RecordEngineError(KindDiarization, engine.KindOf(err).String())
		return nil, err
	}
	defer release()

	start := time.Now()
	turns, err := m.(diarization.Diarizer).Diarize(ctx, path, r.Constraint)
	o.metrics.RecordStage(KindDiarization, time.Since(start).Seconds())
	if err != nil {
		o.afterFailure(key, m, KindDiarization, err)
		return nil, err
	}
	return turns, nil
}

func (o *Orchestrator) afterFailure(key engine.Key, m engine.Model, kind string, err error) {
	o.metrics.RecordEngineError(kind, engine.KindOf(err).String())
	if dc, ok := m.(deadChecker); ok && dc.Dead() {
		log.Warn().Str("model", key.Model).Str("kind", kind).Msg("Model worker died, discarding from cache")
		o.cache.Discard(key, m)
	}
}
