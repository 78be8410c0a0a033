// Package transcription implements the transcript use cases shared by the
// HTTP API, the gRPC API and the inbox watcher.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/observability/logging"
	"speech-diarization-service/internal/observability/metrics"
	"speech-diarization-service/internal/schema"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/job"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/storage"
)

// ErrUnsupportedFormat is returned for uploads whose extension is not a
// known audio format.
var ErrUnsupportedFormat = engine.Errorf(engine.KindInvalidAudio, "upload", "unsupported file type, expected one of %v", audio.SupportedExtensions)

// publishTimeout bounds event delivery after a job finishes.
const publishTimeout = 10 * time.Second

// Runner runs the transcription pipeline.
type Runner interface {
	Resolve(opts pipeline.Options) (pipeline.Resolved, error)
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// EventPublisher announces finished jobs.
type EventPublisher interface {
	Publish(ctx context.Context, event models.TranscriptEvent) error
}

// Outcome describes a finished transcription.
type Outcome struct {
	JobID              string
	Filename           string
	TranscriptFilename string
	Transcript         models.Transcript
	Result             *pipeline.Result
}

// Service coordinates storage, the pipeline and job tracking. At most one
// transcription, rename, delete or speaker-name update runs per transcript
// at a time.
type Service struct {
	store     *storage.AudioStore
	runner    Runner
	jobs      *job.Registry
	publisher EventPublisher
	validator *schema.Validator
	locks     *keyedLock
	metrics   *metrics.Metrics
}

func New(store *storage.AudioStore, runner Runner, jobs *job.Registry, publisher EventPublisher) *Service {
	return &Service{
		store:     store,
		runner:    runner,
		jobs:      jobs,
		publisher: publisher,
		validator: schema.New(),
		locks:     newKeyedLock(),
		metrics:   metrics.DefaultMetrics,
	}
}

// Upload stores the audio and transcribes it. Options are validated before
// anything is written.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader, opts pipeline.Options) (*Outcome, error) {
	if !audio.IsSupported(filename) {
		return nil, ErrUnsupportedFormat
	}
	if _, err := s.runner.Resolve(opts); err != nil {
		return nil, err
	}
	name, err := storage.SecureFilename(filename)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", filename, err)
	}

	// Hold the file's lock across the write so a run in progress never sees
	// its audio replaced.
	key := storage.TranscriptKey(name)
	lc := s.jobs.Create(name)
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		lc.Fail(err)
		return nil, fmt.Errorf("wait for %s: %w", name, err)
	}
	defer unlock()

	if _, err := s.store.Save(ctx, name, r); err != nil {
		lc.Fail(err)
		return nil, err
	}
	return s.transcribeLocked(ctx, lc, name, key, opts)
}

// Transcribe runs the pipeline over a stored audio file and replaces its
// transcript. Nothing is written when the run fails.
func (s *Service) Transcribe(ctx context.Context, filename string, opts pipeline.Options) (*Outcome, error) {
	if _, err := s.store.Path(ctx, filename); err != nil {
		return nil, err
	}

	key := storage.TranscriptKey(filename)
	lc := s.jobs.Create(filename)
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		lc.Fail(err)
		return nil, fmt.Errorf("wait for %s: %w", filename, err)
	}
	defer unlock()

	return s.transcribeLocked(ctx, lc, filename, key, opts)
}

// transcribeLocked runs job lc. The caller holds the lock for key.
func (s *Service) transcribeLocked(ctx context.Context, lc *job.Lifecycle, filename, key string, opts pipeline.Options) (*Outcome, error) {
	logger := logging.WithJob(lc.ID(), filename)
	if err := lc.Start(); err != nil {
		lc.Fail(err)
		logger.Error().Err(err).Msg("Job could not start")
		return nil, err
	}
	s.metrics.RecordJobStart()
	start := time.Now()
	logger.Info().Msg("Transcription started")

	out, err := s.run(ctx, filename, key, opts)
	if err != nil {
		lc.Fail(err)
		s.metrics.RecordJobEnd(false, time.Since(start).Seconds())
		logger.Error().Err(err).Str("errorKind", errorKind(err)).Msg("Transcription failed")
		s.publish(ctx, s.failedEvent(lc.ID(), filename, opts, err))
		return nil, err
	}

	if err := lc.Complete(key); err != nil {
		logger.Warn().Err(err).Msg("Job state transition rejected")
	}
	s.metrics.RecordJobEnd(true, time.Since(start).Seconds())
	out.JobID = lc.ID()
	logger.Info().
		Str("transcriptFilename", key).
		Int("segments", len(out.Transcript.Speakers)).
		Dur("duration", time.Since(start)).
		Msg("Transcription completed")
	s.publish(ctx, s.completedEvent(lc.ID(), out))
	return out, nil
}

func (s *Service) run(ctx context.Context, filename, key string, opts pipeline.Options) (*Outcome, error) {
	// Re-resolve under the lock; a rename may have raced the caller.
	path, err := s.store.Path(ctx, filename)
	if err != nil {
		return nil, err
	}

	res, err := s.runner.Run(ctx, pipeline.Request{AudioPath: path, Options: opts})
	if err != nil {
		return nil, err
	}
	if res.Transcript.Speakers == nil {
		res.Transcript.Speakers = []models.SpeakerSegment{}
	}
	if err := s.validator.Validate(res.Transcript); err != nil {
		return nil, engine.Errorf(engine.KindInternal, "validate", "%v", err)
	}

	data, err := json.MarshalIndent(res.Transcript, "", "  ")
	if err != nil {
		return nil, engine.Errorf(engine.KindInternal, "encode", "%v", err)
	}
	if err := s.store.Transcripts().Put(ctx, key, data); err != nil {
		return nil, err
	}

	return &Outcome{
		Filename:           filename,
		TranscriptFilename: key,
		Transcript:         res.Transcript,
		Result:             res,
	}, nil
}

// Ingest moves a file from outside the store into it and transcribes it with
// default options. The source file is removed once stored.
func (s *Service) Ingest(ctx context.Context, path string) (*Outcome, error) {
	name, err := s.store.Import(ctx, path, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return s.Transcribe(ctx, name, pipeline.Options{})
}

// Transcript returns a stored transcript by its key.
func (s *Service) Transcript(ctx context.Context, key string) (models.Transcript, error) {
	data, err := s.store.Transcripts().Get(ctx, key)
	if err != nil {
		return models.Transcript{}, err
	}
	var t models.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return models.Transcript{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if t.Speakers == nil {
		t.Speakers = []models.SpeakerSegment{}
	}
	return t, nil
}

// Files lists stored audio files.
func (s *Service) Files(ctx context.Context) ([]storage.FileInfo, error) {
	return s.store.List(ctx)
}

// Rename renames an audio file and its transcript and returns the stored
// new name.
func (s *Service) Rename(ctx context.Context, oldName, newName string) (string, error) {
	sanitized, err := storage.SecureFilename(newName)
	if err != nil {
		return "", fmt.Errorf("%q: %w", newName, err)
	}
	unlock, err := s.locks.LockAll(ctx, storage.TranscriptKey(oldName), storage.TranscriptKey(sanitized))
	if err != nil {
		return "", err
	}
	defer unlock()
	return s.store.Rename(ctx, oldName, sanitized)
}

// Delete removes an audio file and its transcript.
func (s *Service) Delete(ctx context.Context, filename string) error {
	unlock, err := s.locks.Lock(ctx, storage.TranscriptKey(filename))
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.Delete(ctx, filename)
}

// UpdateSpeakerNames rewrites speaker labels in a stored transcript and
// returns the updated transcript.
func (s *Service) UpdateSpeakerNames(ctx context.Context, key string, names models.SpeakerNameMap) (models.Transcript, error) {
	if err := s.validator.ValidateNames(names); err != nil {
		return models.Transcript{}, err
	}

	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return models.Transcript{}, err
	}
	defer unlock()

	t, err := s.Transcript(ctx, key)
	if err != nil {
		return models.Transcript{}, err
	}
	updated := t.WithSpeakerNames(names)

	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return models.Transcript{}, err
	}
	if err := s.store.Transcripts().Put(ctx, key, data); err != nil {
		return models.Transcript{}, err
	}

	log.Info().
		Str("component", "transcription").
		Str("transcriptFilename", key).
		Int("renamed", len(names)).
		Msg("Speaker names updated")
	return updated, nil
}

// Job returns a snapshot of a recent job.
func (s *Service) Job(id string) (job.Snapshot, error) {
	return s.jobs.Get(id)
}

func (s *Service) publish(ctx context.Context, event models.TranscriptEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("eventType", event.EventType).Str("filename", event.Filename).Msg("Event not delivered")
	}
}

func (s *Service) completedEvent(jobID string, out *Outcome) models.TranscriptEvent {
	return models.TranscriptEvent{
		EventType:          models.EventTranscriptCompleted,
		EventID:            uuid.NewString(),
		JobID:              jobID,
		Filename:           out.Filename,
		TranscriptFilename: out.TranscriptFilename,
		TranscriptionModel: out.Result.Resolved.TranscriptionModel,
		DiarizationModel:   out.Result.Resolved.DiarizationModel,
		SegmentCount:       len(out.Transcript.Speakers),
		Speakers:           out.Transcript.SpeakerLabels(),
		Timestamp:          time.Now().UnixMilli(),
	}
}

func (s *Service) failedEvent(jobID, filename string, opts pipeline.Options, err error) models.TranscriptEvent {
	return models.TranscriptEvent{
		EventType:          models.EventTranscriptFailed,
		EventID:            uuid.NewString(),
		JobID:              jobID,
		Filename:           filename,
		TranscriptionModel: opts.TranscriptionModel,
		DiarizationModel:   opts.DiarizationModel,
		ErrorKind:          errorKind(err),
		Error:              err.Error(),
		Timestamp:          time.Now().UnixMilli(),
	}
}

// errorKind names the failure class carried in failed events.
func errorKind(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrInvalidOptions):
		return "invalid_options"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return engine.KindOf(err).String()
	}
}
