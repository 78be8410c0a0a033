package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/config"
	"speech-diarization-service/internal/events"
	"speech-diarization-service/internal/observability/logging"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/diarization"
	diarizemock "speech-diarization-service/internal/service/diarization/mock"
	"speech-diarization-service/internal/service/diarization/pyannote"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/job"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/service/stt"
	"speech-diarization-service/internal/service/stt/google"
	sttmock "speech-diarization-service/internal/service/stt/mock"
	"speech-diarization-service/internal/service/stt/whisper"
	"speech-diarization-service/internal/service/transcription"
	"speech-diarization-service/internal/service/watcher"
	"speech-diarization-service/internal/storage"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Publisher   *events.Publisher
	Cache       *engine.Cache
	Jobs        *job.Registry
	Transcripts *transcription.Service
	Watcher     *watcher.Watcher

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	if cfg.Models.HFToken == "" {
		appLogger.Warn().Msg("HF_TOKEN is not set, gated Hugging Face models will fail to load")
	}

	transcripts, err := storage.NewFS(cfg.Storage.TranscriptDir)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewAudioStore(cfg.Storage.UploadDir, transcripts, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	a.Cache = engine.NewCache(cfg.Models.CacheSize)
	orchestrator := pipeline.New(pipeline.Config{
		TranscriptionModel: cfg.Models.TranscriptionModel,
		DiarizationModel:   cfg.Models.DiarizationModel,
		Device:             cfg.Models.Device,
		Limits:             audio.Limits{MaxBytes: cfg.Storage.MaxUploadBytes, MaxDuration: audio.DefaultLimits().MaxDuration},
	}, newTranscribers(cfg), newDiarizers(cfg), a.Cache)

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
	})

	a.Jobs = job.NewRegistry(job.DefaultCapacity)
	a.Transcripts = transcription.New(store, orchestrator, a.Jobs, a.Publisher)

	if cfg.Watch.Enabled {
		wcfg := watcher.DefaultConfig()
		wcfg.Dir = cfg.Watch.InboxDir
		wcfg.Workers = cfg.Watch.Workers
		wcfg.QueueSize = cfg.Watch.QueueSize
		a.Watcher = watcher.New(wcfg, a.Transcripts)
	}

	appLogger.Info().
		Str("transcriptionModel", cfg.Models.TranscriptionModel).
		Str("diarizationModel", cfg.Models.DiarizationModel).
		Str("device", cfg.Models.Device).
		Int("modelCacheSize", cfg.Models.CacheSize).
		Bool("watch", cfg.Watch.Enabled).
		Msg("Speech diarization service application created")
	return a, nil
}

// newTranscribers routes "google/<model>" to Google STT, "mock" to the
// scripted transcriber and everything else to the whisper worker.
func newTranscribers(cfg *config.Config) *stt.Registry {
	wcfg := whisper.DefaultConfig()
	wcfg.Python = cfg.Models.PythonBin
	wcfg.HFToken = cfg.Models.HFToken
	wcfg.StartTimeout = cfg.Models.LoadTimeout

	gcfg := google.DefaultConfig()
	gcfg.LanguageCode = cfg.STT.LanguageCode
	gcfg.AudioEncoding = cfg.STT.AudioEncoding

	r := stt.NewRegistry("whisper")
	r.Register("whisper", whisper.Factory(wcfg))
	r.Register("google", google.Factory(gcfg))
	r.Register("mock", sttmock.Factory())
	return r
}

func newDiarizers(cfg *config.Config) *diarization.Registry {
	pcfg := pyannote.Config{
		Python:       cfg.Models.PythonBin,
		HFToken:      cfg.Models.HFToken,
		StartTimeout: cfg.Models.LoadTimeout,
	}

	r := diarization.NewRegistry("pyannote")
	r.Register("pyannote", pyannote.Factory(pcfg))
	r.Register("mock", diarizemock.Factory())
	return r
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", "speech-diarization-service").
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}
	a.ready.Store(true)

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech diarization service starting")
	return nil
}

// Ready reports whether the service accepts work.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown stops the watcher, unloads models and closes the publisher.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	shutdownLogger.Info().Msg("Speech diarization service shutting down")

	var errs []error
	if a.Watcher != nil {
		if err := a.Watcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close models: %w", err))
	}
	if err := a.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	return errors.Join(errs...)
}
