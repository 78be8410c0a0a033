// Package whisper serves Hugging Face speech recognition models (Whisper and
// compatible checkpoints) from a long-lived python worker.
package whisper

import (
	"context"
	_ "embed"
	"strconv"
	"time"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/stt"
)

//go:embed assets/transcribe_worker.py
var workerScript []byte

// Config holds whisper worker configuration.
type Config struct {
	Python       string
	HFToken      string
	Language     string // empty lets the model detect it
	ChunkLength  int    // seconds per chunk for long-form audio
	BatchSize    int
	StartTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Python:       "python3",
		ChunkLength:  30,
		BatchSize:    8,
		StartTimeout: 10 * time.Minute,
	}
}

// Transcriber implements stt.Transcriber on top of a model worker.
type Transcriber struct {
	model  string
	worker *engine.Worker
}

type request struct {
	Audio string `json:"audio"`
}

type response struct {
	Segments []models.TranscriptSegment `json:"segments"`
	Duration float64                    `json:"duration"` // seconds of decoded audio
}

// segments repairs chunks the pipeline returned without an end timestamp.
func (r response) segments() []models.TranscriptSegment {
	return stt.CloseOpenEnds(stt.Normalize(r.Segments), r.Duration)
}

// Load starts a worker holding model on device.
func Load(ctx context.Context, cfg Config, model string, device engine.Device) (*Transcriber, error) {
	w, err := engine.StartWorker(ctx, engine.WorkerConfig{
		Name:         "whisper",
		Python:       cfg.Python,
		Script:       workerScript,
		Args:         workerArgs(cfg, model, device),
		Env:          workerEnv(cfg),
		StartTimeout: cfg.StartTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Transcriber{model: model, worker: w}, nil
}

// Factory returns an stt.Factory for Hugging Face ASR models.
func Factory(cfg Config) stt.Factory {
	return func(ctx context.Context, model string, device engine.Device) (stt.Transcriber, error) {
		return Load(ctx, cfg, model, device)
	}
}

func workerArgs(cfg Config, model string, device engine.Device) []string {
	args := []string{
		"--model", model,
		"--device", device.String(),
		"--chunk-length", strconv.Itoa(cfg.ChunkLength),
		"--batch-size", strconv.Itoa(cfg.BatchSize),
	}
	if cfg.Language != "" {
		args = append(args, "--language", cfg.Language)
	}
	return args
}

func workerEnv(cfg Config) []string {
	if cfg.HFToken == "" {
		return nil
	}
	return []string{"HF_TOKEN=" + cfg.HFToken}
}

// Transcribe runs the model over the file.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	var resp response
	if err := t.worker.Call(ctx, "whisper transcribe", request{Audio: audioPath}, &resp); err != nil {
		return nil, err
	}
	return resp.segments(), nil
}

// Dead reports whether the worker died and the model must be reloaded.
func (t *Transcriber) Dead() bool {
	return t.worker.Dead()
}

// Close stops the worker.
func (t *Transcriber) Close() error {
	return t.worker.Close()
}
