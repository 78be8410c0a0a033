// Package pyannote serves pyannote.audio diarization pipelines from a
// long-lived python worker.
package pyannote

import (
	"context"
	_ "embed"
	"time"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/diarization"
	"speech-diarization-service/internal/service/engine"
)

//go:embed assets/diarize_worker.py
var workerScript []byte

// Config holds pyannote worker configuration.
type Config struct {
	Python       string
	HFToken      string // required; pyannote pipelines are gated
	StartTimeout time.Duration
}

// Diarizer implements diarization.Diarizer on top of a model worker.
type Diarizer struct {
	model  string
	worker *engine.Worker
}

type request struct {
	Audio       string `json:"audio"`
	NumSpeakers int    `json:"num_speakers,omitempty"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

type response struct {
	Turns []models.SpeakerTurn `json:"turns"`
}

// Load starts a worker holding the pipeline on device.
func Load(ctx context.Context, cfg Config, model string, device engine.Device) (*Diarizer, error) {
	if cfg.HFToken == "" {
		return nil, engine.Errorf(engine.KindModelLoad, "load pyannote", "HF_TOKEN is required for %s", model)
	}

	w, err := engine.StartWorker(ctx, engine.WorkerConfig{
		Name:         "pyannote",
		Python:       cfg.Python,
		Script:       workerScript,
		Args:         []string{"--model", model, "--device", device.String()},
		Env:          []string{"HF_TOKEN=" + cfg.HFToken},
		StartTimeout: cfg.StartTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Diarizer{model: model, worker: w}, nil
}

// Factory returns a diarization.Factory for pyannote pipelines.
func Factory(cfg Config) diarization.Factory {
	return func(ctx context.Context, model string, device engine.Device) (diarization.Diarizer, error) {
		return Load(ctx, cfg, model, device)
	}
}

func newRequest(audioPath string, c diarization.Constraint) request {
	req := request{Audio: audioPath}
	if c.Exact > 0 {
		req.NumSpeakers = c.Exact
		return req
	}
	req.MinSpeakers = c.Min
	req.MaxSpeakers = c.Max
	return req
}

// Diarize runs the pipeline over the file.
func (d *Diarizer) Diarize(ctx context.Context, audioPath string, c diarization.Constraint) ([]models.SpeakerTurn, error) {
	var resp response
	if err := d.worker.Call(ctx, "pyannote diarize", newRequest(audioPath, c), &resp); err != nil {
		return nil, err
	}
	return diarization.Normalize(resp.Turns), nil
}

// Dead reports whether the worker died and the model must be reloaded.
func (d *Diarizer) Dead() bool {
	return d.worker.Dead()
}

// Close stops the worker.
func (d *Diarizer) Close() error {
	return d.worker.Close()
}
