package whisper

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/align"
	"speech-diarization-service/internal/service/engine"
)

func TestWorkerArgs(t *testing.T) {
	cfg := DefaultConfig()
	got := workerArgs(cfg, "openai/whisper-large-v3", engine.Device("cuda:0"))
	want := []string{
		"--model", "openai/whisper-large-v3",
		"--device", "cuda:0",
		"--chunk-length", "30",
		"--batch-size", "8",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	cfg.Language = "de"
	got = workerArgs(cfg, "m", engine.DeviceCPU)
	if got[len(got)-2] != "--language" || got[len(got)-1] != "de" {
		t.Errorf("expected language flag, got %v", got)
	}
}

func TestWorkerEnv(t *testing.T) {
	if env := workerEnv(Config{}); env != nil {
		t.Errorf("expected no env without token, got %v", env)
	}
	env := workerEnv(Config{HFToken: "hf_abc"})
	if len(env) != 1 || env[0] != "HF_TOKEN=hf_abc" {
		t.Errorf("unexpected env: %v", env)
	}
}

func TestEmbeddedScript(t *testing.T) {
	if !strings.Contains(string(workerScript), "automatic-speech-recognition") {
		t.Error("expected embedded worker script to build an ASR pipeline")
	}
}

func TestResponse_ClosesMissingEnds(t *testing.T) {
	turns := []models.SpeakerTurn{
		{Start: 0, End: 4.2, Speaker: "SPEAKER_00"},
		{Start: 4.2, End: 6, Speaker: "SPEAKER_01"},
	}

	tests := []struct {
		name     string
		body     string
		spans    [][2]float64
		speakers []string
	}{
		{
			name:     "final chunk without end",
			body:     `{"segments":[{"start":0,"end":4.2,"text":"hi"},{"start":4.2,"end":null,"text":"bye"}],"duration":6}`,
			spans:    [][2]float64{{0, 4.2}, {4.2, 6}},
			speakers: []string{"SPEAKER_00", "SPEAKER_01"},
		},
		{
			name:     "untimed text spans the audio",
			body:     `{"segments":[{"start":0,"end":null,"text":"hello there"}],"duration":6}`,
			spans:    [][2]float64{{0, 6}},
			speakers: []string{"SPEAKER_00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp response
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			segs := resp.segments()
			if len(segs) != len(tt.spans) {
				t.Fatalf("expected %d segments, got %d", len(tt.spans), len(segs))
			}
			for i, span := range tt.spans {
				if segs[i].Start != span[0] || segs[i].End != span[1] {
					t.Errorf("segment %d: expected [%v,%v], got [%v,%v]", i, span[0], span[1], segs[i].Start, segs[i].End)
				}
			}
			for i, s := range align.Merge(segs, turns) {
				if s.Speaker != tt.speakers[i] {
					t.Errorf("segment %d: expected %s, got %s", i, tt.speakers[i], s.Speaker)
				}
			}
		})
	}
}
