package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Service defaults
	if cfg.Service.HTTPPort != "5000" {
		t.Errorf("expected default HTTP port '5000', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default gRPC port '50051', got %s", cfg.Service.GRPCPort)
	}

	// Storage defaults
	if cfg.Storage.UploadDir != "uploads" || cfg.Storage.TranscriptDir != "transcripts" {
		t.Errorf("unexpected storage dirs: %+v", cfg.Storage)
	}
	if cfg.Storage.MaxUploadBytes != 1<<30 {
		t.Errorf("expected default max upload 1GiB, got %d", cfg.Storage.MaxUploadBytes)
	}

	// Model defaults
	if cfg.Models.TranscriptionModel != "openai/whisper-large-v3" {
		t.Errorf("expected default transcription model, got %s", cfg.Models.TranscriptionModel)
	}
	if cfg.Models.DiarizationModel != "pyannote/speaker-diarization-3.1" {
		t.Errorf("expected default diarization model, got %s", cfg.Models.DiarizationModel)
	}
	if cfg.Models.Device != "0" {
		t.Errorf("expected default device '0', got %s", cfg.Models.Device)
	}
	if cfg.Models.CacheSize != 4 {
		t.Errorf("expected default cache size 4, got %d", cfg.Models.CacheSize)
	}
	if cfg.Models.LoadTimeout != 10*time.Minute {
		t.Errorf("expected default load timeout 10m, got %v", cfg.Models.LoadTimeout)
	}

	// Kafka and watcher are off by default
	if cfg.Kafka.Enabled || cfg.Watch.Enabled {
		t.Error("expected Kafka and watcher disabled by default")
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsPort != "9090" {
		t.Errorf("expected default metrics port '9090', got %s", cfg.Observability.MetricsPort)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("DEVICE", "cpu")
	t.Setenv("HF_TOKEN", "hf_test")
	t.Setenv("MODEL_CACHE_SIZE", "2")
	t.Setenv("MODEL_LOAD_TIMEOUT", "90s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("WATCH_ENABLED", "true")
	t.Setenv("WATCH_WORKERS", "3")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected HTTP port 8080, got %s", cfg.Service.HTTPPort)
	}
	if cfg.Models.Device != "cpu" || cfg.Models.HFToken != "hf_test" {
		t.Errorf("unexpected model config: %+v", cfg.Models)
	}
	if cfg.Models.CacheSize != 2 || cfg.Models.LoadTimeout != 90*time.Second {
		t.Errorf("unexpected cache config: %d, %v", cfg.Models.CacheSize, cfg.Models.LoadTimeout)
	}
	if cfg.Storage.MaxUploadBytes != 1024 {
		t.Errorf("expected max upload 1024, got %d", cfg.Storage.MaxUploadBytes)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two brokers, got %v", cfg.Kafka.Brokers)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Workers != 3 {
		t.Errorf("unexpected watch config: %+v", cfg.Watch)
	}
	if cfg.Observability.LogFormat != "console" {
		t.Errorf("expected console log format, got %s", cfg.Observability.LogFormat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"zero cache", map[string]string{"MODEL_CACHE_SIZE": "0"}, "MODEL_CACHE_SIZE"},
		{"zero workers", map[string]string{"WATCH_WORKERS": "0"}, "WATCH_WORKERS"},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true"}, "KAFKA_BROKERS"},
		{"bad duration", map[string]string{"MODEL_LOAD_TIMEOUT": "soon"}, "environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected error mentioning %s, got %v", tt.msg, err)
			}
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("MODEL_CACHE_SIZE", "-1")
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustLoad()
}

func TestUsage(t *testing.T) {
	if !strings.Contains(Usage(), "HF_TOKEN") {
		t.Error("expected usage to list HF_TOKEN")
	}
}
