// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration.
type Config struct {
	Service       Service
	Storage       Storage
	Models        Models
	STT           STT
	Kafka         Kafka
	Watch         Watch
	Observability Observability
}

// Service holds listener and identity settings.
type Service struct {
	Principal string `env:"SERVICE_PRINCIPAL" env-default:"svc-speech-diarization"`
	HTTPPort  string `env:"HTTP_PORT" env-default:"5000"`
	GRPCPort  string `env:"GRPC_PORT" env-default:"50051"`
}

// Storage holds audio and transcript locations.
type Storage struct {
	UploadDir      string `env:"UPLOAD_DIR" env-default:"uploads"`
	TranscriptDir  string `env:"TRANSCRIPT_DIR" env-default:"transcripts"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-default:"1073741824"`
}

// Models holds engine defaults and the model runtime.
type Models struct {
	TranscriptionModel string        `env:"TRANSCRIPTION_MODEL" env-default:"openai/whisper-large-v3"`
	DiarizationModel   string        `env:"DIARIZATION_MODEL" env-default:"pyannote/speaker-diarization-3.1"`
	Device             string        `env:"DEVICE" env-default:"0"`
	HFToken            string        `env:"HF_TOKEN"`
	PythonBin          string        `env:"PYTHON_BIN" env-default:"python3"`
	CacheSize          int           `env:"MODEL_CACHE_SIZE" env-default:"4"`
	LoadTimeout        time.Duration `env:"MODEL_LOAD_TIMEOUT" env-default:"10m"`
}

// STT holds Google Speech-to-Text settings.
type STT struct {
	LanguageCode  string `env:"STT_LANGUAGE_CODE" env-default:"en-US"`
	AudioEncoding string `env:"STT_AUDIO_ENCODING" env-default:"LINEAR16"`
}

// Kafka holds event publishing settings.
type Kafka struct {
	Enabled        bool     `env:"KAFKA_ENABLED" env-default:"false"`
	Brokers        []string `env:"KAFKA_BROKERS" env-separator:","`
	TopicCompleted string   `env:"KAFKA_TOPIC_COMPLETED" env-default:"transcripts.completed"`
	TopicFailed    string   `env:"KAFKA_TOPIC_FAILED" env-default:"transcripts.failed"`
	Principal      string   `env:"KAFKA_PRINCIPAL" env-default:"svc-speech-diarization"`
}

// Watch holds inbox watcher settings.
type Watch struct {
	Enabled   bool   `env:"WATCH_ENABLED" env-default:"false"`
	InboxDir  string `env:"INBOX_DIR" env-default:"inbox"`
	Workers   int    `env:"WATCH_WORKERS" env-default:"1"`
	QueueSize int    `env:"WATCH_QUEUE_SIZE" env-default:"100"`
}

// Observability holds logging and metrics settings.
type Observability struct {
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"json"`
	MetricsPort string `env:"METRICS_PORT" env-default:"9090"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) validate() error {
	switch {
	case c.Models.CacheSize < 1:
		return fmt.Errorf("MODEL_CACHE_SIZE must be at least 1, got %d", c.Models.CacheSize)
	case c.Watch.Workers < 1:
		return fmt.Errorf("WATCH_WORKERS must be at least 1, got %d", c.Watch.Workers)
	case c.Watch.QueueSize < 1:
		return fmt.Errorf("WATCH_QUEUE_SIZE must be at least 1, got %d", c.Watch.QueueSize)
	case c.Kafka.Enabled && len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

// Usage describes every recognized environment variable.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
