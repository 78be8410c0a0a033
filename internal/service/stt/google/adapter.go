// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string // LINEAR16, MULAW, FLAC, etc.; used when the container does not say
	Punctuation   bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
		Punctuation:   true,
	}
}

// Adapter implements stt.Transcriber using batch (long-running) recognition.
// Requires GOOGLE_APPLICATION_CREDENTIALS or another ADC source.
type Adapter struct {
	client *speech.Client
	model  string
	config Config
}

// New creates a new Google transcriber for the given recognition model
// (e.g. "latest_long"); an empty model uses the service default.
func New(ctx context.Context, model string, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, engine.Errorf(engine.KindModelLoad, "google speech client", "%w", err)
	}
	return &Adapter{client: c, model: model, config: cfg}, nil
}

// Factory returns an stt.Factory for Google models. The device is ignored.
func Factory(cfg Config) stt.Factory {
	return func(ctx context.Context, model string, device engine.Device) (stt.Transcriber, error) {
		return New(ctx, model, cfg)
	}
}

// Transcribe sends the file inline and waits for the recognition operation.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	const op = "google transcribe"

	info, err := audio.Probe(audioPath, audio.Limits{})
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "read audio: %w", err)
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: a.recognitionConfig(info),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	}

	operation, err := a.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, engine.Errorf(engine.KindInternal, op, "start recognition: %w", err)
	}
	resp, err := operation.Wait(ctx)
	if err != nil {
		return nil, engine.Errorf(engine.KindInternal, op, "recognition: %w", err)
	}

	segments := segmentsFromResults(resp.GetResults())
	log.Debug().
		Str("model", a.model).
		Int("results", len(resp.GetResults())).
		Int("segments", len(segments)).
		Msg("Google recognition completed")
	return stt.Normalize(segments), nil
}

func (a *Adapter) recognitionConfig(info *audio.Info) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               a.config.LanguageCode,
		Model:                      a.model,
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: a.config.Punctuation,
	}

	switch info.Format {
	case audio.FormatWAV:
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = int32(info.SampleRate)
		cfg.AudioChannelCount = int32(info.Channels)
	case audio.FormatFLAC:
		// Sample rate is read from the FLAC header.
		cfg.Encoding = speechpb.RecognitionConfig_FLAC
	default:
		cfg.Encoding = parseAudioEncoding(a.config.AudioEncoding)
		cfg.SampleRateHertz = int32(a.config.SampleRateHz)
	}
	return cfg
}

// segmentsFromResults turns each recognition result into one segment spanning
// its words. Results without word offsets start where the previous one ended.
func segmentsFromResults(results []*speechpb.SpeechRecognitionResult) []models.TranscriptSegment {
	var segments []models.TranscriptSegment
	prevEnd := 0.0

	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]

		start, end := prevEnd, prevEnd
		if words := alt.GetWords(); len(words) > 0 {
			start = words[0].GetStartTime().AsDuration().Seconds()
			end = words[len(words)-1].GetEndTime().AsDuration().Seconds()
		} else if r.GetResultEndTime() != nil {
			end = r.GetResultEndTime().AsDuration().Seconds()
		}
		prevEnd = end

		segments = append(segments, models.TranscriptSegment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(alt.GetTranscript()),
		})
	}
	return segments
}

// parseAudioEncoding maps an encoding name to the API enum, defaulting to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// Close releases the API client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
