package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/testutil"
)

func TestProbe_WAV(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "sample.wav", 16000, 2)

	info, err := Probe(path, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Format != FormatWAV {
		t.Errorf("expected format wav, got %s", info.Format)
	}
	if info.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", info.Channels)
	}
	if d := info.Duration - 2*time.Second; d < -50*time.Millisecond || d > 50*time.Millisecond {
		t.Errorf("expected duration ~2s, got %v", info.Duration)
	}
}

func TestProbe_DurationLimit(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "sample.wav", 8000, 3)

	_, err := Probe(path, Limits{MaxDuration: time.Second})
	if !errors.Is(err, engine.ErrInvalidAudio) {
		t.Errorf("expected invalid audio error, got %v", err)
	}
}

func TestProbe_SizeLimit(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "sample.wav", 8000, 1)

	_, err := Probe(path, Limits{MaxBytes: 100})
	if !errors.Is(err, engine.ErrInvalidAudio) {
		t.Errorf("expected invalid audio error, got %v", err)
	}
}

func TestProbe_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"text", []byte("this is not audio at all")},
		{"truncated riff", []byte("RIFF\x00\x00\x00\x00WAVEfmt ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".wav")
			if err := os.WriteFile(path, tt.content, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Probe(path, DefaultLimits())
			if !errors.Is(err, engine.ErrInvalidAudio) {
				t.Errorf("expected invalid audio error, got %v", err)
			}
		})
	}

	if _, err := Probe(filepath.Join(dir, "missing.wav"), DefaultLimits()); !errors.Is(err, engine.ErrInvalidAudio) {
		t.Errorf("expected invalid audio for missing file, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected string
	}{
		{"flac", []byte("fLaC\x00\x00"), FormatFLAC},
		{"ogg", []byte("OggS\x00\x02"), FormatOGG},
		{"mp3 id3", []byte("ID3\x04\x00"), FormatMP3},
		{"mp3 frame", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), FormatMP4},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, FormatWebM},
		{"unknown", []byte("hello"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniff(tt.header); got != tt.expected {
				t.Errorf("sniff() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"call.wav":   true,
		"CALL.MP3":   true,
		"note.m4a":   true,
		"readme.txt": false,
		"noext":      false,
	}
	for name, expected := range tests {
		if got := IsSupported(name); got != expected {
			t.Errorf("IsSupported(%q) = %v, want %v", name, got, expected)
		}
	}
}
