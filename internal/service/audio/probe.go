// Package audio inspects uploaded audio before it reaches the inference engines.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/youpy/go-wav"

	"speech-diarization-service/internal/service/engine"
)

// Container formats recognized by Probe.
const (
	FormatWAV  = "wav"
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
	FormatOGG  = "ogg"
	FormatMP4  = "mp4"
	FormatWebM = "webm"
)

// SupportedExtensions lists the file extensions accepted for upload and inbox pickup.
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".ogg", ".opus", ".m4a", ".mp4", ".webm"}

// Limits bounds the audio accepted for transcription. Zero disables a limit.
type Limits struct {
	MaxBytes    int64
	MaxDuration time.Duration
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:    1 << 30,       // 1GB
		MaxDuration: 4 * time.Hour, // long meetings
	}
}

// Info describes a probed audio file. Duration, SampleRate and Channels are
// only known for WAV input.
type Info struct {
	Path          string
	Format        string
	Size          int64
	Duration      time.Duration
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// IsSupported reports whether filename has an accepted audio extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Probe opens path and verifies that it holds decodable audio within limits.
// All failures are classified as engine.KindInvalidAudio.
func Probe(path string, limits Limits) (*Info, error) {
	const op = "probe audio"

	f, err := os.Open(path)
	if err != nil {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "stat: %w", err)
	}
	if st.IsDir() || st.Size() == 0 {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "%s is empty", filepath.Base(path))
	}
	if limits.MaxBytes > 0 && st.Size() > limits.MaxBytes {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "file is %d bytes, limit is %d", st.Size(), limits.MaxBytes)
	}

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "read header: %w", err)
	}
	format := sniff(header[:n])
	if format == "" {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "%s is not a recognized audio container", filepath.Base(path))
	}

	info := &Info{Path: path, Format: format, Size: st.Size()}
	if format == FormatWAV {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, engine.Errorf(engine.KindInvalidAudio, op, "seek: %w", err)
		}
		if err := probeWAV(f, info); err != nil {
			return nil, engine.Errorf(engine.KindInvalidAudio, op, "%w", err)
		}
	}

	if limits.MaxDuration > 0 && info.Duration > limits.MaxDuration {
		return nil, engine.Errorf(engine.KindInvalidAudio, op, "duration %s exceeds limit %s", info.Duration, limits.MaxDuration)
	}
	return info, nil
}

func probeWAV(f *os.File, info *Info) error {
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return fmt.Errorf("decode wav header: %w", err)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return fmt.Errorf("wav header has %d channels at %d Hz", format.NumChannels, format.SampleRate)
	}
	duration, err := r.Duration()
	if err != nil {
		return fmt.Errorf("wav duration: %w", err)
	}

	info.SampleRate = int(format.SampleRate)
	info.Channels = int(format.NumChannels)
	info.BitsPerSample = int(format.BitsPerSample)
	info.Duration = duration
	return nil
}

// sniff identifies the container from its leading bytes.
func sniff(h []byte) string {
	switch {
	case len(h) >= 12 && bytes.Equal(h[0:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(h, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(h, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(h, []byte("ID3")):
		return FormatMP3
	case len(h) >= 2 && h[0] == 0xFF && h[1]&0xE0 == 0xE0:
		return FormatMP3
	case len(h) >= 8 && bytes.Equal(h[4:8], []byte("ftyp")):
		return FormatMP4
	case bytes.HasPrefix(h, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	}
	return ""
}
