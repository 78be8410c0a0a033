package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/observability/metrics"
)

// FileInfo describes one stored audio file.
type FileInfo struct {
	Filename      string `json:"filename"`
	HasTranscript bool   `json:"has_transcript"`
}

// AudioStore keeps uploaded audio files and owns the transcripts derived
// from them, so renames and deletes move both together.
type AudioStore struct {
	audio       *FS
	transcripts *FS
	maxBytes    int64
	metrics     *metrics.Metrics
}

// NewAudioStore creates both directories if needed. maxBytes <= 0 disables
// the upload size limit.
func NewAudioStore(audioDir string, transcripts *FS, maxBytes int64) (*AudioStore, error) {
	audio, err := NewFS(audioDir)
	if err != nil {
		return nil, err
	}
	return &AudioStore{
		audio:       audio,
		transcripts: transcripts,
		maxBytes:    maxBytes,
		metrics:     metrics.DefaultMetrics,
	}, nil
}

// Transcripts returns the transcript store.
func (s *AudioStore) Transcripts() *FS { return s.transcripts }

// Save sanitizes filename and writes r under it, replacing any existing
// file of the same name. It returns the stored filename.
func (s *AudioStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := SecureFilename(filename)
	if err != nil {
		return "", fmt.Errorf("%q: %w", filename, err)
	}

	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload %s: %w", name, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%s exceeds %d bytes: %w", name, s.maxBytes, ErrTooLarge)
	}

	if err := s.audio.Put(ctx, name, data); err != nil {
		return "", err
	}
	s.metrics.RecordAudioStored(int64(len(data)))

	log.Info().
		Str("component", "storage").
		Str("filename", name).
		Int("bytes", len(data)).
		Msg("Audio stored")
	return name, nil
}

// Import moves a file already on disk into the store under its sanitized
// base name without copying. It refuses to replace an existing file.
func (s *AudioStore) Import(ctx context.Context, srcPath, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := SecureFilename(filename)
	if err != nil {
		return "", fmt.Errorf("%q: %w", filename, err)
	}
	dst, _ := s.audio.Path(name)

	if err := os.Link(srcPath, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s: %w", name, ErrExists)
		}
		// Inbox on another filesystem.
		if err := copyExclusive(srcPath, dst); err != nil {
			return "", fmt.Errorf("import %s: %w", name, err)
		}
	}
	if err := os.Remove(srcPath); err != nil {
		log.Warn().Err(err).Str("path", srcPath).Msg("Failed to remove imported source file")
	}
	if st, err := os.Stat(dst); err == nil {
		s.metrics.RecordAudioStored(st.Size())
	}
	return name, nil
}

func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return ErrExists
	}
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// Path returns the on-disk path of a stored audio file.
func (s *AudioStore) Path(ctx context.Context, filename string) (string, error) {
	ok, err := s.audio.Exists(ctx, filename)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	return s.audio.Path(filename)
}

// List returns stored audio files in lexical order.
func (s *AudioStore) List(ctx context.Context) ([]FileInfo, error) {
	names, err := s.audio.Keys(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(names))
	for _, name := range names {
		has, err := s.transcripts.Exists(ctx, TranscriptKey(name))
		if err != nil {
			return nil, err
		}
		files = append(files, FileInfo{Filename: name, HasTranscript: has})
	}
	return files, nil
}

// Rename renames an audio file and its transcript. The new name is
// sanitized and returned. Neither file is overwritten.
func (s *AudioStore) Rename(ctx context.Context, oldName, newName string) (string, error) {
	name, err := SecureFilename(newName)
	if err != nil {
		return "", fmt.Errorf("%q: %w", newName, err)
	}
	if name == oldName {
		return name, nil
	}

	oldKey, newKey := TranscriptKey(oldName), TranscriptKey(name)
	hasTranscript, err := s.transcripts.Exists(ctx, oldKey)
	if err != nil {
		return "", err
	}
	if hasTranscript && oldKey != newKey {
		if taken, err := s.transcripts.Exists(ctx, newKey); err != nil {
			return "", err
		} else if taken {
			return "", fmt.Errorf("transcript %s: %w", newKey, ErrExists)
		}
	}

	if err := s.audio.Rename(ctx, oldName, name); err != nil {
		return "", err
	}
	if hasTranscript && oldKey != newKey {
		if err := s.transcripts.Rename(ctx, oldKey, newKey); err != nil {
			// Put the audio back so the pair stays consistent.
			if rbErr := s.audio.Rename(ctx, name, oldName); rbErr != nil {
				log.Error().Err(rbErr).Str("filename", name).Msg("Failed to roll back audio rename")
			}
			return "", err
		}
	}

	log.Info().
		Str("component", "storage").
		Str("from", oldName).
		Str("to", name).
		Bool("transcript", hasTranscript).
		Msg("Audio renamed")
	return name, nil
}

// Delete removes an audio file and its transcript, if any.
func (s *AudioStore) Delete(ctx context.Context, filename string) error {
	if err := s.audio.Delete(ctx, filename); err != nil {
		return err
	}
	if err := s.transcripts.Delete(ctx, TranscriptKey(filename)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	log.Info().Str("component", "storage").Str("filename", filename).Msg("Audio deleted")
	return nil
}
