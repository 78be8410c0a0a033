// Package storage persists uploaded audio files and their transcripts on the
// local filesystem.
package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("already exists")
	ErrInvalidName = errors.New("invalid name")
	ErrTooLarge    = errors.New("file too large")
)

// TranscriptExt is the extension of stored transcripts.
const TranscriptExt = ".json"

// tempPrefix marks in-flight writes; listings and watchers skip these.
const tempPrefix = ".tmp-"

// SecureFilename reduces name to a safe, ASCII-only base name. Path
// separators become underscores, whitespace runs collapse to a single
// underscore and characters outside [A-Za-z0-9._-] are dropped. Leading and
// trailing dots and underscores are trimmed. An empty result is
// ErrInvalidName.
func SecureFilename(name string) (string, error) {
	name = norm.NFKD.String(name)

	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			space = true
			continue
		case r > unicode.MaxASCII:
			continue
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte('_')
		}
		space = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "", ErrInvalidName
	}
	return out, nil
}

// TranscriptKey returns the transcript key for an audio filename.
func TranscriptKey(audioFilename string) string {
	return strings.TrimSuffix(audioFilename, filepath.Ext(audioFilename)) + TranscriptExt
}

// validKey rejects keys that could escape the store directory.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, tempPrefix) {
		return ErrInvalidName
	}
	return nil
}
