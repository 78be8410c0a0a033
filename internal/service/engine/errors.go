// Package engine provides the runtime shared by the transcription and
// diarization engines: failure classification, device selection, a bounded
// model cache and the python model worker.
package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindInternal is an unexpected failure inside an engine.
	KindInternal Kind = iota
	// KindInvalidAudio means the input could not be read or decoded.
	KindInvalidAudio
	// KindModelLoad means the model identifier, device or credential is unusable.
	KindModelLoad
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindInvalidAudio:
		return "invalid_audio"
	case KindModelLoad:
		return "model_load"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind maps a kind name reported by a model worker back to a Kind.
func ParseKind(s string) Kind {
	switch s {
	case "invalid_audio":
		return KindInvalidAudio
	case "model_load":
		return KindModelLoad
	default:
		return KindInternal
	}
}

// Sentinel errors matched with errors.Is against an *Error of the same kind.
var (
	ErrInvalidAudio = errors.New("invalid audio")
	ErrModelLoad    = errors.New("model load failed")
	ErrInternal     = errors.New("engine failure")

	// ErrConstraintUnsatisfiable marks a diarization result that does not honor
	// the requested speaker bounds. It is reported, never returned as a failure.
	ErrConstraintUnsatisfiable = errors.New("speaker constraint unsatisfiable")
)

// Error is a classified engine failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidAudio:
		return e.Kind == KindInvalidAudio
	case ErrModelLoad:
		return e.Kind == KindModelLoad
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
