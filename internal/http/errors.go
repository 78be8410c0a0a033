package http

import (
	"context"
	"errors"
	"net/http"

	"speech-diarization-service/internal/schema"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/job"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/storage"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, pipeline.ErrInvalidOptions),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, schema.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, storage.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, engine.ErrInvalidAudio):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrModelLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
