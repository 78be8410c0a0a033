package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/service/job"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/service/transcription"
	"speech-diarization-service/internal/storage"
)

// TranscriptService is the set of use cases the HTTP API exposes.
type TranscriptService interface {
	Upload(ctx context.Context, filename string, r io.Reader, opts pipeline.Options) (*transcription.Outcome, error)
	Transcribe(ctx context.Context, filename string, opts pipeline.Options) (*transcription.Outcome, error)
	Transcript(ctx context.Context, key string) (models.Transcript, error)
	Files(ctx context.Context) ([]storage.FileInfo, error)
	Rename(ctx context.Context, oldName, newName string) (string, error)
	Delete(ctx context.Context, filename string) error
	UpdateSpeakerNames(ctx context.Context, key string, names models.SpeakerNameMap) (models.Transcript, error)
	Job(id string) (job.Snapshot, error)
}

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

type handler struct {
	svc            TranscriptService
	maxUploadBytes int64
}

type transcribeResponse struct {
	Message            string `json:"message"`
	Filename           string `json:"filename"`
	TranscriptFilename string `json:"transcript_filename"`
	JobID              string `json:"job_id"`
}

type messageResponse struct {
	Message     string `json:"message"`
	NewFilename string `json:"new_filename,omitempty"`
}

type renameRequest struct {
	OldFilename string `json:"old_filename"`
	NewFilename string `json:"new_filename"`
}

type speakerNamesRequest struct {
	TranscriptFilename string                `json:"transcript_filename"`
	SpeakerNames       models.SpeakerNameMap `json:"speaker_names"`
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("component", "http").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")
	writeError(w, status, err)
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.fail(w, r, badRequestOr(err, "invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, badRequest("no file part"))
		return
	}
	defer file.Close()
	if header.Filename == "" {
		h.fail(w, r, badRequest("no selected file"))
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.svc.Upload(r.Context(), header.Filename, file, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Message:            "File uploaded and transcribed successfully",
		Filename:           out.Filename,
		TranscriptFilename: out.TranscriptFilename,
		JobID:              out.JobID,
	})
}

func (h *handler) retranscribe(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.Transcribe(r.Context(), chi.URLParam(r, "filename"), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Message:            "File retranscribed successfully",
		Filename:           out.Filename,
		TranscriptFilename: out.TranscriptFilename,
		JobID:              out.JobID,
	})
}

func (h *handler) files(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Files(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *handler) transcript(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Transcript(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := parseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.OldFilename == "" || req.NewFilename == "" {
		h.fail(w, r, badRequest("old_filename and new_filename are required"))
		return
	}
	name, err := h.svc.Rename(r.Context(), req.OldFilename, req.NewFilename)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File renamed successfully", NewFilename: name})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "filename")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

func (h *handler) speakerNames(w http.ResponseWriter, r *http.Request) {
	var req speakerNamesRequest
	if err := parseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.TranscriptFilename == "" {
		h.fail(w, r, badRequest("transcript_filename is required"))
		return
	}
	if _, err := h.svc.UpdateSpeakerNames(r.Context(), req.TranscriptFilename, req.SpeakerNames); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Speaker names updated successfully"})
}

func (h *handler) job(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Job(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// parseOptions reads pipeline options from form or query values. Empty
// values are treated as absent.
func parseOptions(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.Options{
		TranscriptionModel: strings.TrimSpace(r.FormValue("model_name")),
		DiarizationModel:   strings.TrimSpace(r.FormValue("diarization_model")),
		Device:             strings.TrimSpace(r.FormValue("device_id")),
	}
	for field, dst := range map[string]**int{
		"num_speakers": &opts.NumSpeakers,
		"min_speakers": &opts.MinSpeakers,
		"max_speakers": &opts.MaxSpeakers,
	} {
		v := strings.TrimSpace(r.FormValue(field))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.Options{}, badRequest("%s must be an integer, got %q", field, v)
		}
		*dst = &n
	}
	return opts, nil
}

// badRequestOr keeps size-limit errors distinguishable from malformed input.
func badRequestOr(err error, format string, args ...any) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return badRequest(format, args...)
}
