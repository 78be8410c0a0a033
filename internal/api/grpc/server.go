// Package grpcapi exposes the transcript use cases over gRPC.
package grpcapi

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/schema"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/service/transcription"
	"speech-diarization-service/internal/storage"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "transcripts.v1.TranscriptService"

// TranscriptService is the subset of use cases served over gRPC.
type TranscriptService interface {
	Upload(ctx context.Context, filename string, r io.Reader, opts pipeline.Options) (*transcription.Outcome, error)
	Transcribe(ctx context.Context, filename string, opts pipeline.Options) (*transcription.Outcome, error)
	Transcript(ctx context.Context, key string) (models.Transcript, error)
	Files(ctx context.Context) ([]storage.FileInfo, error)
	UpdateSpeakerNames(ctx context.Context, key string, names models.SpeakerNameMap) (models.Transcript, error)
}

// Options mirrors the HTTP form fields.
type Options struct {
	ModelName        string `json:"model_name,omitempty"`
	DiarizationModel string `json:"diarization_model,omitempty"`
	NumSpeakers      *int   `json:"num_speakers,omitempty"`
	MinSpeakers      *int   `json:"min_speakers,omitempty"`
	MaxSpeakers      *int   `json:"max_speakers,omitempty"`
	DeviceID         string `json:"device_id,omitempty"`
}

func (o Options) pipeline() pipeline.Options {
	return pipeline.Options{
		TranscriptionModel: o.ModelName,
		DiarizationModel:   o.DiarizationModel,
		NumSpeakers:        o.NumSpeakers,
		MinSpeakers:        o.MinSpeakers,
		MaxSpeakers:        o.MaxSpeakers,
		Device:             o.DeviceID,
	}
}

// TranscribeRequest transcribes a stored file, or stores and transcribes
// Audio when it is set.
type TranscribeRequest struct {
	Filename string  `json:"filename"`
	Audio    []byte  `json:"audio,omitempty"`
	Options  Options `json:"options"`
}

type TranscribeResponse struct {
	JobID              string            `json:"job_id"`
	Filename           string            `json:"filename"`
	TranscriptFilename string            `json:"transcript_filename"`
	Transcript         models.Transcript `json:"transcript"`
}

type GetTranscriptRequest struct {
	TranscriptFilename string `json:"transcript_filename"`
}

type UpdateSpeakerNamesRequest struct {
	TranscriptFilename string                `json:"transcript_filename"`
	SpeakerNames       models.SpeakerNameMap `json:"speaker_names"`
}

type ListFilesRequest struct{}

type ListFilesResponse struct {
	Files []storage.FileInfo `json:"files"`
}

// Server implements the transcript gRPC service.
type Server struct {
	svc TranscriptService
}

// Register attaches the transcript service to g.
func Register(g *grpc.Server, svc TranscriptService) {
	g.RegisterService(&serviceDesc, &Server{svc: svc})
}

func (s *Server) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	if req.Filename == "" {
		return nil, status.Error(codes.InvalidArgument, "filename is required")
	}

	var (
		out *transcription.Outcome
		err error
	)
	if len(req.Audio) > 0 {
		out, err = s.svc.Upload(ctx, req.Filename, bytes.NewReader(req.Audio), req.Options.pipeline())
	} else {
		out, err = s.svc.Transcribe(ctx, req.Filename, req.Options.pipeline())
	}
	if err != nil {
		return nil, toStatus("Transcribe", err)
	}
	return &TranscribeResponse{
		JobID:              out.JobID,
		Filename:           out.Filename,
		TranscriptFilename: out.TranscriptFilename,
		Transcript:         out.Transcript,
	}, nil
}

func (s *Server) GetTranscript(ctx context.Context, req *GetTranscriptRequest) (*models.Transcript, error) {
	if req.TranscriptFilename == "" {
		return nil, status.Error(codes.InvalidArgument, "transcript_filename is required")
	}
	t, err := s.svc.Transcript(ctx, req.TranscriptFilename)
	if err != nil {
		return nil, toStatus("GetTranscript", err)
	}
	return &t, nil
}

func (s *Server) UpdateSpeakerNames(ctx context.Context, req *UpdateSpeakerNamesRequest) (*models.Transcript, error) {
	if req.TranscriptFilename == "" {
		return nil, status.Error(codes.InvalidArgument, "transcript_filename is required")
	}
	t, err := s.svc.UpdateSpeakerNames(ctx, req.TranscriptFilename, req.SpeakerNames)
	if err != nil {
		return nil, toStatus("UpdateSpeakerNames", err)
	}
	return &t, nil
}

func (s *Server) ListFiles(ctx context.Context, _ *ListFilesRequest) (*ListFilesResponse, error) {
	files, err := s.svc.Files(ctx)
	if err != nil {
		return nil, toStatus("ListFiles", err)
	}
	return &ListFilesResponse{Files: files}, nil
}

// toStatus maps service errors to gRPC status codes.
func toStatus(method string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, pipeline.ErrInvalidOptions),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, schema.ErrInvalid),
		errors.Is(err, engine.ErrInvalidAudio):
		code = codes.InvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, storage.ErrExists):
		code = codes.AlreadyExists
	case errors.Is(err, storage.ErrTooLarge):
		code = codes.ResourceExhausted
	case errors.Is(err, engine.ErrModelLoad):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}

	if code == codes.Internal {
		log.Error().Err(err).Str("component", "grpc").Str("method", method).Msg("Request failed")
	}
	return status.Error(code, err.Error())
}
