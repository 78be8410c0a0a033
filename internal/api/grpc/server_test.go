package grpcapi

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/schema"
	"speech-diarization-service/internal/service/engine"
	"speech-diarization-service/internal/service/pipeline"
	"speech-diarization-service/internal/service/transcription"
	"speech-diarization-service/internal/storage"
)

type fakeService struct {
	err        error
	uploaded   []byte
	opts       pipeline.Options
	names      models.SpeakerNameMap
	transcript models.Transcript
}

func (f *fakeService) Upload(ctx context.Context, filename string, r io.Reader, opts pipeline.Options) (*transcription.Outcome, error) {
	data, _ := io.ReadAll(r)
	f.uploaded = data
	return f.Transcribe(ctx, filename, opts)
}

func (f *fakeService) Transcribe(ctx context.Context, filename string, opts pipeline.Options) (*transcription.Outcome, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &transcription.Outcome{
		JobID:              "job-1",
		Filename:           filename,
		TranscriptFilename: storage.TranscriptKey(filename),
		Transcript:         f.transcript,
	}, nil
}

func (f *fakeService) Transcript(ctx context.Context, key string) (models.Transcript, error) {
	return f.transcript, f.err
}

func (f *fakeService) Files(ctx context.Context) ([]storage.FileInfo, error) {
	return []storage.FileInfo{{Filename: "call.wav", HasTranscript: true}}, f.err
}

func (f *fakeService) UpdateSpeakerNames(ctx context.Context, key string, names models.SpeakerNameMap) (models.Transcript, error) {
	f.names = names
	if f.err != nil {
		return models.Transcript{}, f.err
	}
	return f.transcript.WithSpeakerNames(names), nil
}

func dial(t *testing.T, svc TranscriptService) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	Register(server, svc)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func sampleTranscript() models.Transcript {
	return models.Transcript{Speakers: []models.SpeakerSegment{
		{Start: 0, End: 1, Text: "hello", Speaker: "SPEAKER_00"},
		{Start: 1, End: 2, Text: "hi", Speaker: "SPEAKER_01"},
	}}
}

func TestTranscribe(t *testing.T) {
	svc := &fakeService{transcript: sampleTranscript()}
	client := dial(t, svc)
	n := 2

	resp, err := client.Transcribe(context.Background(), &TranscribeRequest{
		Filename: "call.wav",
		Audio:    []byte("RIFF"),
		Options:  Options{ModelName: "mock/x", NumSpeakers: &n, DeviceID: "cpu"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TranscriptFilename != "call.json" || resp.JobID != "job-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Transcript.Speakers) != 2 {
		t.Errorf("expected 2 segments, got %d", len(resp.Transcript.Speakers))
	}
	if string(svc.uploaded) != "RIFF" {
		t.Errorf("expected audio bytes forwarded, got %q", svc.uploaded)
	}
	if svc.opts.TranscriptionModel != "mock/x" || svc.opts.Device != "cpu" || *svc.opts.NumSpeakers != 2 {
		t.Errorf("unexpected options: %+v", svc.opts)
	}
}

func TestTranscribe_StoredFile(t *testing.T) {
	svc := &fakeService{}
	client := dial(t, svc)

	if _, err := client.Transcribe(context.Background(), &TranscribeRequest{Filename: "call.wav"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.uploaded != nil {
		t.Error("expected no upload without audio")
	}

	_, err := client.Transcribe(context.Background(), &TranscribeRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestGetTranscriptAndListFiles(t *testing.T) {
	client := dial(t, &fakeService{transcript: sampleTranscript()})

	tr, err := client.GetTranscript(context.Background(), &GetTranscriptRequest{TranscriptFilename: "call.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Speakers[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected transcript: %+v", tr)
	}

	files, err := client.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files.Files) != 1 || !files.Files[0].HasTranscript {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestUpdateSpeakerNames(t *testing.T) {
	svc := &fakeService{transcript: sampleTranscript()}
	client := dial(t, svc)

	tr, err := client.UpdateSpeakerNames(context.Background(), &UpdateSpeakerNamesRequest{
		TranscriptFilename: "call.json",
		SpeakerNames:       models.SpeakerNameMap{"SPEAKER_00": "Alice"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Speakers[0].Speaker != "Alice" || tr.Speakers[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected transcript: %+v", tr)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"invalid options", pipeline.ErrInvalidOptions, codes.InvalidArgument},
		{"invalid audio", engine.Errorf(engine.KindInvalidAudio, "probe", "bad header"), codes.InvalidArgument},
		{"schema", &schema.ValidationError{Problems: []string{"x"}}, codes.InvalidArgument},
		{"not found", storage.ErrNotFound, codes.NotFound},
		{"exists", storage.ErrExists, codes.AlreadyExists},
		{"model load", engine.Errorf(engine.KindModelLoad, "load", "gone"), codes.FailedPrecondition},
		{"internal", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, &fakeService{err: tt.err})
			_, err := client.GetTranscript(context.Background(), &GetTranscriptRequest{TranscriptFilename: "call.json"})
			if got := status.Code(err); got != tt.code {
				t.Errorf("expected %v, got %v", tt.code, got)
			}
		})
	}
}
