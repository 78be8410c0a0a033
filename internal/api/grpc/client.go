package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"speech-diarization-service/internal/models"
)

// Client calls the transcript service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc. Every call selects the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) Transcribe(ctx context.Context, in *TranscribeRequest, opts ...grpc.CallOption) (*TranscribeResponse, error) {
	out := new(TranscribeResponse)
	if err := c.invoke(ctx, "Transcribe", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTranscript(ctx context.Context, in *GetTranscriptRequest, opts ...grpc.CallOption) (*models.Transcript, error) {
	out := new(models.Transcript)
	if err := c.invoke(ctx, "GetTranscript", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSpeakerNames(ctx context.Context, in *UpdateSpeakerNamesRequest, opts ...grpc.CallOption) (*models.Transcript, error) {
	out := new(models.Transcript)
	if err := c.invoke(ctx, "UpdateSpeakerNames", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFiles(ctx context.Context, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	out := new(ListFilesResponse)
	if err := c.invoke(ctx, "ListFiles", &ListFilesRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
