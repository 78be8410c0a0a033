package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"speech-diarization-service/internal/models"
)

type transcriptServer interface {
	Transcribe(context.Context, *TranscribeRequest) (*TranscribeResponse, error)
	GetTranscript(context.Context, *GetTranscriptRequest) (*models.Transcript, error)
	UpdateSpeakerNames(context.Context, *UpdateSpeakerNamesRequest) (*models.Transcript, error)
	ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*transcriptServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transcribe", Handler: unaryHandler("Transcribe", transcriptServer.Transcribe)},
		{MethodName: "GetTranscript", Handler: unaryHandler("GetTranscript", transcriptServer.GetTranscript)},
		{MethodName: "UpdateSpeakerNames", Handler: unaryHandler("UpdateSpeakerNames", transcriptServer.UpdateSpeakerNames)},
		{MethodName: "ListFiles", Handler: unaryHandler("ListFiles", transcriptServer.ListFiles)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transcripts/v1/transcripts.json",
}

// unaryHandler adapts a typed method to the generic handler signature used
// by grpc.MethodDesc.
func unaryHandler[Req any, Resp any](method string, call func(transcriptServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(transcriptServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(transcriptServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
