package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "speech-diarization-service/internal/api/grpc"
	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/storage"
)

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	audioFile := flag.String("audio", "", "Audio file to upload and transcribe (optional)")
	rename := flag.String("rename", "", "Rename SPEAKER_00 in the first transcript to this name (optional)")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if *audioFile != "" {
		data, err := os.ReadFile(*audioFile)
		if err != nil {
			log.Fatalf("failed to read audio: %v", err)
		}
		resp, err := client.Transcribe(ctx, &grpcapi.TranscribeRequest{
			Filename: filepath.Base(*audioFile),
			Audio:    data,
		})
		if err != nil {
			log.Fatalf("transcribe failed: %v", err)
		}
		log.Printf("Transcribed: filename=%s transcript=%s job=%s segments=%d",
			resp.Filename, resp.TranscriptFilename, resp.JobID, len(resp.Transcript.Speakers))
	}

	files, err := client.ListFiles(ctx)
	if err != nil {
		log.Fatalf("list files failed: %v", err)
	}
	log.Printf("Stored files: %d", len(files.Files))

	var first string
	for _, f := range files.Files {
		log.Printf("  %s (transcript: %v)", f.Filename, f.HasTranscript)
		if f.HasTranscript && first == "" {
			first = f.Filename
		}
	}
	if first == "" {
		return
	}

	key := storage.TranscriptKey(first)
	transcript, err := client.GetTranscript(ctx, &grpcapi.GetTranscriptRequest{TranscriptFilename: key})
	if err != nil {
		log.Fatalf("get transcript failed: %v", err)
	}
	log.Printf("Transcript %s: %d segments, speakers=%v", key, len(transcript.Speakers), transcript.SpeakerLabels())

	if *rename != "" {
		updated, err := client.UpdateSpeakerNames(ctx, &grpcapi.UpdateSpeakerNamesRequest{
			TranscriptFilename: key,
			SpeakerNames:       models.SpeakerNameMap{"SPEAKER_00": *rename},
		})
		if err != nil {
			log.Fatalf("update speaker names failed: %v", err)
		}
		log.Printf("Updated speakers: %v", updated.SpeakerLabels())
	}
}
