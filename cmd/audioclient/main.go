package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/youpy/go-wav"
)

func main() {
	audioFile := flag.String("audio", "testdata/sample.wav", "Path to audio file")
	serverURL := flag.String("server", "http://localhost:5000", "HTTP API base URL")
	model := flag.String("model", "", "Transcription model (empty for server default)")
	diarizationModel := flag.String("diarization-model", "", "Diarization model (empty for server default)")
	numSpeakers := flag.Int("speakers", 0, "Exact number of speakers (0 to let the model decide)")
	device := flag.String("device", "", "Device id, e.g. cpu or 0")
	events := flag.Bool("events", false, "Print transcript events from the websocket feed")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	if filepath.Ext(*audioFile) == ".wav" {
		format, err := wav.NewReader(f).Format()
		if err != nil {
			log.Fatalf("Not a valid WAV file: %v", err)
		}
		log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
			format.AudioFormat, format.NumChannels, format.SampleRate, format.BitsPerSample)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			log.Fatalf("Failed to rewind audio file: %v", err)
		}
	}

	if *events {
		go printEvents(*serverURL)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(*audioFile))
	if err != nil {
		log.Fatalf("Failed to build form: %v", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		log.Fatalf("Failed to read audio: %v", err)
	}
	fields := map[string]string{
		"model_name":        *model,
		"diarization_model": *diarizationModel,
		"device_id":         *device,
	}
	if *numSpeakers > 0 {
		fields["num_speakers"] = fmt.Sprint(*numSpeakers)
	}
	for k, v := range fields {
		if v != "" {
			mw.WriteField(k, v)
		}
	}
	mw.Close()

	// Inference on long files can take minutes
	client := &http.Client{Timeout: 30 * time.Minute}

	log.Printf("Uploading %s (%d bytes) to %s", *audioFile, body.Len(), *serverURL)
	start := time.Now()
	resp, err := client.Post(*serverURL+"/v1/upload", mw.FormDataContentType(), &body)
	if err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("Failed to decode response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Upload rejected: status=%d error=%v", resp.StatusCode, result["error"])
	}
	log.Printf("Transcribed in %v: filename=%v transcript=%v job=%v",
		time.Since(start).Round(time.Millisecond), result["filename"], result["transcript_filename"], result["job_id"])

	tr, err := client.Get(fmt.Sprintf("%s/v1/transcripts/%v", *serverURL, result["transcript_filename"]))
	if err != nil {
		log.Fatalf("Failed to fetch transcript: %v", err)
	}
	defer tr.Body.Close()

	var transcript struct {
		Speakers []struct {
			Start   float64 `json:"start"`
			End     float64 `json:"end"`
			Text    string  `json:"text"`
			Speaker string  `json:"speaker"`
		} `json:"speakers"`
	}
	if err := json.NewDecoder(tr.Body).Decode(&transcript); err != nil {
		log.Fatalf("Failed to decode transcript: %v", err)
	}
	for _, s := range transcript.Speakers {
		fmt.Printf("[%7.2f - %7.2f] %-12s %s\n", s.Start, s.End, s.Speaker, s.Text)
	}
}

// printEvents streams events from the websocket feed until the process exits.
func printEvents(serverURL string) {
	u := "ws" + serverURL[len("http"):] + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		log.Printf("Event feed unavailable: %v", err)
		return
	}
	defer conn.Close()

	for {
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		log.Printf("Event: type=%v file=%v job=%v", event["eventType"], event["filename"], event["jobId"])
	}
}
