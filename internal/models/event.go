package models

// Event types published when a transcription job finishes.
const (
	EventTranscriptCompleted = "transcript.completed"
	EventTranscriptFailed    = "transcript.failed"
)

// TranscriptEvent announces the outcome of a transcription job.
type TranscriptEvent struct {
	EventType          string   `json:"eventType"`
	EventID            string   `json:"eventId"`
	JobID              string   `json:"jobId"`
	Filename           string   `json:"filename"`
	TranscriptFilename string   `json:"transcriptFilename,omitempty"`
	TranscriptionModel string   `json:"transcriptionModel,omitempty"`
	DiarizationModel   string   `json:"diarizationModel,omitempty"`
	SegmentCount       int      `json:"segmentCount"`
	Speakers           []string `json:"speakers,omitempty"`
	ErrorKind          string   `json:"errorKind,omitempty"`
	Error              string   `json:"error,omitempty"`
	Timestamp          int64    `json:"timestamp"`
}
