// Package models defines the data structures for transcripts and transcript events.
package models

// UnknownSpeaker labels a segment that overlaps no diarized speaker turn.
const UnknownSpeaker = "UNKNOWN"

// TranscriptSegment is a span of recognized text produced by the transcription engine.
// Times are seconds from the start of the audio.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerTurn is an interval during which one diarized speaker is active.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// SpeakerSegment is a transcription segment attributed to a speaker.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// Transcript is the persisted, speaker-attributed result for one audio file.
type Transcript struct {
	Speakers []SpeakerSegment `json:"speakers"`
}

// SpeakerNameMap maps diarization labels (e.g. SPEAKER_00) to display names.
type SpeakerNameMap map[string]string

// WithSpeakerNames returns a copy of t in which every speaker label present in
// names is replaced by its mapped value. Labels absent from the map, segment
// order and timing are preserved.
func (t Transcript) WithSpeakerNames(names SpeakerNameMap) Transcript {
	out := Transcript{Speakers: make([]SpeakerSegment, len(t.Speakers))}
	for i, seg := range t.Speakers {
		if name, ok := names[seg.Speaker]; ok {
			seg.Speaker = name
		}
		out.Speakers[i] = seg
	}
	return out
}

// SpeakerLabels returns the distinct speaker labels in order of first appearance.
func (t Transcript) SpeakerLabels() []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, seg := range t.Speakers {
		if _, ok := seen[seg.Speaker]; ok {
			continue
		}
		seen[seg.Speaker] = struct{}{}
		labels = append(labels, seg.Speaker)
	}
	return labels
}
