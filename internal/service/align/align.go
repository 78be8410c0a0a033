// Package align attributes transcription segments to diarized speakers.
package align

import (
	"math"
	"sort"

	"speech-diarization-service/internal/models"
)

// Overlap returns the length of the intersection of [aStart, aEnd] and [bStart, bEnd],
// or zero when the intervals are disjoint or touch at a single point.
func Overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Max(0, math.Min(aEnd, bEnd)-math.Max(aStart, bStart))
}

// Merge labels every segment with the speaker turn it overlaps most.
//
// Ties on overlap go to the turn whose start is closest to the segment start,
// then to the earlier turn. Segments overlapping no turn are labeled
// models.UnknownSpeaker. The result has one element per segment, in segment order.
//
// Turns are swept in start order using a running maximum of turn ends, so each
// segment only inspects turns that can still intersect it.
func Merge(segments []models.TranscriptSegment, turns []models.SpeakerTurn) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, len(segments))
	turns = sortedTurns(turns)

	// maxEnd[i] is the largest end among turns[0..i]; it never decreases.
	maxEnd := make([]float64, len(turns))
	for i, t := range turns {
		maxEnd[i] = t.End
		if i > 0 && maxEnd[i-1] > t.End {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	lo := 0
	prevStart := math.Inf(-1)
	for i, s := range segments {
		if s.Start < prevStart {
			lo = 0
		}
		prevStart = s.Start

		// Every turn before lo ends at or before s.Start.
		for lo < len(turns) && maxEnd[lo] <= s.Start {
			lo++
		}

		out[i] = models.SpeakerSegment{
			Start:   s.Start,
			End:     s.End,
			Text:    s.Text,
			Speaker: bestSpeaker(s, turns[lo:]),
		}
	}
	return out
}

// bestSpeaker scans candidates, which are sorted by start, until they begin after s ends.
func bestSpeaker(s models.TranscriptSegment, candidates []models.SpeakerTurn) string {
	speaker := models.UnknownSpeaker
	best := 0.0
	bestDist := math.Inf(1)

	for _, t := range candidates {
		if t.Start >= s.End {
			break
		}
		ov := Overlap(s.Start, s.End, t.Start, t.End)
		if ov <= 0 {
			continue
		}
		dist := math.Abs(t.Start - s.Start)
		// Strict comparisons keep the earlier turn on a full tie.
		if ov > best || (ov == best && dist < bestDist) {
			best = ov
			bestDist = dist
			speaker = t.Speaker
		}
	}
	return speaker
}

func sortedTurns(turns []models.SpeakerTurn) []models.SpeakerTurn {
	if sort.SliceIsSorted(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start }) {
		return turns
	}
	cp := make([]models.SpeakerTurn, len(turns))
	copy(cp, turns)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Start < cp[j].Start })
	return cp
}

// SpeakerCount returns the number of distinct speakers among turns.
func SpeakerCount(turns []models.SpeakerTurn) int {
	seen := make(map[string]struct{}, len(turns))
	for _, t := range turns {
		seen[t.Speaker] = struct{}{}
	}
	return len(seen)
}
