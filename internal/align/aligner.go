// Package align maps transcribed words onto speaker segments.
package align

import (
	"strings"

	"github.com/bobkitchen/whonext-core/internal/diarize"
)

// Segment is a speaker-attributed text span. Speaker is empty when no
// diarization was available for the span.
type Segment struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start"` // seconds, relative to chunk start
	End     float64 `json:"end"`
}

// Align partitions a chunk's transcript text across its speaker segments
// proportionally by estimated speaking rate. This is a coarse alignment:
// each segment claims the word-index window [start*wps, end*wps) with no
// acoustic word-boundary detection. Segments whose windows are empty or
// out of range produce no span. Same-label segments stay distinct; merging
// is a presentation concern.
//
// With no speaker segments the whole transcript becomes one unattributed
// span covering the chunk.
func Align(transcriptText string, segments []diarize.Segment, chunkDuration float64) []Segment {
	text := strings.TrimSpace(transcriptText)

	if len(segments) == 0 {
		return []Segment{{
			Text:  text,
			Start: 0,
			End:   chunkDuration,
		}}
	}

	words := strings.Fields(text)
	if len(words) == 0 || chunkDuration <= 0 {
		return nil
	}
	wordsPerSecond := float64(len(words)) / chunkDuration

	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		startIdx := clampIndex(int(seg.Start*wordsPerSecond), len(words))
		endIdx := clampIndex(int(seg.End*wordsPerSecond), len(words))
		if startIdx >= endIdx {
			continue
		}

		out = append(out, Segment{
			Text:    strings.Join(words[startIdx:endIdx], " "),
			Speaker: seg.Speaker,
			Start:   seg.Start,
			End:     seg.End,
		})
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
