package diarize

import (
	"fmt"
	"math"
	"time"
)

// MeetingType is the derived meeting shape.
type MeetingType int

const (
	MeetingUnknown MeetingType = iota
	MeetingOneOnOne
	MeetingGroup
)

func (t MeetingType) String() string {
	switch t {
	case MeetingOneOnOne:
		return "one-on-one"
	case MeetingGroup:
		return "group"
	case MeetingUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("MeetingType(%d)", int(t))
	}
}

// Classification is a point-in-time meeting classification. Each
// recomputation supersedes the previous one; results are never merged.
type Classification struct {
	SpeakerCount int         `json:"speaker_count"`
	Type         MeetingType `json:"meeting_type"`
	Confidence   float64     `json:"confidence"`
	DetectedAt   time.Time   `json:"detected_at"`
}

// Classify derives the meeting type and a confidence score from all
// segments observed so far. Confidence blends three normalized sub-scores:
// observed speech duration, pairwise embedding separation, and segment
// count. Only the first embedding seen per speaker is used as its
// representative vector.
func Classify(segments []Segment) Classification {
	speakers := make(map[string][]float32)
	var order []string
	totalDuration := 0.0

	for _, seg := range segments {
		if seg.Speaker == "" {
			continue
		}
		totalDuration += seg.Duration()
		if _, seen := speakers[seg.Speaker]; !seen {
			speakers[seg.Speaker] = seg.Embedding
			order = append(order, seg.Speaker)
		}
	}

	speakerCount := len(speakers)

	var meetingType MeetingType
	switch {
	case speakerCount == 2:
		meetingType = MeetingOneOnOne
	case speakerCount > 2:
		meetingType = MeetingGroup
	default:
		meetingType = MeetingUnknown
	}

	durationConf := math.Min(totalDuration/durationNormSeconds, 1.0)
	separationConf := separationConfidence(order, speakers)
	countConf := math.Min(float64(len(segments))/segmentCountNorm, 1.0)

	confidence := durationWeight*durationConf +
		separationWeight*separationConf +
		segmentCountWeight*countConf

	return Classification{
		SpeakerCount: speakerCount,
		Type:         meetingType,
		Confidence:   confidence,
		DetectedAt:   time.Now(),
	}
}

// separationConfidence scores how acoustically distinct the speakers are:
// 1 minus the mean pairwise cosine similarity of their representative
// embeddings. With fewer than two comparable speakers there is nothing to
// compare, which is full confidence rather than a failure.
func separationConfidence(order []string, speakers map[string][]float32) float64 {
	var sims []float64
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, b := speakers[order[i]], speakers[order[j]]
			if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
				continue
			}
			sims = append(sims, cosineSimilarity(a, b))
		}
	}
	if len(sims) == 0 {
		return 1.0
	}

	mean := 0.0
	for _, s := range sims {
		mean += s
	}
	mean /= float64(len(sims))

	return clamp01(1.0 - mean)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
