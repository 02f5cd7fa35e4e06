// Package diarize handles speaker segmentation: the diarization collaborator
// interface, label stabilization, temporal smoothing, and meeting
// classification.
package diarize

import (
	"context"

	"github.com/bobkitchen/whonext-core/internal/audio"
)

// Segment is one diarization output unit. Speaker identifiers are
// model-local and not stable across chunks; stabilization handles that.
// Read-only once produced.
type Segment struct {
	Speaker    string    `json:"speaker"`
	Start      float64   `json:"start"` // seconds, relative to chunk start
	End        float64   `json:"end"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Diarizer is the diarization capability. Implementations are selected at
// startup. An empty segment list is a valid result (silence or an
// undiarizable chunk), not an error.
type Diarizer interface {
	Diarize(ctx context.Context, chunk audio.Chunk) ([]Segment, error)
}
