// Package session runs the per-recording pipeline: chunking, collaborator
// calls, label stabilization, alignment, and classification, applied to
// session state in strict chunk order.
package session

import (
	"time"

	"github.com/bobkitchen/whonext-core/internal/align"
	"github.com/bobkitchen/whonext-core/internal/diarize"
)

// TranscriptChunk is one processed chunk's result. Appended to the session
// transcript in increasing index order; never mutated after creation. A
// failed chunk keeps its slot with Err set so gaps stay attributable.
type TranscriptChunk struct {
	Index     int             `json:"index"`
	StartTime float64         `json:"start_time"` // seconds since recording start
	Duration  float64         `json:"duration"`
	Text      string          `json:"text"`
	Segments  []align.Segment `json:"segments,omitempty"`
	Latency   time.Duration   `json:"latency"`
	Err       error           `json:"-"`
}

// Progress is the published processing state for UI polling.
type Progress struct {
	CurrentChunk int    `json:"current_chunk"` // chunks applied
	TotalChunks  int    `json:"total_chunks"`  // chunks emitted so far
	LastError    string `json:"last_error,omitempty"`
}

// Result is the finished session output.
type Result struct {
	Transcript      string                 `json:"transcript"`
	Chunks          []TranscriptChunk      `json:"chunks"`
	TotalDuration   float64                `json:"total_duration"` // seconds of audio
	ProcessingTime  time.Duration          `json:"processing_time"`
	Classification  diarize.Classification `json:"classification"`
	StabilizerStats diarize.Stats          `json:"stabilizer_stats"`
}

// Event types published on the session event stream.
const (
	EventChunk          = "chunk"
	EventClassification = "classification"
)

// Event is a live update emitted as chunks complete.
type Event struct {
	Type           string
	SessionID      string
	Chunk          *TranscriptChunk
	Classification *diarize.Classification
}
