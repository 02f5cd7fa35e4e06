// Package audio handles device capture and chunk buffering
package audio

// Audio constants
const (
	// Capture read size, ~23ms at 44100Hz
	FramesPerBuffer = 1024

	// Diarization-oriented chunking window (seconds)
	DefaultTargetDuration  = 10.0
	DefaultOverlapDuration = 1.0

	// Transcription-oriented chunking window (seconds). Longer windows give
	// the recognizer more context at the cost of latency.
	TranscribeTargetDuration  = 60.0
	TranscribeOverlapDuration = 2.0

	// Tails shorter than this are usually not worth sending out (seconds).
	// Enforcement is the caller's policy, not the buffer's.
	DefaultMinChunkDuration = 1.0

	// Float32 byte size for sample conversion
	Float32ByteSize = 4
)
