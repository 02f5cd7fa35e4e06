// Package audio handles device capture and chunk buffering
package audio

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"

	"lukechampine.com/blake3"
)

// Chunk is a fixed-duration window of mono samples placed on the recording
// timeline. Immutable after emission.
type Chunk struct {
	Samples   []float32
	Index     int
	StartTime float64 // seconds since recording start
	Duration  float64 // seconds
	Hash      string  // blake3 content hash, for chunk identity in logs
}

// ChunkConfig holds chunk buffer settings.
type ChunkConfig struct {
	SampleRate      int
	TargetDuration  float64 // seconds
	OverlapDuration float64 // seconds
}

// TranscribeChunkConfig returns the longer buffering window for chunks
// that feed transcription alone. Diarization-aligned chunking keeps the
// shorter default window so transcript and segments cover one window.
func TranscribeChunkConfig(sampleRate int) ChunkConfig {
	return ChunkConfig{
		SampleRate:      sampleRate,
		TargetDuration:  TranscribeTargetDuration,
		OverlapDuration: TranscribeOverlapDuration,
	}
}

func (c ChunkConfig) withDefaults() ChunkConfig {
	if c.TargetDuration <= 0 {
		c.TargetDuration = DefaultTargetDuration
	}
	if c.OverlapDuration < 0 || c.OverlapDuration >= c.TargetDuration {
		c.OverlapDuration = DefaultOverlapDuration
	}
	return c
}

// ChunkBuffer accumulates raw mono samples and emits fixed-duration chunks
// with a trailing overlap retained for acoustic continuity. Exactly one
// writer per recording session; all mutation happens under the lock.
type ChunkBuffer struct {
	cfg ChunkConfig

	mu      sync.Mutex
	samples []float32
	cursor  float64 // start time of the chunk currently accumulating
	emitted int
}

// NewChunkBuffer creates a chunk buffer.
func NewChunkBuffer(cfg ChunkConfig) *ChunkBuffer {
	return &ChunkBuffer{cfg: cfg.withDefaults()}
}

// AddSamples appends samples and returns a ready chunk once the accumulated
// duration reaches the target. The elapsed argument is the capture-side clock
// and is accepted for interface parity with capture sources; chunk placement
// is driven by the buffer's own cursor so emitted start times stay exactly
// target−overlap apart.
func (b *ChunkBuffer) AddSamples(samples []float32, elapsed float64) (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)

	targetN := int(b.cfg.TargetDuration * float64(b.cfg.SampleRate))
	if len(b.samples) < targetN {
		return Chunk{}, false
	}

	chunk := b.emitLocked(b.samples[:targetN])

	// Retain the trailing overlap for the next chunk and advance the cursor
	// by the non-overlapping stride.
	overlapN := int(b.cfg.OverlapDuration * float64(b.cfg.SampleRate))
	rest := make([]float32, 0, len(b.samples)-targetN+overlapN)
	rest = append(rest, b.samples[targetN-overlapN:]...)
	b.samples = rest
	b.cursor += b.cfg.TargetDuration - b.cfg.OverlapDuration

	return chunk, true
}

// Flush forcibly emits whatever remains, regardless of the minimum-duration
// rule. Returns false if the buffer is empty. The tail is returned exactly
// once; a second Flush finds an empty buffer.
func (b *ChunkBuffer) Flush() (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) == 0 {
		return Chunk{}, false
	}

	chunk := b.emitLocked(b.samples)
	b.samples = nil
	b.cursor += chunk.Duration

	return chunk, true
}

// Reset clears all accumulated state.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
	b.cursor = 0
	b.emitted = 0
}

// Buffered returns the currently accumulated duration in seconds.
func (b *ChunkBuffer) Buffered() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(len(b.samples)) / float64(b.cfg.SampleRate)
}

func (b *ChunkBuffer) emitLocked(samples []float32) Chunk {
	out := make([]float32, len(samples))
	copy(out, samples)

	chunk := Chunk{
		Samples:   out,
		Index:     b.emitted,
		StartTime: b.cursor,
		Duration:  float64(len(out)) / float64(b.cfg.SampleRate),
		Hash:      hashSamples(out),
	}
	b.emitted++
	return chunk
}

// hashSamples computes a blake3 content hash of the sample data.
func hashSamples(samples []float32) string {
	h := blake3.New(32, nil)
	_, _ = h.Write(Float32ToBytes(samples))
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Float32ToBytes converts float32 samples to little-endian bytes.
func Float32ToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*Float32ByteSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*Float32ByteSize:], math.Float32bits(s))
	}
	return buf
}
