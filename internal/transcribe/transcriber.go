// Package transcribe handles the transcription collaborator: the capability
// interface and an HTTP client for whisper-style recognition services.
package transcribe

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bobkitchen/whonext-core/internal/audio"
)

// Word is one recognized word with optional timing. Recognition services
// serialize timestamps as JSON numbers with varying precision; decimal
// decoding keeps them exact until a consumer wants seconds.
type Word struct {
	Text  string           `json:"word"`
	Start *decimal.Decimal `json:"start,omitempty"`
	End   *decimal.Decimal `json:"end,omitempty"`
}

// Result is one chunk's transcription.
type Result struct {
	Text     string
	Language string
	Words    []Word
}

// Transcriber is the transcription capability. Implementations are selected
// at startup. Empty text is a valid result for a silent chunk.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error)
}
