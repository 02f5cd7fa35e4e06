package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobkitchen/whonext-core/internal/audio"
	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
)

// Client calls an HTTP transcription service. The service consumes raw
// little-endian float32 PCM and returns whisperx-style JSON: segments with
// text and optional per-word timings.
type Client struct {
	baseURL    string
	sampleRate int
	http       *http.Client
}

// NewClient creates a transcription client.
func NewClient(baseURL string, sampleRate int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		sampleRate: sampleRate,
		http:       &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Language string `json:"language"`
	Segments []struct {
		Text  string `json:"text"`
		Words []Word `json:"words"`
	} `json:"segments"`
}

// Transcribe sends one audio chunk and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error) {
	if len(chunk.Samples) == 0 {
		return Result{}, apperrors.New(apperrors.AudioFormatInvalid, "empty chunk")
	}

	url := fmt.Sprintf("%s/transcribe?sample_rate=%d", c.baseURL, c.sampleRate)
	body := bytes.NewReader(audio.Float32ToBytes(chunk.Samples))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.Internal, "building transcribe request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Chunk-Hash", chunk.Hash)
	req.Header.Set("X-Chunk-Index", strconv.Itoa(chunk.Index))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, apperrors.Wrap(err, apperrors.Timeout, "transcribe call timed out")
		}
		return Result{}, apperrors.Wrap(err, apperrors.TranscriptionUnavailable, "transcribe call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, apperrors.Newf(apperrors.TranscriptionUnavailable, "transcribe %s: %s", resp.Status, string(b))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.ProcessingFailed, "decoding transcribe response")
	}

	result := Result{Language: out.Language}
	var parts []string
	for _, seg := range out.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		result.Words = append(result.Words, seg.Words...)
	}
	result.Text = strings.Join(parts, " ")
	return result, nil
}
