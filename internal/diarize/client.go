package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bobkitchen/whonext-core/internal/audio"
	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
)

// Client calls an HTTP diarization service. The service consumes raw
// little-endian float32 PCM and returns speaker segments with embeddings.
type Client struct {
	baseURL    string
	sampleRate int
	http       *http.Client
}

// NewClient creates a diarization client.
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

type diarizeResponse struct {
	Segments []Segment `json:"segments"`
}

// Diarize sends one audio chunk and returns its raw speaker segments.
func (c *Client) Diarize(ctx context.Context, chunk audio.Chunk) ([]Segment, error) {
	if len(chunk.Samples) == 0 {
		return nil, apperrors.New(apperrors.AudioFormatInvalid, "empty chunk")
	}

	url := fmt.Sprintf("%s/diarize?sample_rate=%d", c.baseURL, c.sampleRate)
	body := bytes.NewReader(audio.Float32ToBytes(chunk.Samples))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "building diarize request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Chunk-Hash", chunk.Hash)
	req.Header.Set("X-Chunk-Index", strconv.Itoa(chunk.Index))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(err, apperrors.Timeout, "diarize call timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.DiarizationUnavailable, "diarize call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.Newf(apperrors.DiarizationUnavailable, "diarize %s: %s", resp.Status, string(b))
	}

	var out diarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ProcessingFailed, "decoding diarize response")
	}
	return out.Segments, nil
}
