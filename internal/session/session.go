package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobkitchen/whonext-core/internal/align"
	"github.com/bobkitchen/whonext-core/internal/audio"
	"github.com/bobkitchen/whonext-core/internal/diarize"
	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
	"github.com/bobkitchen/whonext-core/internal/resilience"
	"github.com/bobkitchen/whonext-core/internal/syncx"
	"github.com/bobkitchen/whonext-core/internal/trace"
	"github.com/bobkitchen/whonext-core/internal/transcribe"
)

// Config holds per-session pipeline settings.
type Config struct {
	SampleRate           int
	ChunkDuration        float64 // seconds
	ChunkOverlap         float64 // seconds
	MinChunkDuration     float64 // seconds, tail below this is discarded on finish
	RequiredConsecutive  int
	InheritFloor         float64 // seconds
	MinDurationForChange float64 // seconds
	CallTimeout          time.Duration
	QueueSize            int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = audio.DefaultTargetDuration
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = audio.DefaultOverlapDuration
	}
	if c.MinChunkDuration <= 0 {
		c.MinChunkDuration = audio.DefaultMinChunkDuration
	}
	if c.RequiredConsecutive <= 0 {
		c.RequiredConsecutive = diarize.DefaultRequiredConsecutive
	}
	if c.InheritFloor <= 0 {
		c.InheritFloor = diarize.DefaultInheritFloor
	}
	if c.MinDurationForChange <= 0 {
		c.MinDurationForChange = diarize.DefaultMinDurationForChange
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// queued tags a chunk with the reset generation it belongs to, so the
// worker can discard chunks that were in flight when Reset was called.
type queued struct {
	chunk audio.Chunk
	gen   uint64
}

// Session is a single recording's processing engine. One goroutine feeds
// AddAudioBuffer; a single internal worker applies chunks to session state
// in strict index order, so readers always observe a prefix-consistent
// transcript. Readers may call the accessor methods from any goroutine.
type Session struct {
	ID        string
	StartedAt time.Time

	cfg         Config
	diarizer    diarize.Diarizer
	transcriber transcribe.Transcriber

	buffer     *audio.ChunkBuffer
	stabilizer *diarize.Stabilizer
	diaBreaker *resilience.Breaker
	trBreaker  *resilience.Breaker
	retryCfg   resilience.RetryConfig

	classification *syncx.RWGuard[diarize.Classification]
	progress       *syncx.RWGuard[Progress]

	mu            sync.Mutex
	chunks        []TranscriptChunk
	timeline      []diarize.Segment // stabilized segments, absolute times
	totalDuration float64
	smoothed      int // spike segments rewritten across all chunks
	gen           uint64
	finished      bool
	result        *Result

	// sendMu serializes queue sends against closing it in Finish. A send
	// blocked on a full queue holds it until the worker drains; Finish
	// cannot close the queue under a sender's feet.
	sendMu sync.Mutex
	closed bool

	queue  chan queued
	events chan<- Event
	done   chan struct{}
	cancel context.CancelFunc
}

// New creates a session with a fresh ID. The events channel is optional;
// when non-nil, chunk and classification updates are emitted to it
// without blocking.
func New(cfg Config, d diarize.Diarizer, t transcribe.Transcriber, events chan<- Event) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		cfg:         cfg,
		diarizer:    d,
		transcriber: t,
		buffer: audio.NewChunkBuffer(audio.ChunkConfig{
			SampleRate:      cfg.SampleRate,
			TargetDuration:  cfg.ChunkDuration,
			OverlapDuration: cfg.ChunkOverlap,
		}),
		stabilizer:     diarize.NewStabilizer(cfg.RequiredConsecutive, cfg.InheritFloor),
		diaBreaker:     resilience.New(resilience.CollaboratorConfig()),
		trBreaker:      resilience.New(resilience.CollaboratorConfig()),
		retryCfg:       resilience.CollaboratorRetryConfig(),
		classification: syncx.NewGuard(diarize.Classification{}),
		progress:       syncx.NewGuard(Progress{}),
		queue:          make(chan queued, cfg.QueueSize),
		events:         events,
		done:           make(chan struct{}),
	}
}

// Start launches the processing worker. Must be called once before
// AddAudioBuffer.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.worker(ctx)
}

// AddAudioBuffer appends captured samples to the chunk buffer. If a chunk
// becomes ready it is handed to the worker; the call itself never waits on
// collaborator latency, only on a full queue.
func (s *Session) AddAudioBuffer(samples []float32, elapsed float64) {
	if chunk, ok := s.buffer.AddSamples(samples, elapsed); ok {
		s.enqueue(chunk)
	}
}

func (s *Session) enqueue(chunk audio.Chunk) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.progress.Write(func(p *Progress) { p.TotalChunks++ })

	select {
	case s.queue <- queued{chunk: chunk, gen: gen}:
	default:
		slog.Warn("chunk queue full, waiting",
			"session_id", s.ID, "chunk_index", chunk.Index)
		select {
		case s.queue <- queued{chunk: chunk, gen: gen}:
		case <-s.done:
			// Worker gone; the session is being torn down.
		}
	}
}

func (s *Session) worker(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-s.queue:
			if !ok {
				return
			}
			s.mu.Lock()
			stale := q.gen != s.gen
			s.mu.Unlock()
			if stale {
				continue
			}
			s.processChunk(ctx, q.chunk)
		}
	}
}

// processChunk runs the full pipeline for one chunk and applies the result
// to session state. A collaborator failure is recorded on the chunk; the
// session keeps going.
func (s *Session) processChunk(ctx context.Context, chunk audio.Chunk) {
	ctx, span := trace.StartSpan(ctx, "session.process_chunk")
	span.SetAttr("session_id", s.ID)
	span.SetAttr("chunk_index", chunk.Index)
	span.SetAttr("chunk_hash", chunk.Hash)
	defer span.End()

	start := time.Now()
	log := trace.Logger(ctx)

	var (
		wg     sync.WaitGroup
		segs   []diarize.Segment
		tr     transcribe.Result
		diaErr error
		trErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		segs, diaErr = s.callDiarize(ctx, chunk)
	}()
	go func() {
		defer wg.Done()
		tr, trErr = s.callTranscribe(ctx, chunk)
	}()
	wg.Wait()

	tc := TranscriptChunk{
		Index:     chunk.Index,
		StartTime: chunk.StartTime,
		Duration:  chunk.Duration,
		Text:      tr.Text,
		Latency:   time.Since(start),
		Err:       errors.Join(diaErr, trErr),
	}

	var classification *diarize.Classification
	if diaErr == nil {
		stabilized := s.stabilizer.StabilizeSequence(segs)
		smoothed, rewrites := diarize.TemporalSmooth(stabilized, s.cfg.MinDurationForChange)
		if rewrites > 0 {
			s.mu.Lock()
			s.smoothed += rewrites
			s.mu.Unlock()
		}
		if trErr == nil {
			tc.Segments = align.Align(tr.Text, smoothed, chunk.Duration)
		}
		classification = s.applySegments(chunk, smoothed)
		span.SetAttr("segments", len(smoothed))
		span.SetAttr("spike_rewrites", rewrites)
	} else if trErr == nil {
		// Transcript without speakers still lands on the timeline.
		tc.Segments = align.Align(tr.Text, nil, chunk.Duration)
	}

	s.commit(tc)

	if tc.Err != nil {
		log.Warn("chunk processing degraded", "chunk_index", chunk.Index, "error", tc.Err)
	} else {
		log.Debug("chunk processed", "span", span, "words", len(tr.Words))
	}

	s.emit(Event{Type: EventChunk, SessionID: s.ID, Chunk: &tc})
	if classification != nil {
		s.emit(Event{Type: EventClassification, SessionID: s.ID, Classification: classification})
	}
}

// applySegments shifts chunk-relative segments onto the recording timeline
// and recomputes the meeting classification over everything seen so far.
// Returns the new classification when its shape changed, nil otherwise.
func (s *Session) applySegments(chunk audio.Chunk, segs []diarize.Segment) *diarize.Classification {
	if len(segs) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, seg := range segs {
		seg.Start += chunk.StartTime
		seg.End += chunk.StartTime
		s.timeline = append(s.timeline, seg)
	}
	timeline := s.timeline
	s.mu.Unlock()

	next := diarize.Classify(timeline)
	prev := s.classification.Swap(next)
	if next.Type == prev.Type && next.SpeakerCount == prev.SpeakerCount {
		return nil
	}
	return &next
}

func (s *Session) commit(tc TranscriptChunk) {
	s.mu.Lock()
	s.chunks = append(s.chunks, tc)
	if end := tc.StartTime + tc.Duration; end > s.totalDuration {
		s.totalDuration = end
	}
	s.mu.Unlock()

	s.progress.Write(func(p *Progress) {
		p.CurrentChunk++
		if tc.Err != nil {
			p.LastError = tc.Err.Error()
		}
	})
}

func (s *Session) callDiarize(ctx context.Context, chunk audio.Chunk) ([]diarize.Segment, error) {
	var out []diarize.Segment
	err := resilience.Retry(ctx, s.retryCfg, func() error {
		if err := s.diaBreaker.Allow(); err != nil {
			return apperrors.Wrap(err, apperrors.DiarizationUnavailable, "diarization circuit open")
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		segs, err := s.diarizer.Diarize(cctx, chunk)
		if err != nil {
			s.diaBreaker.Failure()
			return err
		}
		s.diaBreaker.Success()
		out = segs
		return nil
	})
	return out, err
}

func (s *Session) callTranscribe(ctx context.Context, chunk audio.Chunk) (transcribe.Result, error) {
	var out transcribe.Result
	err := resilience.Retry(ctx, s.retryCfg, func() error {
		if err := s.trBreaker.Allow(); err != nil {
			return apperrors.Wrap(err, apperrors.TranscriptionUnavailable, "transcription circuit open")
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		res, err := s.transcriber.Transcribe(cctx, chunk)
		if err != nil {
			s.trBreaker.Failure()
			return err
		}
		s.trBreaker.Success()
		out = res
		return nil
	})
	return out, err
}

// Finish flushes the chunk buffer, waits for the worker to drain, and
// returns the assembled result. The tail is processed only if it meets the
// minimum chunk duration. Safe against a feeder still calling
// AddAudioBuffer: the session stops accepting chunks first, so a late
// feeder send is rejected instead of racing the queue close. Subsequent
// calls return the stored result.
func (s *Session) Finish(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.finished {
		res := s.result
		s.mu.Unlock()
		if res != nil {
			return *res, nil
		}
		return Result{}, apperrors.New(apperrors.Internal, "session finish already in progress")
	}
	s.finished = true
	s.mu.Unlock()

	// Stop accepting feeder chunks. Waits out any sender currently blocked
	// on a full queue; after this the tail is the last chunk in.
	s.sendMu.Lock()
	s.closed = true
	s.sendMu.Unlock()

	if tail, ok := s.buffer.Flush(); ok {
		if tail.Duration >= s.cfg.MinChunkDuration {
			s.progress.Write(func(p *Progress) { p.TotalChunks++ })
			s.mu.Lock()
			gen := s.gen
			s.mu.Unlock()
			select {
			case s.queue <- queued{chunk: tail, gen: gen}:
			case <-s.done:
			}
		} else {
			trace.Logger(ctx).Debug("discarding short tail",
				"session_id", s.ID, "duration", tail.Duration)
		}
	}
	close(s.queue)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return Result{}, ctx.Err()
	}

	stats := s.stabilizer.Stats()

	s.mu.Lock()
	defer s.mu.Unlock()
	stats.SmoothedSegments = s.smoothed

	res := Result{
		Transcript:      joinTranscript(s.chunks),
		Chunks:          append([]TranscriptChunk(nil), s.chunks...),
		TotalDuration:   s.totalDuration,
		ProcessingTime:  time.Since(s.StartedAt),
		Classification:  s.classification.Get(),
		StabilizerStats: stats,
	}
	s.result = &res
	return res, nil
}

// Cancel aborts in-flight collaborator calls and stops the worker. Chunks
// already committed remain readable through the accessors.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Reset discards all accumulated state while keeping the session alive.
// Chunks still queued from before the reset are dropped by the worker.
func (s *Session) Reset() {
	s.buffer.Reset()
	s.stabilizer.Reset()

	s.mu.Lock()
	s.gen++
	s.chunks = nil
	s.timeline = nil
	s.totalDuration = 0
	s.smoothed = 0
	s.mu.Unlock()

	s.classification.Set(diarize.Classification{})
	s.progress.Set(Progress{})
}

// Progress returns the current processing state.
func (s *Session) Progress() Progress { return s.progress.Get() }

// Classification returns the latest meeting classification.
func (s *Session) Classification() diarize.Classification { return s.classification.Get() }

// Transcript returns the text accumulated so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return joinTranscript(s.chunks)
}

// Chunks returns a copy of the committed chunks in index order.
func (s *Session) Chunks() []TranscriptChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranscriptChunk(nil), s.chunks...)
}

func (s *Session) emit(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func joinTranscript(chunks []TranscriptChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
