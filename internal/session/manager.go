package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bobkitchen/whonext-core/internal/audio"
	"github.com/bobkitchen/whonext-core/internal/config"
	"github.com/bobkitchen/whonext-core/internal/diarize"
	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
	"github.com/bobkitchen/whonext-core/internal/transcribe"
)

// Capturer abstracts the audio source so tests can feed samples directly.
type Capturer interface {
	Start(ctx context.Context) error
	Output() <-chan audio.Buffer
	Stop()
}

// Manager owns the session registry and, when a capturer is present, the
// device feed. Sessions are independent; finishing one never touches
// another's state.
type Manager struct {
	cfg         *config.Config
	diarizer    diarize.Diarizer
	transcriber transcribe.Transcriber
	capturer    Capturer
	events      chan Event

	mu             sync.Mutex
	sessions       map[string]*Session
	captureSession string
	captureCancel  context.CancelFunc
	captureDone    chan struct{}
}

// NewManager creates a session manager. capturer may be nil when audio is
// fed externally.
func NewManager(cfg *config.Config, d diarize.Diarizer, t transcribe.Transcriber, capturer Capturer) *Manager {
	return &Manager{
		cfg:         cfg,
		diarizer:    d,
		transcriber: t,
		capturer:    capturer,
		events:      make(chan Event, DefaultEventBuffer),
		sessions:    make(map[string]*Session),
	}
}

// Events returns the merged live event stream for all sessions.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) sessionConfig() Config {
	return Config{
		SampleRate:           m.cfg.SampleRate,
		ChunkDuration:        m.cfg.ChunkDuration,
		ChunkOverlap:         m.cfg.ChunkOverlap,
		MinChunkDuration:     m.cfg.MinChunkDuration,
		RequiredConsecutive:  m.cfg.RequiredConsecutive,
		InheritFloor:         m.cfg.InheritFloor,
		MinDurationForChange: m.cfg.MinDurationForChange,
		CallTimeout:          time.Duration(m.cfg.CallTimeout * float64(time.Second)),
	}
}

// StartSession creates and starts a new session. If a capturer is
// configured and idle, the device feed is attached to this session.
func (m *Manager) StartSession(ctx context.Context) (*Session, error) {
	s := New(m.sessionConfig(), m.diarizer, m.transcriber, m.events)
	s.Start(ctx)

	m.mu.Lock()
	m.sessions[s.ID] = s
	attachCapture := m.capturer != nil && m.captureSession == ""
	if attachCapture {
		m.captureSession = s.ID
	}
	m.mu.Unlock()

	if attachCapture {
		if err := m.startCapture(ctx, s); err != nil {
			m.mu.Lock()
			m.captureSession = ""
			delete(m.sessions, s.ID)
			m.mu.Unlock()
			s.Cancel()
			return nil, err
		}
	}

	slog.Info("session started", "session_id", s.ID, "capture", attachCapture)
	return s, nil
}

func (m *Manager) startCapture(ctx context.Context, s *Session) error {
	if err := m.capturer.Start(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.AudioFormatInvalid, "audio capture start failed")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.captureCancel = cancel
	m.captureDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case buf, ok := <-m.capturer.Output():
				if !ok {
					return
				}
				s.AddAudioBuffer(buf.Data, buf.Elapsed)
			}
		}
	}()
	return nil
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// FinishSession stops feeding the session, drains its worker, and returns
// the result. The session stays registered so the transcript can still be
// fetched; Remove deletes it.
func (m *Manager) FinishSession(ctx context.Context, id string) (Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	wasCapture := ok && m.captureSession == id
	var feederDone chan struct{}
	if wasCapture {
		m.captureSession = ""
		feederDone = m.captureDone
		m.captureDone = nil
		if m.captureCancel != nil {
			m.captureCancel()
			m.captureCancel = nil
		}
	}
	m.mu.Unlock()

	if !ok {
		return Result{}, apperrors.New(apperrors.InvalidArgument, "unknown session").
			WithMetadata("session_id", id)
	}
	if wasCapture {
		m.capturer.Stop()
		// Join the feeder so no AddAudioBuffer call is in flight while
		// the session drains.
		if feederDone != nil {
			<-feederDone
		}
	}

	res, err := s.Finish(ctx)
	if err != nil {
		return Result{}, err
	}
	slog.Info("session finished", "session_id", id,
		"chunks", len(res.Chunks), "audio_seconds", res.TotalDuration,
		"meeting_type", res.Classification.Type.String())
	return res, nil
}

// Remove deletes a finished session from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Shutdown cancels every session and stops capture.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	hadCapture := m.captureSession != ""
	m.captureSession = ""
	feederDone := m.captureDone
	m.captureDone = nil
	if m.captureCancel != nil {
		m.captureCancel()
		m.captureCancel = nil
	}
	m.mu.Unlock()

	if hadCapture && m.capturer != nil {
		m.capturer.Stop()
		if feederDone != nil {
			<-feederDone
		}
	}
	for _, s := range sessions {
		s.Cancel()
	}
}
