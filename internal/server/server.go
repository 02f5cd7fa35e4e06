// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/bobkitchen/whonext-core/internal/align"
	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
	"github.com/bobkitchen/whonext-core/internal/session"
	"github.com/bobkitchen/whonext-core/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ChunkMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	StartTime float64         `json:"start_time"`
	Duration  float64         `json:"duration"`
	Text      string          `json:"text"`
	Segments  []align.Segment `json:"segments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type ClassificationMessage struct {
	Type         string  `json:"type"`
	SessionID    string  `json:"session_id"`
	SpeakerCount int     `json:"speaker_count"`
	MeetingType  string  `json:"meeting_type"`
	Confidence   float64 `json:"confidence"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	manager *session.Manager
	mu      sync.RWMutex
	conns   map[*websocket.Conn]struct{}
}

// New creates a new server and starts the event broadcaster.
func New(manager *session.Manager) *Server {
	s := &Server{
		manager: manager,
		conns:   make(map[*websocket.Conn]struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/session/{id}/finish", s.handleSessionFinish)
	mux.HandleFunc("POST /api/session/{id}/reset", s.handleSessionReset)
	mux.HandleFunc("GET /api/session/{id}/progress", s.handleProgress)
	mux.HandleFunc("GET /api/session/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/session/{id}/classification", s.handleClassification)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsCode(err, apperrors.InvalidArgument) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// lookup resolves the {id} path segment to a session or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, ok := s.manager.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session: " + id})
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.StartSession(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	trace.Logger(r.Context()).Info("session started via api", "session_id", sess.ID)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleSessionFinish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.manager.FinishSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Progress())
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transcript": sess.Transcript(),
		"chunks":     sess.Chunks(),
	})
}

func (s *Server) handleClassification(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Classification())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// The stream is broadcast-only; read until the client goes away.
	for {
		var msg json.RawMessage
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}
	}
}

func (s *Server) broadcastEvents() {
	for ev := range s.manager.Events() {
		msg := eventToMessage(ev)
		if msg == nil {
			continue
		}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), BroadcastTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func eventToMessage(ev session.Event) any {
	switch ev.Type {
	case session.EventChunk:
		m := ChunkMessage{
			Type:      "chunk",
			SessionID: ev.SessionID,
			Index:     ev.Chunk.Index,
			StartTime: ev.Chunk.StartTime,
			Duration:  ev.Chunk.Duration,
			Text:      ev.Chunk.Text,
			Segments:  ev.Chunk.Segments,
		}
		if ev.Chunk.Err != nil {
			m.Error = ev.Chunk.Err.Error()
		}
		return m
	case session.EventClassification:
		return ClassificationMessage{
			Type:         "classification",
			SessionID:    ev.SessionID,
			SpeakerCount: ev.Classification.SpeakerCount,
			MeetingType:  ev.Classification.Type.String(),
			Confidence:   ev.Classification.Confidence,
		}
	default:
		return nil
	}
}
