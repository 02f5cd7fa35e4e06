package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobkitchen/whonext-core/internal/audio"
	"github.com/bobkitchen/whonext-core/internal/config"
	"github.com/bobkitchen/whonext-core/internal/diarize"
	"github.com/bobkitchen/whonext-core/internal/session"
	"github.com/bobkitchen/whonext-core/internal/transcribe"
)

type stubDiarizer struct{}

func (stubDiarizer) Diarize(context.Context, audio.Chunk) ([]diarize.Segment, error) {
	return nil, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, audio.Chunk) (transcribe.Result, error) {
	return transcribe.Result{Text: "hello there"}, nil
}

func testServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	cfg := &config.Config{
		SampleRate:       100,
		ChunkDuration:    1.0,
		MinChunkDuration: 0.2,
		CallTimeout:      1.0,
	}
	m := session.NewManager(cfg, stubDiarizer{}, stubTranscriber{}, nil)
	t.Cleanup(m.Shutdown)
	return New(m), m
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}

	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Start a session
	resp, err := http.Post(ts.URL+"/api/session/start", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var started map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	resp.Body.Close()
	id := started["session_id"]
	if id == "" {
		t.Fatal("no session_id returned")
	}

	// Progress for a fresh session
	resp, err = http.Get(ts.URL + "/api/session/" + id + "/progress")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	var progress session.Progress
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	resp.Body.Close()
	if progress.TotalChunks != 0 {
		t.Errorf("fresh session progress = %+v", progress)
	}

	// Classification is available from the start
	resp, err = http.Get(ts.URL + "/api/session/" + id + "/classification")
	if err != nil {
		t.Fatalf("classification: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("classification status = %d", resp.StatusCode)
	}

	// Finish and read the result
	resp, err = http.Post(ts.URL+"/api/session/"+id+"/finish", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	var result session.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	resp.Body.Close()
	if result.Transcript != "" {
		t.Errorf("transcript with no audio = %q", result.Transcript)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{
		"/api/session/nope/progress",
		"/api/session/nope/transcript",
		"/api/session/nope/classification",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}

	resp, err := http.Post(ts.URL+"/api/session/nope/finish", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("finish status = %d, want 404", resp.StatusCode)
	}
}

func TestEventToMessage(t *testing.T) {
	chunk := session.TranscriptChunk{Index: 3, StartTime: 27, Duration: 10, Text: "hi", Err: errors.New("boom")}
	msg := eventToMessage(session.Event{Type: session.EventChunk, SessionID: "abc", Chunk: &chunk})
	cm, ok := msg.(ChunkMessage)
	if !ok {
		t.Fatalf("message type = %T", msg)
	}
	if cm.Type != "chunk" || cm.Index != 3 || cm.Error != "boom" {
		t.Errorf("chunk message = %+v", cm)
	}

	cls := diarize.Classification{SpeakerCount: 2, Type: diarize.MeetingOneOnOne, Confidence: 0.8}
	msg = eventToMessage(session.Event{Type: session.EventClassification, SessionID: "abc", Classification: &cls})
	km, ok := msg.(ClassificationMessage)
	if !ok {
		t.Fatalf("message type = %T", msg)
	}
	if km.MeetingType != "one-on-one" || km.SpeakerCount != 2 {
		t.Errorf("classification message = %+v", km)
	}

	if m := eventToMessage(session.Event{Type: "bogus"}); m != nil {
		t.Errorf("unexpected message for bogus event: %+v", m)
	}
}
