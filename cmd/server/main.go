// Meeting pipeline server - chunks captured audio, coordinates diarization
// and transcription, and serves live transcripts over HTTP/WebSocket.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobkitchen/whonext-core/internal/audio"
	"github.com/bobkitchen/whonext-core/internal/config"
	"github.com/bobkitchen/whonext-core/internal/diarize"
	"github.com/bobkitchen/whonext-core/internal/server"
	"github.com/bobkitchen/whonext-core/internal/session"
	"github.com/bobkitchen/whonext-core/internal/transcribe"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()
	callTimeout := time.Duration(cfg.CallTimeout * float64(time.Second))

	diarizer := diarize.NewClient(cfg.DiarizeURL, cfg.SampleRate, callTimeout)
	transcriber := transcribe.NewClient(cfg.TranscribeURL, cfg.SampleRate, callTimeout)

	var capturer session.Capturer
	if cfg.CaptureEnabled {
		c, err := audio.NewCapturer(cfg.SampleRate, audio.FramesPerBuffer, cfg.ExcludedAudioDevices)
		if err != nil {
			slog.Error("failed to initialize audio capture", "error", err)
			os.Exit(1)
		}
		capturer = c
	}

	manager := session.NewManager(cfg, diarizer, transcriber, capturer)
	srv := server.New(manager)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("pipeline server starting",
			"http", cfg.HTTPAddr, "diarize", cfg.DiarizeURL, "transcribe", cfg.TranscribeURL,
			"capture", cfg.CaptureEnabled)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	manager.Shutdown()
	slog.Info("shutdown complete")
}
