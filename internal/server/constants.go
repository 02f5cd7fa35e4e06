// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// BroadcastTimeout caps a single WebSocket write so one stuck client
	// cannot hold a broadcast goroutine forever.
	BroadcastTimeout = 5 * time.Second

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 5 * time.Second
)
