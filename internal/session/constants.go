package session

import "time"

const (
	// DefaultQueueSize bounds pending chunks between the capture side and
	// the processing worker. At 10s chunks this is over 5 minutes of
	// backlog before the writer ever blocks.
	DefaultQueueSize = 32

	// DefaultCallTimeout caps a single collaborator call.
	DefaultCallTimeout = 30 * time.Second

	// DefaultEventBuffer sizes the live event stream.
	DefaultEventBuffer = 64
)
