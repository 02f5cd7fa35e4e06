package diarize

// Stabilization and classification constants
const (
	// Consecutive corroborating observations required before a speaker
	// change commits.
	DefaultRequiredConsecutive = 2

	// Segments shorter than this inherit the stable label outright
	// instead of feeding the hysteresis counter (seconds).
	DefaultInheritFloor = 0.3

	// Interior spike segments shorter than this are rewritten to match
	// their neighbors (seconds).
	DefaultMinDurationForChange = 0.5

	// Classifier confidence normalization
	durationNormSeconds = 60.0
	segmentCountNorm    = 20.0

	// Classifier confidence weights
	durationWeight     = 0.4
	separationWeight   = 0.4
	segmentCountWeight = 0.2
)
