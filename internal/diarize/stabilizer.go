package diarize

import "sync"

// Stats holds cumulative stabilizer counters. Diagnostic only; they never
// influence stabilization decisions. SmoothedSegments is filled in by the
// session from TemporalSmooth results since smoothing is a separate pass.
type Stats struct {
	StableSegments         int `json:"stable_segments"`
	PendingChanges         int `json:"pending_changes"`
	CommittedChanges       int `json:"committed_changes"`
	SuppressedChanges      int `json:"suppressed_changes"`
	ShortSegmentsInherited int `json:"short_segments_inherited"`
	SmoothedSegments       int `json:"smoothed_segments"`
}

// Stabilizer smooths the raw per-segment speaker label stream with a
// hysteresis rule: a new label must be observed RequiredConsecutive times
// in a row before it replaces the current stable label. One instance per
// session; all state is guarded by the lock.
type Stabilizer struct {
	requiredConsecutive int
	inheritFloor        float64

	mu           sync.Mutex
	pendingLabel string
	pendingCount int
	lastStable   string
	stats        Stats
}

// NewStabilizer creates a stabilizer. Zero arguments fall back to defaults.
func NewStabilizer(requiredConsecutive int, inheritFloor float64) *Stabilizer {
	if requiredConsecutive <= 0 {
		requiredConsecutive = DefaultRequiredConsecutive
	}
	if inheritFloor <= 0 {
		inheritFloor = DefaultInheritFloor
	}
	return &Stabilizer{
		requiredConsecutive: requiredConsecutive,
		inheritFloor:        inheritFloor,
	}
}

// Stabilize feeds one raw label observation and returns the stabilized
// label. currentLabel is the caller's view of the stable label; when empty,
// the raw label seeds it. Empty raw labels are a no-op.
func (s *Stabilizer) Stabilize(rawLabel, currentLabel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stabilizeLocked(rawLabel, currentLabel)
}

func (s *Stabilizer) stabilizeLocked(rawLabel, currentLabel string) string {
	if rawLabel == "" {
		return currentLabel
	}

	current := currentLabel
	if current == "" {
		current = rawLabel
	}

	switch {
	case rawLabel == current:
		// Raw agrees with stable: clear any pending change.
		s.pendingLabel = ""
		s.pendingCount = 0
		s.lastStable = current
		s.stats.StableSegments++
		return current

	case rawLabel == s.pendingLabel:
		s.pendingCount++
		if s.pendingCount >= s.requiredConsecutive {
			// Commit the change.
			s.pendingLabel = ""
			s.pendingCount = 0
			s.lastStable = rawLabel
			s.stats.CommittedChanges++
			return rawLabel
		}
		s.stats.SuppressedChanges++
		return current

	default:
		// A label different from both stable and pending restarts the
		// count; evidence never accumulates across label changes. With
		// requiredConsecutive of 1 the first observation is already
		// enough, so commit immediately.
		s.pendingLabel = rawLabel
		s.pendingCount = 1
		if s.pendingCount >= s.requiredConsecutive {
			s.pendingLabel = ""
			s.pendingCount = 0
			s.lastStable = rawLabel
			s.stats.CommittedChanges++
			return rawLabel
		}
		s.stats.PendingChanges++
		s.stats.SuppressedChanges++
		return current
	}
}

// StabilizeSequence applies the hysteresis rule per-segment in temporal
// order. Segments shorter than the inherit floor carry too little evidence
// to be stabilized independently; they inherit the current stable label
// outright without touching the pending counter.
func (s *Stabilizer) StabilizeSequence(segments []Segment) []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg

		if seg.Duration() < s.inheritFloor && s.lastStable != "" {
			out[i].Speaker = s.lastStable
			s.stats.ShortSegmentsInherited++
			continue
		}

		out[i].Speaker = s.stabilizeLocked(seg.Speaker, s.lastStable)
	}
	return out
}

// Reset clears per-session state and counters.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingLabel = ""
	s.pendingCount = 0
	s.lastStable = ""
	s.stats = Stats{}
}

// Stats returns a snapshot of the cumulative counters.
func (s *Stabilizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// CurrentLabel returns the last committed stable label, if any.
func (s *Stabilizer) CurrentLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStable
}
