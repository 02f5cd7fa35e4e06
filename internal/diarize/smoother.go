package diarize

// TemporalSmooth collapses isolated short spike segments in a finalized
// segment sequence: an interior segment whose neighbors on both sides share
// an identical label different from its own, and whose duration is below
// minDurationForChange, takes its neighbors' label (keeping its own times).
//
// This is deliberately a single left-to-right pass, not a fixed-point
// iteration: a rewritten segment does not re-trigger evaluation of its
// already-visited neighbor. Cascading patterns like A-B-C-A are left to the
// next recomputation. Sequences shorter than 3 are returned unchanged.
//
// The pass is idempotent on clean input and must only run on a finalized
// list, never interleaved with Stabilize.
func TemporalSmooth(segments []Segment, minDurationForChange float64) ([]Segment, int) {
	if minDurationForChange <= 0 {
		minDurationForChange = DefaultMinDurationForChange
	}

	out := make([]Segment, len(segments))
	copy(out, segments)
	if len(out) < 3 {
		return out, 0
	}

	smoothed := 0
	for i := 1; i < len(out)-1; i++ {
		prev, cur, next := out[i-1], out[i], out[i+1]
		if prev.Speaker == next.Speaker &&
			cur.Speaker != prev.Speaker &&
			cur.Duration() < minDurationForChange {
			out[i].Speaker = prev.Speaker
			smoothed++
		}
	}
	return out, smoothed
}
