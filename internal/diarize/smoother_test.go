package diarize

import "testing"

// Reference vector: (A,0,1),(B,1,1.3),(A,1.3,2.5) with threshold 0.5 —
// the 0.3s middle spike flanked by A on both sides is rewritten to A.
func TestSmoothReferenceVector(t *testing.T) {
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 1.3},
		{Speaker: "A", Start: 1.3, End: 2.5},
	}
	out, n := TemporalSmooth(segs, 0.5)

	assertLabels(t, out, []string{"A", "A", "A"})
	if n != 1 {
		t.Errorf("smoothed count = %d, want 1", n)
	}
	// Times are kept, only the label changes
	if out[1].Start != 1 || out[1].End != 1.3 {
		t.Errorf("spike times changed: %+v", out[1])
	}
}

func TestSmoothLongSegmentKept(t *testing.T) {
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 2}, // 1s, above threshold
		{Speaker: "A", Start: 2, End: 3},
	}
	out, n := TemporalSmooth(segs, 0.5)

	assertLabels(t, out, []string{"A", "B", "A"})
	if n != 0 {
		t.Errorf("smoothed count = %d, want 0", n)
	}
}

func TestSmoothDifferentNeighborsKept(t *testing.T) {
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 1.2},
		{Speaker: "C", Start: 1.2, End: 2},
	}
	out, n := TemporalSmooth(segs, 0.5)

	assertLabels(t, out, []string{"A", "B", "C"})
	if n != 0 {
		t.Errorf("smoothed count = %d, want 0", n)
	}
}

func TestSmoothIdempotentOnCleanInput(t *testing.T) {
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 2},
		{Speaker: "B", Start: 2, End: 4},
		{Speaker: "A", Start: 4, End: 6},
		{Speaker: "B", Start: 6, End: 8},
	}
	out, n := TemporalSmooth(segs, 0.5)

	assertLabels(t, out, labelsOf(segs))
	if n != 0 {
		t.Errorf("smoothed count = %d, want 0", n)
	}
}

func TestSmoothShortSequencesUnchanged(t *testing.T) {
	for _, segs := range [][]Segment{
		nil,
		{{Speaker: "A", Start: 0, End: 0.1}},
		{{Speaker: "A", Start: 0, End: 0.1}, {Speaker: "B", Start: 0.1, End: 0.2}},
	} {
		out, n := TemporalSmooth(segs, 0.5)
		if len(out) != len(segs) || n != 0 {
			t.Errorf("sequence of %d should be unchanged, smoothed %d", len(segs), n)
		}
	}
}

func TestSmoothSinglePass(t *testing.T) {
	// A-B-C-A with B and C both short: one pass rewrites neither (B's
	// neighbors are A and C; after no rewrite, C's neighbors are B and A).
	// Cascading collapse is deliberately not performed.
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 1.2},
		{Speaker: "C", Start: 1.2, End: 1.4},
		{Speaker: "A", Start: 1.4, End: 2.5},
	}
	out, _ := TemporalSmooth(segs, 0.5)
	assertLabels(t, out, []string{"A", "B", "C", "A"})
}

func TestSmoothConsecutiveSpikes(t *testing.T) {
	// A-B-A-B-A with short B's: both spikes rewritten in one pass, the
	// second evaluation seeing the already-rewritten left neighbor.
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 1.2},
		{Speaker: "A", Start: 1.2, End: 2.2},
		{Speaker: "B", Start: 2.2, End: 2.4},
		{Speaker: "A", Start: 2.4, End: 3.4},
	}
	out, n := TemporalSmooth(segs, 0.5)

	assertLabels(t, out, []string{"A", "A", "A", "A", "A"})
	if n != 2 {
		t.Errorf("smoothed count = %d, want 2", n)
	}
}

func TestSmoothDoesNotMutateInput(t *testing.T) {
	segs := []Segment{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 1, End: 1.3},
		{Speaker: "A", Start: 1.3, End: 2.5},
	}
	_, _ = TemporalSmooth(segs, 0.5)

	if segs[1].Speaker != "B" {
		t.Error("input slice was mutated")
	}
}
