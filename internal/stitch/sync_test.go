package stitch

import (
	"testing"
	"time"
)

// TestSynchronizer_Lockstep checks the canonical alignment case: skips of
// 936 and 0 with 300 pairs yield (936,0) through (1235,299), then end.
func TestSynchronizer_Lockstep(t *testing.T) {
	plan, err := NewPlan(936, 0, 12500*time.Millisecond, 24)
	if err != nil {
		t.Fatal(err)
	}
	if plan.FrameCount != 300 {
		t.Fatalf("FrameCount = %d, want 300", plan.FrameCount)
	}

	s := NewSynchronizer(plan)
	for i := 0; i < 300; i++ {
		p, ok := s.Next()
		if !ok {
			t.Fatalf("Next() ended early at pair %d", i)
		}
		if p.Left != int64(936+i) || p.Right != int64(i) {
			t.Fatalf("pair %d = (%d, %d), want (%d, %d)", i, p.Left, p.Right, 936+i, i)
		}
	}
	if _, ok := s.Next(); ok {
		t.Error("Next() produced a pair past the planned count")
	}
	if s.Emitted() != 300 {
		t.Errorf("Emitted() = %d, want 300", s.Emitted())
	}
}

func TestSynchronizer_ZeroCount(t *testing.T) {
	s := NewSynchronizer(Plan{SkipLeft: 5, SkipRight: 9})
	if _, ok := s.Next(); ok {
		t.Error("zero-count plan must produce no pairs")
	}
}

func TestNewPlan_Validation(t *testing.T) {
	cases := map[string]struct {
		skipL, skipR int
		dur          time.Duration
		rate         float64
	}{
		"negative left skip":  {-1, 0, time.Second, 24},
		"negative right skip": {0, -3, time.Second, 24},
		"zero frame rate":     {0, 0, time.Second, 0},
		"negative duration":   {0, 0, -time.Second, 24},
	}
	for name, c := range cases {
		if _, err := NewPlan(c.skipL, c.skipR, c.dur, c.rate); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNewPlan_FrameCount(t *testing.T) {
	plan, err := NewPlan(0, 0, 10*time.Second, 23.976)
	if err != nil {
		t.Fatal(err)
	}
	if plan.FrameCount != 239 {
		t.Errorf("FrameCount = %d, want 239 (truncated, never fabricated)", plan.FrameCount)
	}
}
