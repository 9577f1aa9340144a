package stitch

import (
	"fmt"
	"time"
)

// Plan fixes the frame alignment for one run: how many frames to discard
// from each source before the first emitted pair, and how many pairs to
// emit. Computed once before playback begins.
type Plan struct {
	SkipLeft   int `json:"skip_left"`
	SkipRight  int `json:"skip_right"`
	FrameCount int `json:"frame_count"`
}

// NewPlan derives a Plan from verified skip offsets and a requested
// duration at the output frame rate.
func NewPlan(skipLeft, skipRight int, duration time.Duration, frameRate float64) (Plan, error) {
	if skipLeft < 0 || skipRight < 0 {
		return Plan{}, fmt.Errorf("sync plan: skip offsets must be non-negative, got %d/%d", skipLeft, skipRight)
	}
	if frameRate <= 0 {
		return Plan{}, fmt.Errorf("sync plan: frame rate must be positive, got %v", frameRate)
	}
	if duration < 0 {
		return Plan{}, fmt.Errorf("sync plan: duration must be non-negative, got %v", duration)
	}
	return Plan{
		SkipLeft:   skipLeft,
		SkipRight:  skipRight,
		FrameCount: int(duration.Seconds() * frameRate),
	}, nil
}

// PairIndices addresses one synchronized frame pair by each source's
// logical frame index (0 = the stream's first decoded frame).
type PairIndices struct {
	Left  int64
	Right int64
}

// Synchronizer yields paired frame indices advancing in lockstep. The two
// indices always move together; there is no independent drift. Exhaustion
// of an underlying source is the pipeline's concern, not the
// synchronizer's: it only bounds the run to the planned pair count.
type Synchronizer struct {
	plan    Plan
	emitted int
}

// NewSynchronizer returns a synchronizer for the given plan.
func NewSynchronizer(plan Plan) *Synchronizer {
	return &Synchronizer{plan: plan}
}

// Next returns the next frame-index pair, or ok=false after FrameCount
// pairs have been produced.
func (s *Synchronizer) Next() (PairIndices, bool) {
	if s.emitted >= s.plan.FrameCount {
		return PairIndices{}, false
	}
	p := PairIndices{
		Left:  int64(s.plan.SkipLeft + s.emitted),
		Right: int64(s.plan.SkipRight + s.emitted),
	}
	s.emitted++
	return p, true
}

// Emitted returns how many pairs have been produced so far.
func (s *Synchronizer) Emitted() int { return s.emitted }
