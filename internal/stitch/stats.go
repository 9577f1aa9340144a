package stitch

import (
	"sync"
	"time"
)

// RunStats accumulates pipeline counters for one run. Safe for concurrent
// update from the hemisphere workers and the join stage.
type RunStats struct {
	mu sync.RWMutex

	framesRemapped int64
	framesMerged   int64
	remapTime      time.Duration
	mergeTime      time.Duration
	truncated      bool
}

// StatsSnapshot is a point-in-time copy of the run counters.
type StatsSnapshot struct {
	FramesRemapped int64   `json:"frames_remapped"`
	FramesMerged   int64   `json:"frames_merged"`
	AvgRemapMillis float64 `json:"avg_remap_ms"`
	AvgMergeMillis float64 `json:"avg_merge_ms"`
	Truncated      bool    `json:"truncated"`
}

func (s *RunStats) addRemap(d time.Duration) {
	s.mu.Lock()
	s.framesRemapped++
	s.remapTime += d
	s.mu.Unlock()
}

func (s *RunStats) addMerge(d time.Duration) {
	s.mu.Lock()
	s.framesMerged++
	s.mergeTime += d
	s.mu.Unlock()
}

func (s *RunStats) setTruncated() {
	s.mu.Lock()
	s.truncated = true
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with averaged stage timings.
func (s *RunStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		FramesRemapped: s.framesRemapped,
		FramesMerged:   s.framesMerged,
		Truncated:      s.truncated,
	}
	if s.framesRemapped > 0 {
		snap.AvgRemapMillis = float64(s.remapTime) / float64(time.Millisecond) / float64(s.framesRemapped)
	}
	if s.framesMerged > 0 {
		snap.AvgMergeMillis = float64(s.mergeTime) / float64(time.Millisecond) / float64(s.framesMerged)
	}
	return snap
}
