package archive

import (
	"fmt"
	"time"
)

// Match pairs a recording with the seek information needed to start
// reading it at a wall-clock target. Lag is truncated to whole seconds
// before converting to frames, matching the one-second granularity of
// the recording timestamps.
type Match struct {
	Recording
	Lag        time.Duration `json:"lag"`
	SkipFrames int           `json:"skip_frames"`
}

// FindNearest picks the latest recording on channel starting at or
// before target from an in-memory scan result.
func FindNearest(recs []Recording, channel int, target time.Time, fps int) (Match, error) {
	var best *Recording
	for i := range recs {
		rec := &recs[i]
		if rec.Channel != channel || rec.StartTime.After(target) {
			continue
		}
		if best == nil || rec.StartTime.After(best.StartTime) {
			best = rec
		}
	}
	if best == nil {
		return Match{}, fmt.Errorf("channel %d: %w", channel, ErrNoRecording)
	}
	return newMatch(*best, target, fps), nil
}

func newMatch(rec Recording, target time.Time, fps int) Match {
	lag := target.Sub(rec.StartTime)
	return Match{
		Recording:  rec,
		Lag:        lag,
		SkipFrames: int(lag/time.Second) * fps,
	}
}

// MatchChannels resolves one match per requested channel, in order.
func MatchChannels(recs []Recording, channels []int, target time.Time, fps int) ([]Match, error) {
	matches := make([]Match, 0, len(channels))
	for _, ch := range channels {
		m, err := FindNearest(recs, ch, target, fps)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Pair is a left/right match ready to feed the stitcher.
type Pair struct {
	Left  Match
	Right Match
}

// Normalized returns a copy with the common minimum skip subtracted
// from both sides, so the earlier-started stream carries only the
// differential skip and playback begins at the start of the later file.
func (p Pair) Normalized() Pair {
	min := p.Left.SkipFrames
	if p.Right.SkipFrames < min {
		min = p.Right.SkipFrames
	}
	out := p
	out.Left.SkipFrames -= min
	out.Right.SkipFrames -= min
	return out
}
