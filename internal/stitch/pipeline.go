package stitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openpano/unwarp/internal/fisheye"
)

// FrameSource supplies decoded fisheye frames in stream order. ReadFrame
// fills the caller's buffer and returns io.EOF once the stream is
// exhausted; Skip discards n frames from the current position.
type FrameSource interface {
	ReadFrame(f *fisheye.Frame) error
	Skip(n int) error
}

// FrameSink consumes merged equirectangular frames in output order. The
// sink must not retain the frame after WriteFrame returns.
type FrameSink interface {
	WriteFrame(f *fisheye.Frame) error
}

// FrameTiming records per-pair stage durations for the run report.
type FrameTiming struct {
	Index   int64   `json:"index"`
	RemapMs float64 `json:"remap_ms"`
	MergeMs float64 `json:"merge_ms"`
}

// Config wires one stitching run.
type Config struct {
	LeftMap    *fisheye.PixelMap
	RightMap   *fisheye.PixelMap
	Compositor *fisheye.Compositor
	Plan       Plan

	// RemapWorkers is the per-hemisphere row-band parallelism; <= 0
	// selects GOMAXPROCS.
	RemapWorkers int

	// QueueDepth bounds the per-hemisphere handoff channel. Defaults
	// to 2: enough to keep both workers busy without buffering the run.
	QueueDepth int

	// OnFrame, when set, observes each merged frame before it reaches
	// the sink. Used for preview capture. Must not retain the frame.
	OnFrame func(f *fisheye.Frame)
}

// Result reports how a run ended. Truncated is set when an input stream
// ran out before the planned frame count; it is an outcome, not an error.
type Result struct {
	FramesWritten int
	Truncated     bool
	Stats         StatsSnapshot
	Timings       []FrameTiming
}

// Pipeline runs the two-hemisphere remap/composite pipeline. The pixel
// maps and compositor are shared read-only across workers; each frame
// buffer is owned by exactly one stage at a time and handed off through
// bounded channels.
type Pipeline struct {
	cfg      Config
	remapper *fisheye.Remapper
	stats    RunStats
}

// remapped carries one remapped hemisphere frame and the time its remap
// took, from a camera worker to the join stage.
type remapped struct {
	frame *fisheye.Frame
	took  time.Duration
}

// New validates the wiring and returns a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.LeftMap == nil || cfg.RightMap == nil {
		return nil, errors.New("pipeline: both pixel maps are required")
	}
	if cfg.Compositor == nil {
		return nil, errors.New("pipeline: compositor is required")
	}
	if cfg.LeftMap.Width != cfg.RightMap.Width || cfg.LeftMap.Height != cfg.RightMap.Height {
		return nil, fmt.Errorf("pipeline: map resolutions differ: %dx%d vs %dx%d",
			cfg.LeftMap.Width, cfg.LeftMap.Height, cfg.RightMap.Width, cfg.RightMap.Height)
	}
	if cfg.Plan.FrameCount < 0 || cfg.Plan.SkipLeft < 0 || cfg.Plan.SkipRight < 0 {
		return nil, fmt.Errorf("pipeline: invalid plan %+v", cfg.Plan)
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 2
	}
	return &Pipeline{
		cfg:      cfg,
		remapper: fisheye.NewRemapper(cfg.RemapWorkers),
	}, nil
}

// Run executes the plan against the two sources and writes merged frames
// to the sink. Cancellation takes effect at frame-pair boundaries. An
// exhausted source ends the run early with Result.Truncated set; only
// genuine failures return a non-nil error.
func (p *Pipeline) Run(ctx context.Context, left, right FrameSource, sink FrameSink) (Result, error) {
	res := Result{}
	plan := p.cfg.Plan

	if err := left.Skip(plan.SkipLeft); err != nil {
		if errors.Is(err, io.EOF) {
			Logf("left stream exhausted during skip of %d frames", plan.SkipLeft)
			p.stats.setTruncated()
			res.Truncated = true
			res.Stats = p.stats.Snapshot()
			return res, nil
		}
		return res, fmt.Errorf("skip left: %w", err)
	}
	if err := right.Skip(plan.SkipRight); err != nil {
		if errors.Is(err, io.EOF) {
			Logf("right stream exhausted during skip of %d frames", plan.SkipRight)
			p.stats.setTruncated()
			res.Truncated = true
			res.Stats = p.stats.Snapshot()
			return res, nil
		}
		return res, fmt.Errorf("skip right: %w", err)
	}

	outW, outH := p.cfg.LeftMap.Width, p.cfg.LeftMap.Height
	pool := &sync.Pool{New: func() any { return fisheye.NewFrame(outW, outH) }}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	leftCh := make(chan remapped, p.cfg.QueueDepth)
	rightCh := make(chan remapped, p.cfg.QueueDepth)

	g.Go(func() error {
		defer close(leftCh)
		return p.cameraWorker(gctx, p.cfg.LeftMap, left, leftCh, pool)
	})
	g.Go(func() error {
		defer close(rightCh)
		return p.cameraWorker(gctx, p.cfg.RightMap, right, rightCh, pool)
	})

	merged := fisheye.NewFrame(outW, outH)
	pairs := NewSynchronizer(plan)
	var joinErr error

	for {
		if _, ok := pairs.Next(); !ok {
			break
		}
		if err := gctx.Err(); err != nil {
			// Cancellation is honoured between pairs, never mid-frame.
			joinErr = err
			break
		}

		lf, lok := <-leftCh
		rf, rok := <-rightCh
		if !lok || !rok {
			if lok {
				pool.Put(lf.frame)
			}
			if rok {
				pool.Put(rf.frame)
			}
			p.stats.setTruncated()
			res.Truncated = true
			Logf("input exhausted after %d of %d pairs", res.FramesWritten, plan.FrameCount)
			break
		}

		start := time.Now()
		err := p.cfg.Compositor.Merge(lf.frame, rf.frame, merged)
		mergeTook := time.Since(start)
		pool.Put(lf.frame)
		pool.Put(rf.frame)
		if err != nil {
			joinErr = fmt.Errorf("merge pair %d: %w", res.FramesWritten, err)
			break
		}
		p.stats.addMerge(mergeTook)

		remapMs := float64(max(lf.took, rf.took)) / float64(time.Millisecond)
		res.Timings = append(res.Timings, FrameTiming{
			Index:   merged.Index,
			RemapMs: remapMs,
			MergeMs: float64(mergeTook) / float64(time.Millisecond),
		})

		if p.cfg.OnFrame != nil {
			p.cfg.OnFrame(merged)
		}
		if err := sink.WriteFrame(merged); err != nil {
			joinErr = fmt.Errorf("write pair %d: %w", res.FramesWritten, err)
			break
		}
		res.FramesWritten++
	}

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && joinErr == nil {
		joinErr = err
	}

	res.Stats = p.stats.Snapshot()
	if joinErr != nil && errors.Is(joinErr, context.Canceled) && ctx.Err() == nil {
		joinErr = nil
	}
	return res, joinErr
}

// cameraWorker reads, remaps and hands off up to FrameCount frames for
// one hemisphere. Each handed-off frame is owned by the join stage until
// it returns the buffer to the pool.
func (p *Pipeline) cameraWorker(ctx context.Context, pm *fisheye.PixelMap, src FrameSource, out chan<- remapped, pool *sync.Pool) error {
	buf := fisheye.NewFrame(pm.SrcWidth, pm.SrcHeight)

	for i := 0; i < p.cfg.Plan.FrameCount; i++ {
		if err := src.ReadFrame(buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s camera read: %w", pm.Hemisphere, err)
		}

		dst := pool.Get().(*fisheye.Frame)
		start := time.Now()
		if err := p.remapper.Remap(pm, buf, dst); err != nil {
			pool.Put(dst)
			return fmt.Errorf("%s camera remap: %w", pm.Hemisphere, err)
		}
		took := time.Since(start)
		p.stats.addRemap(took)
		// Label with the output pair ordinal so the compositor's
		// lockstep check compares positions, not per-stream indices.
		dst.Index = int64(i)

		select {
		case out <- remapped{frame: dst, took: took}:
		case <-ctx.Done():
			pool.Put(dst)
			return ctx.Err()
		}
	}
	return nil
}
