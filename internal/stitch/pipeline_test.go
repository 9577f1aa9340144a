package stitch

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpano/unwarp/internal/fisheye"
)

const (
	pipeSrcW = 32
	pipeSrcH = 32
	pipeOutW = 16
	pipeOutH = 8
)

// fakeSource serves a fixed number of solid-colour frames.
type fakeSource struct {
	total int
	next  int
	fill  byte
}

func (s *fakeSource) ReadFrame(f *fisheye.Frame) error {
	if s.next >= s.total {
		return io.EOF
	}
	for i := range f.Pix {
		f.Pix[i] = s.fill
	}
	f.Index = int64(s.next)
	s.next++
	return nil
}

func (s *fakeSource) Skip(n int) error {
	s.next += n
	if s.next > s.total {
		s.next = s.total
		return io.EOF
	}
	return nil
}

// collectSink records merged frame indices and verifies dimensions.
type collectSink struct {
	t       *testing.T
	indices []int64
}

func (c *collectSink) WriteFrame(f *fisheye.Frame) error {
	if f.Width != pipeOutW || f.Height != pipeOutH {
		c.t.Fatalf("sink got %dx%d frame, want %dx%d", f.Width, f.Height, pipeOutW, pipeOutH)
	}
	c.indices = append(c.indices, f.Index)
	return nil
}

type failSink struct{ err error }

func (f *failSink) WriteFrame(*fisheye.Frame) error { return f.err }

func testPipeline(t *testing.T, plan Plan) *Pipeline {
	t.Helper()
	p := fisheye.Profile{CenterX: 16, CenterY: 16, Radius: 15, FOVDeg: 200}

	left, err := fisheye.BuildPixelMap(p, pipeSrcW, pipeSrcH, pipeOutW, pipeOutH, fisheye.HemisphereLeft, fisheye.DefaultMapConfig())
	require.NoError(t, err)
	right, err := fisheye.BuildPixelMap(p, pipeSrcW, pipeSrcH, pipeOutW, pipeOutH, fisheye.HemisphereRight, fisheye.DefaultMapConfig())
	require.NoError(t, err)
	comp, err := fisheye.NewCompositor(left, right)
	require.NoError(t, err)
	require.NoError(t, comp.Validate())

	pipe, err := New(Config{
		LeftMap:    left,
		RightMap:   right,
		Compositor: comp,
		Plan:       plan,
	})
	require.NoError(t, err)
	return pipe
}

func TestPipeline_FullRun(t *testing.T) {
	pipe := testPipeline(t, Plan{SkipLeft: 2, SkipRight: 0, FrameCount: 5})
	sink := &collectSink{t: t}

	res, err := pipe.Run(context.Background(),
		&fakeSource{total: 100, fill: 200},
		&fakeSource{total: 100, fill: 40},
		sink)
	require.NoError(t, err)

	assert.Equal(t, 5, res.FramesWritten)
	assert.False(t, res.Truncated)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, sink.indices, "merged frames carry output ordinals")
	assert.EqualValues(t, 10, res.Stats.FramesRemapped, "two hemispheres per pair")
	assert.EqualValues(t, 5, res.Stats.FramesMerged)
	assert.Len(t, res.Timings, 5)
}

// TestPipeline_Truncation: a source that runs dry ends the run early with
// a truncation result, not an error and not fabricated frames.
func TestPipeline_Truncation(t *testing.T) {
	pipe := testPipeline(t, Plan{SkipLeft: 0, SkipRight: 0, FrameCount: 300})
	sink := &collectSink{t: t}

	res, err := pipe.Run(context.Background(),
		&fakeSource{total: 100, fill: 10},
		&fakeSource{total: 400, fill: 20},
		sink)
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 100, res.FramesWritten)
	assert.Len(t, sink.indices, 100)
	assert.True(t, res.Stats.Truncated)
}

// TestPipeline_SkipExhaustsSource: skipping past the end of a stream is a
// zero-frame truncation.
func TestPipeline_SkipExhaustsSource(t *testing.T) {
	pipe := testPipeline(t, Plan{SkipLeft: 50, SkipRight: 0, FrameCount: 10})
	sink := &collectSink{t: t}

	res, err := pipe.Run(context.Background(),
		&fakeSource{total: 20, fill: 10},
		&fakeSource{total: 20, fill: 20},
		sink)
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Zero(t, res.FramesWritten)
	assert.Empty(t, sink.indices)
}

func TestPipeline_Cancelled(t *testing.T) {
	pipe := testPipeline(t, Plan{FrameCount: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := pipe.Run(ctx,
		&fakeSource{total: 2000},
		&fakeSource{total: 2000},
		&collectSink{t: t})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.FramesWritten)
}

func TestPipeline_SinkError(t *testing.T) {
	pipe := testPipeline(t, Plan{FrameCount: 10})
	wantErr := errors.New("disk full")

	_, err := pipe.Run(context.Background(),
		&fakeSource{total: 100},
		&fakeSource{total: 100},
		&failSink{err: wantErr})
	assert.ErrorIs(t, err, wantErr)
}

func TestPipeline_OnFrameHook(t *testing.T) {
	p := fisheye.Profile{CenterX: 16, CenterY: 16, Radius: 15, FOVDeg: 200}
	left, err := fisheye.BuildPixelMap(p, pipeSrcW, pipeSrcH, pipeOutW, pipeOutH, fisheye.HemisphereLeft, fisheye.DefaultMapConfig())
	require.NoError(t, err)
	right, err := fisheye.BuildPixelMap(p, pipeSrcW, pipeSrcH, pipeOutW, pipeOutH, fisheye.HemisphereRight, fisheye.DefaultMapConfig())
	require.NoError(t, err)
	comp, err := fisheye.NewCompositor(left, right)
	require.NoError(t, err)

	seen := 0
	pipe, err := New(Config{
		LeftMap:    left,
		RightMap:   right,
		Compositor: comp,
		Plan:       Plan{FrameCount: 3},
		OnFrame:    func(*fisheye.Frame) { seen++ },
	})
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(),
		&fakeSource{total: 10},
		&fakeSource{total: 10},
		&collectSink{t: t})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing maps")
	}
}
