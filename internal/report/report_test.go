package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpano/unwarp/internal/fisheye"
	"github.com/openpano/unwarp/internal/fsutil"
	"github.com/openpano/unwarp/internal/stitch"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func testRun() *Run {
	run := NewRun("ch01.mp4", "ch02.mp4", "out.mp4")
	run.Coverage = fisheye.CoverageReport{OutputPixels: 100, LeftOnly: 40, RightOnly: 40, Blended: 20}
	run.Stats = stitch.StatsSnapshot{FramesRemapped: 6, FramesMerged: 3, AvgRemapMillis: 2.5, AvgMergeMillis: 1.0}
	run.Timings = []stitch.FrameTiming{
		{Index: 0, RemapMs: 2.4, MergeMs: 1.1},
		{Index: 1, RemapMs: 2.6, MergeMs: 0.9},
		{Index: 2, RemapMs: 2.5, MergeMs: 1.0},
	}
	run.WeightProfile = []float64{1, 1, 0.75, 0.5, 0.25, 0, 0}
	return run
}

func TestWrite(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	run := testRun()

	require.NoError(t, Write(mfs, "/reports/run1", run))

	html, err := mfs.ReadFile("/reports/run1/timings.html")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(html), "remap"), "timing chart should name the remap series")
	require.True(t, strings.Contains(string(html), "merge"), "timing chart should name the merge series")

	png, err := mfs.ReadFile("/reports/run1/seam_weights.png")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, pngMagic), "seam profile should be a PNG")

	raw, err := mfs.ReadFile("/reports/run1/run.json")
	require.NoError(t, err)
	var decoded Run
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, run.ID, decoded.ID)
	require.Equal(t, run.Stats, decoded.Stats)
	require.Len(t, decoded.Timings, 3)
}

func TestWrite_NoWeightProfile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	run := testRun()
	run.WeightProfile = nil

	require.NoError(t, Write(mfs, "/reports/run2", run))

	if mfs.Exists("/reports/run2/seam_weights.png") {
		t.Error("seam profile should be skipped without weight data")
	}
	require.True(t, mfs.Exists("/reports/run2/run.json"))
}

func TestNewRun(t *testing.T) {
	a := NewRun("l", "r", "o")
	b := NewRun("l", "r", "o")
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, "l", a.LeftPath)
	require.False(t, a.CreatedAt.IsZero())
}
