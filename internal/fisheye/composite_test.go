package fisheye

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Output grid chosen so that longitude +90 degrees and the equator land
// exactly on pixel centers: u=193, v=64.
const (
	seamTestW   = 258
	seamTestH   = 129
	seamTestU   = 193
	seamTestRow = 64
)

func buildTestPair(t *testing.T, fovDeg float64) (*PixelMap, *PixelMap) {
	t.Helper()
	p := Profile{CenterX: 128, CenterY: 128, Radius: 120, FOVDeg: fovDeg}

	left, err := BuildPixelMap(p, testSrcW, testSrcH, seamTestW, seamTestH, HemisphereLeft, DefaultMapConfig())
	require.NoError(t, err)
	right, err := BuildPixelMap(p, testSrcW, testSrcH, seamTestW, seamTestH, HemisphereRight, DefaultMapConfig())
	require.NoError(t, err)
	return left, right
}

func solidFrame(w, h int, value byte) *Frame {
	f := NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = value
	}
	return f
}

// TestCompositor_SeamMidpointWeight: for two identical 200 degree
// profiles the blend weight at the exact seam midpoint is 0.5 per side.
func TestCompositor_SeamMidpointWeight(t *testing.T) {
	left, right := buildTestPair(t, 200)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)
	require.NoError(t, comp.Validate())

	profile := comp.WeightProfile(seamTestRow)
	require.Len(t, profile, seamTestW)
	assert.InDelta(t, 0.5, profile[seamTestU], 1e-6,
		"seam midpoint should split evenly between hemispheres")

	// Cross-fading white against black lands on the midpoint grey.
	white := solidFrame(seamTestW, seamTestH, 255)
	black := solidFrame(seamTestW, seamTestH, 0)
	dst := NewFrame(seamTestW, seamTestH)
	require.NoError(t, comp.Merge(white, black, dst))

	got := dst.Pix[dst.Offset(seamTestU, seamTestRow)]
	if got != 127 && got != 128 {
		t.Errorf("seam midpoint sample = %d, want 127 or 128", got)
	}
}

// TestCompositor_WeightMonotonicAcrossSeam: walking across the seam band
// the left weight falls off without steps back up.
func TestCompositor_WeightMonotonicAcrossSeam(t *testing.T) {
	left, right := buildTestPair(t, 200)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	profile := comp.WeightProfile(seamTestRow)
	// Longitude 0 is left-camera center, longitude 180 is right-camera
	// center; scan the quarter turn between them.
	start := seamTestW / 2 // lon ~ 0
	for u := start + 1; u < seamTestW; u++ {
		if profile[u] > profile[u-1]+1e-9 {
			t.Fatalf("left weight rises from %v to %v at column %d", profile[u-1], profile[u], u)
		}
	}
}

func TestCompositor_FullCoverage(t *testing.T) {
	left, right := buildTestPair(t, 200)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	rep := comp.Report()
	assert.Equal(t, seamTestW*seamTestH, rep.OutputPixels)
	assert.Zero(t, rep.Gaps)
	assert.Positive(t, rep.Blended)
	assert.Positive(t, rep.LeftOnly)
	assert.Positive(t, rep.RightOnly)
	assert.Equal(t, rep.OutputPixels, rep.LeftOnly+rep.RightOnly+rep.Blended+rep.Gaps)
}

// TestCompositor_HardCut: fields of view summing to exactly 360 degrees
// degenerate to a hard cut but must not open a gap at the seam.
func TestCompositor_HardCut(t *testing.T) {
	left, right := buildTestPair(t, 180)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	if err := comp.Validate(); err != nil {
		t.Errorf("exact 360 degree pair reported gaps: %v", err)
	}
}

// TestCompositor_CalibrationGapReported: profiles that cannot cover the
// sphere must surface a calibration error, and merged gap pixels must be
// the sentinel rather than stale memory.
func TestCompositor_CalibrationGapReported(t *testing.T) {
	left, right := buildTestPair(t, 170)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	err = comp.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalibration)

	white := solidFrame(seamTestW, seamTestH, 255)
	dst := NewFrame(seamTestW, seamTestH)
	for i := range dst.Pix {
		dst.Pix[i] = 0xAA
	}
	require.NoError(t, comp.Merge(white, white, dst))

	// The seam column sits in the uncovered band for a 170+170 pair.
	off := dst.Offset(seamTestU, seamTestRow)
	assert.EqualValues(t, sentinelR, dst.Pix[off], "gap pixel must carry the sentinel")
}

func TestCheckCoverage(t *testing.T) {
	a := Profile{CenterX: 1, CenterY: 1, Radius: 1, FOVDeg: 200}
	b := a

	require.NoError(t, CheckCoverage(a, b))

	b.FOVDeg = 150
	err := CheckCoverage(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestMerge_LockstepMismatch(t *testing.T) {
	left, right := buildTestPair(t, 200)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	a := NewFrame(seamTestW, seamTestH)
	b := NewFrame(seamTestW, seamTestH)
	b.Index = 1
	dst := NewFrame(seamTestW, seamTestH)
	assert.Error(t, comp.Merge(a, b, dst))
}

func TestMerge_ResolutionMismatch(t *testing.T) {
	left, right := buildTestPair(t, 200)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)

	assert.Error(t, comp.Merge(NewFrame(2, 2), NewFrame(seamTestW, seamTestH), NewFrame(seamTestW, seamTestH)))
}

func TestNewCompositor_MapMismatch(t *testing.T) {
	left, _ := buildTestPair(t, 200)
	other := flatMap(4, 4, 2, 2)
	_, err := NewCompositor(left, other)
	assert.Error(t, err)
}

// TestSeamGeometry documents the expected seam position: the overlap band
// for a 200+200 pair is centered a quarter turn from each optical axis.
func TestSeamGeometry(t *testing.T) {
	left, right := buildTestPair(t, 200)

	// At longitude 0 (left optical axis) only the left camera should see
	// full confidence.
	center := left.Idx(seamTestW/2, seamTestRow)
	le := left.Entries[center]
	re := right.Entries[center]
	require.True(t, le.Defined())
	if re.Defined() {
		t.Error("right camera covers the left optical axis; seam band is unbounded")
	}
	// u=129 sits ~0.7 degrees off the axis on this grid.
	if le.Weight < 0.99 {
		theta := (1 - le.Weight) * float32(left.Profile.FOVDeg) * float32(math.Pi) / 360
		t.Errorf("left confidence near its optical axis = %v (theta %v rad), want ~1", le.Weight, theta)
	}
}

func TestValidateIsCalibrationError(t *testing.T) {
	left, right := buildTestPair(t, 170)
	comp, err := NewCompositor(left, right)
	require.NoError(t, err)
	if !errors.Is(comp.Validate(), ErrCalibration) {
		t.Error("gap validation must wrap ErrCalibration")
	}
}
