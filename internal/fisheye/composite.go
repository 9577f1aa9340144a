package fisheye

import (
	"errors"
	"fmt"
)

// ErrCalibration reports lens profiles whose combined coverage leaves
// holes in the output sphere outside the expected seam band.
var ErrCalibration = errors.New("lens profiles do not cover the full sphere")

// pixelClass is the per-pixel merge decision, fixed at construction.
type pixelClass uint8

const (
	classGap pixelClass = iota
	classLeft
	classRight
	classBlend
)

// CoverageReport summarises how the two hemispheres tile the output grid.
type CoverageReport struct {
	OutputPixels int `json:"output_pixels"`
	LeftOnly     int `json:"left_only"`
	RightOnly    int `json:"right_only"`
	Blended      int `json:"blended"`
	Gaps         int `json:"gaps"`
}

// Compositor merges two remapped hemisphere frames into one full-sphere
// equirectangular frame. The per-pixel classification and normalised
// blend weights depend only on the two pixel maps, so they are computed
// once here and reused for every frame; Merge itself is pure arithmetic.
type Compositor struct {
	width  int
	height int

	class []pixelClass
	// leftWeight holds the normalised left-camera weight for classBlend
	// pixels (right weight is the complement).
	leftWeight []float32

	report CoverageReport
}

// CheckCoverage rejects profile pairs that cannot tile a full sphere.
// Called before any map is built so obvious miscalibration fails fast.
func CheckCoverage(left, right Profile) error {
	if sum := left.FOVDeg + right.FOVDeg; sum < 360 {
		return fmt.Errorf("%w: fields of view sum to %.1f degrees", ErrCalibration, sum)
	}
	return nil
}

// NewCompositor classifies every output pixel from the two maps. The maps
// must share an output resolution.
func NewCompositor(left, right *PixelMap) (*Compositor, error) {
	if left.Width != right.Width || left.Height != right.Height {
		return nil, fmt.Errorf("compositor: map resolutions differ: %dx%d vs %dx%d",
			left.Width, left.Height, right.Width, right.Height)
	}

	n := left.Width * left.Height
	c := &Compositor{
		width:      left.Width,
		height:     left.Height,
		class:      make([]pixelClass, n),
		leftWeight: make([]float32, n),
		report:     CoverageReport{OutputPixels: n},
	}

	for i := 0; i < n; i++ {
		le := left.Entries[i]
		re := right.Entries[i]

		switch {
		case le.Defined() && re.Defined():
			c.class[i] = classBlend
			c.report.Blended++
			sum := le.Weight + re.Weight
			if sum > 0 {
				c.leftWeight[i] = le.Weight / sum
			} else {
				// Both cameras sit exactly on their FOV edge (a hard
				// 360-degree cut admitted by the seam margin): split
				// evenly rather than divide by zero.
				c.leftWeight[i] = 0.5
			}
		case le.Defined():
			c.class[i] = classLeft
			c.report.LeftOnly++
		case re.Defined():
			c.class[i] = classRight
			c.report.RightOnly++
		default:
			c.class[i] = classGap
			c.report.Gaps++
		}
	}

	return c, nil
}

// Report returns the coverage classification summary.
func (c *Compositor) Report() CoverageReport { return c.report }

// Validate returns a calibration error if the two hemispheres left any
// output pixel uncovered. Gaps signal inconsistent profiles; they are
// reported here rather than silently painted over.
func (c *Compositor) Validate() error {
	if c.report.Gaps > 0 {
		return fmt.Errorf("%w: %d of %d output pixels uncovered",
			ErrCalibration, c.report.Gaps, c.report.OutputPixels)
	}
	return nil
}

// Merge combines the two remapped hemisphere frames into dst. Seam-band
// pixels are cross-faded with the precomputed angular-confidence weights;
// gap pixels receive the no-coverage sentinel so dst never carries stale
// bytes. All three frames must match the compositor resolution.
func (c *Compositor) Merge(left, right, dst *Frame) error {
	for _, f := range []*Frame{left, right, dst} {
		if f.Width != c.width || f.Height != c.height {
			return fmt.Errorf("merge: frame %dx%d does not match compositor %dx%d",
				f.Width, f.Height, c.width, c.height)
		}
	}
	if left.Index != right.Index {
		return fmt.Errorf("merge: frame pair out of lockstep: left %d vs right %d",
			left.Index, right.Index)
	}
	dst.Index = left.Index

	n := c.width * c.height
	for i := 0; i < n; i++ {
		off := i * BytesPerPixel
		switch c.class[i] {
		case classLeft:
			copy(dst.Pix[off:off+BytesPerPixel], left.Pix[off:off+BytesPerPixel])
		case classRight:
			copy(dst.Pix[off:off+BytesPerPixel], right.Pix[off:off+BytesPerPixel])
		case classBlend:
			wl := float64(c.leftWeight[i])
			wr := 1 - wl
			for ch := 0; ch < BytesPerPixel; ch++ {
				dst.Pix[off+ch] = byte(wl*float64(left.Pix[off+ch]) + wr*float64(right.Pix[off+ch]) + 0.5)
			}
		default:
			dst.Pix[off+0] = sentinelR
			dst.Pix[off+1] = sentinelG
			dst.Pix[off+2] = sentinelB
		}
	}
	return nil
}

// WeightProfile returns the left-camera weight across the given output
// row: 1 where only the left camera contributes, 0 where only the right
// does, and the normalised blend weight inside the seam band. Used by the
// run report to visualise the seam falloff.
func (c *Compositor) WeightProfile(row int) []float64 {
	if row < 0 || row >= c.height {
		return nil
	}
	out := make([]float64, c.width)
	for u := 0; u < c.width; u++ {
		i := row*c.width + u
		switch c.class[i] {
		case classLeft:
			out[u] = 1
		case classBlend:
			out[u] = float64(c.leftWeight[i])
		default:
			out[u] = 0
		}
	}
	return out
}
