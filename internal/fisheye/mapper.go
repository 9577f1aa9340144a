package fisheye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hemisphere identifies which half of the sphere a camera covers.
type Hemisphere string

const (
	// HemisphereLeft is the camera whose optical axis points at
	// longitude 0 in the output frame.
	HemisphereLeft Hemisphere = "left"

	// HemisphereRight is the opposite-facing camera, offset by a 180
	// degree yaw around the vertical axis.
	HemisphereRight Hemisphere = "right"
)

// IsValid returns true if the hemisphere is a known value.
func (h Hemisphere) IsValid() bool {
	return h == HemisphereLeft || h == HemisphereRight
}

// MapEntry is one output pixel's precomputed source correspondence. A
// negative Weight marks the pixel as outside this camera's coverage; for
// covered pixels Weight is the linear seam confidence in [0, 1] (1 on the
// optical axis, 0 at the field-of-view edge).
type MapEntry struct {
	SrcX   float32
	SrcY   float32
	Weight float32
}

// Defined reports whether the entry has a source pixel.
func (e MapEntry) Defined() bool { return e.Weight >= 0 }

// undefinedEntry is the sentinel stored for uncovered output pixels.
var undefinedEntry = MapEntry{SrcX: -1, SrcY: -1, Weight: -1}

// PixelMap is a dense, frame-invariant table mapping every output pixel of
// an equirectangular grid to a fractional source coordinate for one
// camera. Built once per profile/resolution/hemisphere and shared
// read-only by all frame workers; entries are never mutated after Build.
type PixelMap struct {
	Width      int
	Height     int
	SrcWidth   int
	SrcHeight  int
	Hemisphere Hemisphere
	Profile    Profile

	// Entries is a flat arena indexed v*Width + u.
	Entries []MapEntry
}

// Idx returns the Entries index for output pixel (u, v).
func (m *PixelMap) Idx(u, v int) int { return v*m.Width + u }

// MapConfig tunes pixel map construction.
type MapConfig struct {
	// SeamMarginDeg widens the accepted field of view by a small angular
	// tolerance so floating-point edge error near an exact 360-degree
	// seam cannot open a one-pixel coverage gap.
	SeamMarginDeg float64
}

// DefaultMapConfig returns the default construction tolerances.
func DefaultMapConfig() MapConfig {
	return MapConfig{SeamMarginDeg: 0.5}
}

// BuildPixelMap computes the output-to-source lookup table for one camera.
// For each output pixel the standard equirectangular inverse gives a
// spherical direction, which is rotated into the camera's local frame and
// fed through the lens model's inverse. The result is deterministic for a
// given profile/resolution/hemisphere.
//
// This is an O(outWidth*outHeight) one-time cost; callers reuse the map
// for every frame of a run rather than rebuilding it.
func BuildPixelMap(profile Profile, srcWidth, srcHeight, outWidth, outHeight int, hem Hemisphere, cfg MapConfig) (*PixelMap, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("pixel map: %w", err)
	}
	if !hem.IsValid() {
		return nil, fmt.Errorf("pixel map: unknown hemisphere %q", hem)
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("pixel map: invalid source dimensions %dx%d", srcWidth, srcHeight)
	}
	if outWidth <= 0 || outHeight <= 0 {
		return nil, fmt.Errorf("pixel map: invalid output dimensions %dx%d", outWidth, outHeight)
	}

	// The right camera faces the opposite hemisphere: a fixed 180 degree
	// yaw around the vertical axis, applied to the world direction before
	// entering the camera frame.
	rotated := hem == HemisphereRight
	yaw := r3.NewRotation(math.Pi, r3.Vec{Z: 1})

	m := &PixelMap{
		Width:      outWidth,
		Height:     outHeight,
		SrcWidth:   srcWidth,
		SrcHeight:  srcHeight,
		Hemisphere: hem,
		Profile:    profile,
		Entries:    make([]MapEntry, outWidth*outHeight),
	}

	halfFOV := profile.FOVDeg * math.Pi / 360
	margin := cfg.SeamMarginDeg * math.Pi / 180
	maxX := float64(srcWidth - 1)
	maxY := float64(srcHeight - 1)

	for v := 0; v < outHeight; v++ {
		lat := math.Pi/2 - (float64(v)+0.5)/float64(outHeight)*math.Pi
		cosLat := math.Cos(lat)
		sinLat := math.Sin(lat)

		for u := 0; u < outWidth; u++ {
			lon := (float64(u)+0.5)/float64(outWidth)*2*math.Pi - math.Pi

			world := r3.Vec{
				X: cosLat * math.Cos(lon),
				Y: cosLat * math.Sin(lon),
				Z: sinLat,
			}
			local := world
			if rotated {
				local = yaw.Rotate(world)
			}

			// Camera frame: optical axis +Z = local +X, image right
			// +X = local +Y, image down +Y = local -Z.
			cam := r3.Vec{X: local.Y, Y: -local.Z, Z: local.X}

			sx, sy, ok := profile.unproject(cam, margin)
			if !ok {
				m.Entries[m.Idx(u, v)] = undefinedEntry
				continue
			}

			theta := math.Atan2(math.Hypot(cam.X, cam.Y), cam.Z)
			weight := 1 - theta/halfFOV
			if weight < 0 {
				weight = 0
			}
			if weight > 1 {
				weight = 1
			}

			m.Entries[m.Idx(u, v)] = MapEntry{
				SrcX:   float32(math.Min(math.Max(sx, 0), maxX)),
				SrcY:   float32(math.Min(math.Max(sy, 0), maxY)),
				Weight: float32(weight),
			}
		}
	}

	return m, nil
}
