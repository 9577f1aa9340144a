package fisheye

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// The lens model is equidistant: radial pixel distance from the optical
// center maps linearly to the off-axis angle theta, optionally corrected
// by a radial distortion polynomial over the normalised radius.
//
// Camera-frame convention: +Z along the optical axis, +X right and +Y
// down in image coordinates, so the bearing phi = atan2(dy, dx) matches
// pixel space directly.

// antipodeEpsilon bounds how close to theta = pi a direction may come
// before its bearing is considered degenerate.
const antipodeEpsilon = 1e-9

// Project maps a source pixel to a unit direction in the camera frame.
// Returns false when the pixel lies outside the lens's circular coverage.
func (p Profile) Project(px, py float64) (r3.Vec, bool) {
	dx := px - p.CenterX
	dy := py - p.CenterY
	r := math.Hypot(dx, dy)

	rhoIdeal, ok := p.undistortRadius(r / p.Radius)
	if !ok {
		return r3.Vec{}, false
	}

	halfFOV := p.FOVDeg * math.Pi / 360
	theta := rhoIdeal * halfFOV

	sinTheta := math.Sin(theta)
	cosTheta := math.Cos(theta)
	if r == 0 {
		// Optical axis: bearing is irrelevant.
		return r3.Vec{Z: 1}, true
	}
	phi := math.Atan2(dy, dx)
	return r3.Vec{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}, true
}

// Unproject maps a unit direction in the camera frame back to a source
// pixel. Returns false for directions outside the lens's field of view
// and for the degenerate antipodal direction (theta = pi), where the
// bearing is undefined.
func (p Profile) Unproject(dir r3.Vec) (px, py float64, ok bool) {
	return p.unproject(dir, 0)
}

// unproject is Unproject with an angular tolerance margin (radians) added
// to the field-of-view boundary. The projection mapper uses the margin to
// absorb floating-point boundary error near a 360-degree seam.
func (p Profile) unproject(dir r3.Vec, marginRad float64) (px, py float64, ok bool) {
	planar := math.Hypot(dir.X, dir.Y)
	theta := math.Atan2(planar, dir.Z)

	if theta >= math.Pi-antipodeEpsilon {
		// Antipode of the optical axis: no usable bearing, report as
		// uncovered rather than emitting NaN coordinates.
		return 0, 0, false
	}

	halfFOV := p.FOVDeg * math.Pi / 360
	if theta > halfFOV+marginRad {
		return 0, 0, false
	}

	rhoIdeal := theta / halfFOV
	r := p.distortRadius(rhoIdeal) * p.Radius
	// The margin can push r marginally past the image circle; keep the
	// sample on the circle edge.
	if r > p.Radius {
		r = p.Radius
	}

	if planar == 0 {
		return p.CenterX, p.CenterY, true
	}
	phi := math.Atan2(dir.Y, dir.X)
	return p.CenterX + r*math.Cos(phi), p.CenterY + r*math.Sin(phi), true
}

// distortRadius applies the radial polynomial to a normalised ideal
// radius: rho' = rho * (1 + k1*rho^2 + k2*rho^4 + ...).
func (p Profile) distortRadius(rho float64) float64 {
	if len(p.Distortion) == 0 {
		return rho
	}
	rho2 := rho * rho
	scale := 1.0
	pow := rho2
	for _, k := range p.Distortion {
		scale += k * pow
		pow *= rho2
	}
	return rho * scale
}

// undistortRadius inverts distortRadius for a normalised pixel radius.
// Without coefficients the model is its own inverse; with them a short
// Newton iteration recovers the ideal radius.
func (p Profile) undistortRadius(rhoPix float64) (float64, bool) {
	const boundarySlack = 1e-9
	if len(p.Distortion) == 0 {
		if rhoPix > 1+boundarySlack {
			return 0, false
		}
		return math.Min(rhoPix, 1), true
	}

	// Newton's method on f(rho) = distort(rho) - rhoPix, seeded with the
	// measured radius. The polynomial is smooth and near-identity for
	// sane calibrations, so a handful of iterations converges.
	rho := rhoPix
	for i := 0; i < 8; i++ {
		f := p.distortRadius(rho) - rhoPix
		d := p.distortDerivative(rho)
		if d == 0 {
			break
		}
		rho -= f / d
	}
	if rho < 0 || rho > 1+boundarySlack {
		return 0, false
	}
	return math.Min(rho, 1), true
}

// distortDerivative is d/drho of distortRadius.
func (p Profile) distortDerivative(rho float64) float64 {
	rho2 := rho * rho
	d := 1.0
	pow := rho2
	for i, k := range p.Distortion {
		d += float64(2*i+3) * k * pow
		pow *= rho2
	}
	return d
}
