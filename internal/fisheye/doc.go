// Package fisheye owns the geometric core of the stitcher.
//
// Responsibilities: the equidistant lens model (pixel ↔ direction),
// building frame-invariant equirectangular pixel maps, per-frame remapping
// with bilinear sampling, and compositing the two hemispheres across the
// seam band.
// Key types: Profile, PixelMap, Frame, Remapper, Compositor.
//
// Dependency rule: this package is pure geometry and rasters. No video
// decode/encode, no filesystem walking, no SQL.
package fisheye
