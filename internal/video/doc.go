// Package video wraps external ffmpeg/ffprobe processes behind small
// frame-oriented readers and writers. Decoded frames cross the package
// boundary as raw interleaved RGB rasters so the stitching layer never
// touches codec details.
//
// Dependency rule: this package imports only internal/fisheye for the
// frame type. Argument construction is split from process startup so the
// command lines are testable without ffmpeg installed.
package video
