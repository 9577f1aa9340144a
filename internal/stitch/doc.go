// Package stitch orchestrates the per-run stitching pipeline: lockstep
// frame-pair synchronization, two per-camera remap workers, and the
// compositor join stage that produces the merged output stream.
//
// The package consumes FrameSource/FrameSink collaborators; it performs
// no video decode or encode itself.
package stitch
