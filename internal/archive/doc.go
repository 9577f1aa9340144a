// Package archive locates camera recordings on disk by channel and
// start time. Recorder output follows the fixed naming convention
// chNN-YYYYMMDDHHMMSS.mp4, where NN is the zero-padded channel number
// and the timestamp is the moment the file started recording; matching
// a wall-clock target against that convention yields the recording to
// open and how many frames into it to seek.
//
// An optional sqlite index caches scan results for large archives.
package archive
