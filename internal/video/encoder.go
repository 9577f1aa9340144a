package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/openpano/unwarp/internal/fisheye"
	"github.com/openpano/unwarp/internal/stitch"
)

const (
	DefaultCodec  = "libx264"
	DefaultPreset = "ultrafast"
)

// EncoderConfig describes the ffmpeg encode pipe consuming raw RGB
// frames on stdin.
type EncoderConfig struct {
	Path      string
	Width     int
	Height    int
	FrameRate float64
	Codec     string // defaults to DefaultCodec
	Preset    string // defaults to DefaultPreset
}

func (c EncoderConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("encoder: empty path")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("encoder: invalid size %dx%d", c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("encoder: invalid frame rate %g", c.FrameRate)
	}
	return nil
}

func encoderArgs(c EncoderConfig) []string {
	codec := c.Codec
	if codec == "" {
		codec = DefaultCodec
	}
	preset := c.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	return []string{
		"-hide_banner", "-nostats", "-loglevel", "error",
		"-y",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", c.Width, c.Height),
		"-r", FormatRate(c.FrameRate),
		"-i", "pipe:",
		"-vcodec", codec,
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		c.Path,
	}
}

// Encoder writes raw RGB frames into a running ffmpeg process.
type Encoder struct {
	cmd    *exec.Cmd
	in     io.WriteCloser
	stderr bytes.Buffer

	width  int
	height int
	count  int64
}

var _ stitch.FrameSink = (*Encoder)(nil)

// OpenEncoder starts an ffmpeg encode pipe for the configured output.
func OpenEncoder(ctx context.Context, cfg EncoderConfig) (*Encoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Encoder{width: cfg.Width, height: cfg.Height}
	e.cmd = exec.CommandContext(ctx, "ffmpeg", encoderArgs(cfg)...)
	e.cmd.Stderr = &e.stderr

	in, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin pipe: %w", err)
	}
	e.in = in

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %s: %w", cfg.Path, err)
	}
	stitch.Logf("video: encoding %s at %dx%d @ %s fps", cfg.Path, cfg.Width, cfg.Height, FormatRate(cfg.FrameRate))
	return e, nil
}

// WriteFrame pushes one frame into the encoder.
func (e *Encoder) WriteFrame(f *fisheye.Frame) error {
	if f.Width != e.width || f.Height != e.height {
		return fmt.Errorf("encoder: frame is %dx%d, stream is %dx%d",
			f.Width, f.Height, e.width, e.height)
	}
	if _, err := e.in.Write(f.Pix); err != nil {
		return fmt.Errorf("write frame %d: %w%s", e.count, err, e.stderrTail())
	}
	e.count++
	return nil
}

// Close flushes the pipe and waits for ffmpeg to finish writing the
// container. Unlike the decoder, encode errors matter and are returned.
func (e *Encoder) Close() error {
	if err := e.in.Close(); err != nil {
		return fmt.Errorf("close encoder stdin: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w%s", err, e.stderrTail())
	}
	return nil
}

func (e *Encoder) stderrTail() string {
	s := strings.TrimSpace(e.stderr.String())
	if s == "" {
		return ""
	}
	return ": " + s
}
