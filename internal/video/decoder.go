package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/openpano/unwarp/internal/fisheye"
	"github.com/openpano/unwarp/internal/stitch"
)

// rateEpsilon bounds the difference under which the source frame rate is
// taken as already matching the target, skipping the fps filter.
const rateEpsilon = 1e-6

// DecoderConfig describes one ffmpeg decode pipe. Meta is the probed
// source stream; Width/Height/FrameRate are the raster the pipe must
// deliver, with fps and scale filters inserted only when they differ
// from the source.
type DecoderConfig struct {
	Path      string
	Meta      Metadata
	Width     int
	Height    int
	FrameRate float64
	// MaxFrames caps the number of frames ffmpeg emits (frames to skip
	// plus frames to stitch). Zero means no cap.
	MaxFrames int64
}

func (c DecoderConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("decoder: empty path")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("decoder: invalid target size %dx%d", c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("decoder: invalid frame rate %g", c.FrameRate)
	}
	return nil
}

// decoderArgs builds the ffmpeg argument list for a decode pipe.
func decoderArgs(c DecoderConfig) []string {
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "error",
		"-i", c.Path,
	}

	var filters []string
	if math.Abs(c.Meta.FrameRate-c.FrameRate) > rateEpsilon {
		filters = append(filters, "fps="+FormatRate(c.FrameRate))
	}
	if c.Meta.Width != c.Width || c.Meta.Height != c.Height {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", c.Width, c.Height))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	if c.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.FormatInt(c.MaxFrames, 10))
	}

	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:")
	return args
}

// FormatRate renders a frame rate for ffmpeg arguments without
// trailing zeros.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

// Decoder reads raw RGB frames from a running ffmpeg process.
type Decoder struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	buf    *bufio.Reader
	stderr bytes.Buffer

	width  int
	height int
	next   int64
}

var _ stitch.FrameSource = (*Decoder)(nil)

// OpenDecoder starts an ffmpeg decode pipe for the configured file.
func OpenDecoder(ctx context.Context, cfg DecoderConfig) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d := &Decoder{width: cfg.Width, height: cfg.Height}
	d.cmd = exec.CommandContext(ctx, "ffmpeg", decoderArgs(cfg)...)
	d.cmd.Stderr = &d.stderr

	out, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout pipe: %w", err)
	}
	d.out = out
	d.buf = bufio.NewReaderSize(out, 1<<16)

	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %s: %w", cfg.Path, err)
	}
	stitch.Logf("video: decoding %s at %dx%d", cfg.Path, cfg.Width, cfg.Height)
	return d, nil
}

// Width returns the raster width the pipe delivers.
func (d *Decoder) Width() int { return d.width }

// Height returns the raster height the pipe delivers.
func (d *Decoder) Height() int { return d.height }

// ReadFrame fills dst with the next decoded frame. It returns io.EOF
// once the stream is exhausted; a frame cut short mid-raster is an
// error, not EOF.
func (d *Decoder) ReadFrame(dst *fisheye.Frame) error {
	if dst.Width != d.width || dst.Height != d.height {
		return fmt.Errorf("decoder: frame is %dx%d, stream is %dx%d",
			dst.Width, dst.Height, d.width, d.height)
	}
	if _, err := io.ReadFull(d.buf, dst.Pix); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read frame %d: %w%s", d.next, err, d.stderrTail())
	}
	dst.Index = d.next
	d.next++
	return nil
}

// Skip drains n frames from the pipe. Running out of stream while
// skipping reports io.EOF.
func (d *Decoder) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	total := int64(n) * int64(d.width) * int64(d.height) * fisheye.BytesPerPixel
	if _, err := io.CopyN(io.Discard, d.buf, total); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return fmt.Errorf("skip %d frames: %w", n, err)
	}
	d.next += int64(n)
	return nil
}

// Close tears the pipe down. The process is killed if still running;
// exit status is ignored because readers routinely stop mid-stream.
func (d *Decoder) Close() error {
	d.out.Close()
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
	return nil
}

func (d *Decoder) stderrTail() string {
	s := strings.TrimSpace(d.stderr.String())
	if s == "" {
		return ""
	}
	return ": " + s
}
