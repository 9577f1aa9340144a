package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Metadata describes the first video stream of a container file, plus
// whether an audio stream is present.
type Metadata struct {
	Width     int
	Height    int
	FrameRate float64
	Duration  time.Duration
	HasAudio  bool
}

// probeStream mirrors the subset of ffprobe's per-stream JSON we need.
type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on the given file and returns its video metadata.
func Probe(ctx context.Context, path string) (Metadata, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-print_format", "json",
		"-show_streams", "-show_format",
		path,
	}
	out, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (Metadata, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var meta Metadata
	var video *probeStream
	for i := range po.Streams {
		switch po.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &po.Streams[i]
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if video == nil {
		return Metadata{}, fmt.Errorf("no video stream found")
	}

	meta.Width = video.Width
	meta.Height = video.Height
	if meta.Width <= 0 || meta.Height <= 0 {
		return Metadata{}, fmt.Errorf("invalid video dimensions %dx%d", meta.Width, meta.Height)
	}

	rate, err := ParseRate(video.AvgFrameRate)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse frame rate: %w", err)
	}
	meta.FrameRate = rate

	durStr := video.Duration
	if durStr == "" {
		durStr = po.Format.Duration
	}
	if durStr != "" {
		secs, err := strconv.ParseFloat(durStr, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("parse duration %q: %w", durStr, err)
		}
		meta.Duration = time.Duration(secs * float64(time.Second))
	}

	return meta, nil
}

// ParseRate parses an ffprobe rational frame rate such as "24000/1001"
// or a plain decimal such as "25".
func ParseRate(s string) (float64, error) {
	if s == "" || s == "0/0" {
		return 0, fmt.Errorf("empty frame rate")
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("rate %q: zero denominator", s)
	}
	return n / d, nil
}
