// Package report renders post-run artefacts for a stitching job: an
// HTML timing chart, a PNG of the seam blend-weight profile, and a
// machine-readable JSON summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/openpano/unwarp/internal/fisheye"
	"github.com/openpano/unwarp/internal/stitch"
)

const (
	timingsFile = "timings.html"
	seamFile    = "seam_weights.png"
	summaryFile = "run.json"
)

// Run collects everything worth keeping from one stitching run.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	LeftPath   string `json:"left_path"`
	RightPath  string `json:"right_path"`
	OutputPath string `json:"output_path"`

	Coverage fisheye.CoverageReport `json:"coverage"`
	Stats    stitch.StatsSnapshot   `json:"stats"`
	Timings  []stitch.FrameTiming   `json:"timings,omitempty"`

	// WeightProfile is the left-camera blend weight across one output
	// row, sampled at the equator.
	WeightProfile []float64 `json:"weight_profile,omitempty"`
}

// NewRun stamps a fresh run record for the given input/output paths.
func NewRun(leftPath, rightPath, outputPath string) *Run {
	return &Run{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		LeftPath:   leftPath,
		RightPath:  rightPath,
		OutputPath: outputPath,
	}
}

// fileWriter is the slice of fsutil.FileSystem this package needs;
// keeping it narrow lets tests pass a MemoryFileSystem.
type fileWriter interface {
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// Write renders all report artefacts into dir.
func Write(fsys fileWriter, dir string, run *Run) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	html, err := renderTimings(run)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(filepath.Join(dir, timingsFile), html, 0644); err != nil {
		return fmt.Errorf("write %s: %w", timingsFile, err)
	}

	if len(run.WeightProfile) > 0 {
		png, err := renderSeamProfile(run.WeightProfile)
		if err != nil {
			return err
		}
		if err := fsys.WriteFile(filepath.Join(dir, seamFile), png, 0644); err != nil {
			return fmt.Errorf("write %s: %w", seamFile, err)
		}
	}

	summary, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := fsys.WriteFile(filepath.Join(dir, summaryFile), summary, 0644); err != nil {
		return fmt.Errorf("write %s: %w", summaryFile, err)
	}

	stitch.Logf("report: wrote run %s artefacts under %s", run.ID, dir)
	return nil
}

// renderTimings builds the per-frame timing line chart.
func renderTimings(run *Run) ([]byte, error) {
	frames := make([]int64, len(run.Timings))
	remap := make([]opts.LineData, len(run.Timings))
	merge := make([]opts.LineData, len(run.Timings))
	for i, t := range run.Timings {
		frames[i] = t.Index
		remap[i] = opts.LineData{Value: t.RemapMs}
		merge[i] = opts.LineData{Value: t.MergeMs}
	}

	subtitle := fmt.Sprintf("frames=%d blended=%d gaps=%d truncated=%v",
		run.Stats.FramesMerged, run.Coverage.Blended, run.Coverage.Gaps, run.Stats.Truncated)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Stitch Run " + run.ID, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-frame timing (ms)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(frames).
		AddSeries("remap", remap).
		AddSeries("merge", merge)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("render timing chart: %w", err)
	}
	return buf.Bytes(), nil
}

// renderSeamProfile plots the left-camera blend weight across output
// columns, which makes seam placement and ramp width visible at a
// glance.
func renderSeamProfile(weights []float64) ([]byte, error) {
	pts := make(plotter.XYs, len(weights))
	for i, w := range weights {
		pts[i] = plotter.XY{X: float64(i), Y: w}
	}

	p := plot.New()
	p.Title.Text = "Seam blend weight (left camera)"
	p.X.Label.Text = "Output column"
	p.Y.Label.Text = "Weight"
	p.Y.Min = -0.05
	p.Y.Max = 1.05

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("seam profile line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	wt, err := p.WriterTo(12*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("render seam profile: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode seam profile: %w", err)
	}
	return buf.Bytes(), nil
}
