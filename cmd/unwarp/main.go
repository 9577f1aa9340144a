// Command unwarp stitches two fisheye camera recordings into a single
// equirectangular panoramic video. The left camera covers the front
// hemisphere and the right camera the rear; frames are decoded through
// ffmpeg pipes, remapped per hemisphere, blended along the seam and
// encoded back through ffmpeg.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"

	"github.com/openpano/unwarp/internal/fisheye"
	"github.com/openpano/unwarp/internal/fsutil"
	"github.com/openpano/unwarp/internal/report"
	"github.com/openpano/unwarp/internal/stitch"
	"github.com/openpano/unwarp/internal/version"
	"github.com/openpano/unwarp/internal/video"
)

var (
	leftVideo  = flag.String("l", "", "Left camera video file (required)")
	rightVideo = flag.String("r", "", "Right camera video file (required)")
	skipLeft   = flag.Int("skip-left", 0, "Left video frames to skip")
	skipRight  = flag.Int("skip-right", 0, "Right video frames to skip")
	output     = flag.String("o", "", "Output video file (required)")

	outHeight = flag.Int("height", 2048, "Output video height; width is twice the height")
	frameRate = flag.Float64("frame-rate", 24, "Output video frame rate")
	duration  = flag.Duration("d", 0, "Duration to stitch; zero means the full shared duration")

	aperture     = flag.Float64("aperture", 1.0, "Lens field of view as a ratio of 180 degrees")
	leftProfile  = flag.String("left-profile", "", "Left lens calibration JSON overriding the defaults")
	rightProfile = flag.String("right-profile", "", "Right lens calibration JSON overriding the defaults")

	vcodec  = flag.String("vcodec", video.DefaultCodec, "Output video codec")
	preset  = flag.String("preset", video.DefaultPreset, "Output codec preset")
	workers = flag.Int("workers", 0, "Remap workers per hemisphere; zero uses all CPUs")

	fisheyePair = flag.Bool("fisheye", false, "Output the raw fisheye pair side by side instead of stitching")
	preview     = flag.Bool("preview", false, "Also save a PNG of the first output frame")
	reportDir   = flag.String("report-dir", "", "Directory to write run report artefacts into")
	verbose     = flag.Bool("v", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("unwarp", version.String())
		return
	}
	if *leftVideo == "" || *rightVideo == "" {
		log.Fatal("both -l and -r input files are required")
	}
	if *output == "" {
		log.Fatal("output file -o is required")
	}
	if *outHeight <= 0 {
		log.Fatal("height must be positive")
	}
	if !*verbose {
		stitch.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("unwarp: %v", err)
	}
}

func run(ctx context.Context) error {
	leftMeta, err := video.Probe(ctx, *leftVideo)
	if err != nil {
		return err
	}
	rightMeta, err := video.Probe(ctx, *rightVideo)
	if err != nil {
		return err
	}
	if *verbose {
		printMeta(*leftVideo, leftMeta)
		printMeta(*rightVideo, rightMeta)
	}

	// Both decode pipes are normalised to the larger of the two source
	// rasters so one remap table serves both cameras.
	srcWidth := max(leftMeta.Width, rightMeta.Width)
	srcHeight := max(leftMeta.Height, rightMeta.Height)

	maxDur := sharedDuration(leftMeta.Duration, rightMeta.Duration, *skipLeft, *skipRight, *frameRate)
	dur := clampDuration(*duration, maxDur)

	plan, err := stitch.NewPlan(*skipLeft, *skipRight, dur, *frameRate)
	if err != nil {
		return err
	}
	stitch.Logf("stitching %d frames at %g fps", plan.FrameCount, *frameRate)

	leftDec, err := openDecoder(ctx, *leftVideo, leftMeta, srcWidth, srcHeight, plan.SkipLeft, plan.FrameCount)
	if err != nil {
		return err
	}
	defer leftDec.Close()

	rightDec, err := openDecoder(ctx, *rightVideo, rightMeta, srcWidth, srcHeight, plan.SkipRight, plan.FrameCount)
	if err != nil {
		return err
	}
	defer rightDec.Close()

	enc, err := video.OpenEncoder(ctx, video.EncoderConfig{
		Path:      *output,
		Width:     *outHeight * 2,
		Height:    *outHeight,
		FrameRate: *frameRate,
		Codec:     *vcodec,
		Preset:    *preset,
	})
	if err != nil {
		return err
	}

	if *fisheyePair {
		return runFisheye(leftDec, rightDec, enc, plan)
	}
	return runStitch(ctx, leftDec, rightDec, enc, plan, srcWidth, srcHeight)
}

func openDecoder(ctx context.Context, path string, meta video.Metadata, w, h, skip, frames int) (*video.Decoder, error) {
	return video.OpenDecoder(ctx, video.DecoderConfig{
		Path:      path,
		Meta:      meta,
		Width:     w,
		Height:    h,
		FrameRate: *frameRate,
		MaxFrames: int64(skip + frames),
	})
}

func runStitch(ctx context.Context, left, right *video.Decoder, enc *video.Encoder, plan stitch.Plan, srcWidth, srcHeight int) error {
	leftLens, err := loadLens(*leftProfile, srcWidth, srcHeight)
	if err != nil {
		return fmt.Errorf("left profile: %w", err)
	}
	rightLens, err := loadLens(*rightProfile, srcWidth, srcHeight)
	if err != nil {
		return fmt.Errorf("right profile: %w", err)
	}
	if err := fisheye.CheckCoverage(leftLens, rightLens); err != nil {
		return err
	}

	outW, outH := *outHeight*2, *outHeight
	mapCfg := fisheye.DefaultMapConfig()

	leftMap, err := fisheye.BuildPixelMap(leftLens, srcWidth, srcHeight, outW, outH, fisheye.HemisphereLeft, mapCfg)
	if err != nil {
		return err
	}
	rightMap, err := fisheye.BuildPixelMap(rightLens, srcWidth, srcHeight, outW, outH, fisheye.HemisphereRight, mapCfg)
	if err != nil {
		return err
	}

	comp, err := fisheye.NewCompositor(leftMap, rightMap)
	if err != nil {
		return err
	}
	if err := comp.Validate(); err != nil {
		return err
	}

	cfg := stitch.Config{
		LeftMap:      leftMap,
		RightMap:     rightMap,
		Compositor:   comp,
		Plan:         plan,
		RemapWorkers: *workers,
	}

	var previewImg *image.RGBA
	if *preview {
		cfg.OnFrame = func(f *fisheye.Frame) {
			if previewImg == nil {
				previewImg = f.ToImage()
			}
		}
	}

	pl, err := stitch.New(cfg)
	if err != nil {
		return err
	}

	result, err := pl.Run(ctx, left, right, enc)
	if err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if previewImg != nil {
		if err := imaging.Save(previewImg, *output+".png"); err != nil {
			return fmt.Errorf("save preview: %w", err)
		}
	}

	log.Printf("wrote %d frames to %s (truncated=%v, remap %.1f ms, merge %.1f ms)",
		result.FramesWritten, *output, result.Truncated,
		result.Stats.AvgRemapMillis, result.Stats.AvgMergeMillis)

	if *reportDir != "" {
		run := report.NewRun(*leftVideo, *rightVideo, *output)
		run.Coverage = comp.Report()
		run.Stats = result.Stats
		run.Timings = result.Timings
		run.WeightProfile = comp.WeightProfile(outH / 2)
		if err := report.Write(fsutil.OSFileSystem{}, *reportDir, run); err != nil {
			return err
		}
	}
	return nil
}

// runFisheye bypasses the stitcher: both sources are resized square and
// written side by side, which is the raw material for lens calibration.
func runFisheye(left, right *video.Decoder, enc *video.Encoder, plan stitch.Plan) error {
	if err := skipFrames(left, plan.SkipLeft, "left"); err != nil {
		return err
	}
	if err := skipFrames(right, plan.SkipRight, "right"); err != nil {
		return err
	}

	h := *outHeight
	srcL := fisheye.NewFrame(left.Width(), left.Height())
	srcR := fisheye.NewFrame(right.Width(), right.Height())
	out := fisheye.NewFrame(h*2, h)

	written := 0
	for i := 0; i < plan.FrameCount; i++ {
		if err := left.ReadFrame(srcL); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := right.ReadFrame(srcR); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		pair := imaging.New(h*2, h, color.NRGBA{})
		pair = imaging.Paste(pair, imaging.Resize(srcL.ToImage(), h, h, imaging.Lanczos), image.Pt(0, 0))
		pair = imaging.Paste(pair, imaging.Resize(srcR.ToImage(), h, h, imaging.Lanczos), image.Pt(h, 0))

		if err := out.FromImage(pair); err != nil {
			return err
		}
		out.Index = int64(i)
		if err := enc.WriteFrame(out); err != nil {
			return err
		}
		written++

		if *preview && i == 0 {
			if err := imaging.Save(pair, *output+".png"); err != nil {
				return fmt.Errorf("save preview: %w", err)
			}
		}
	}

	if err := enc.Close(); err != nil {
		return err
	}
	log.Printf("wrote %d fisheye pair frames to %s", written, *output)
	return nil
}

func skipFrames(dec *video.Decoder, n int, side string) error {
	if n == 0 {
		return nil
	}
	stitch.Logf("skipping %d %s frames", n, side)
	if err := dec.Skip(n); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadLens builds the lens profile for one camera: defaults derived
// from the raster and aperture, optionally overridden by a calibration
// file.
func loadLens(path string, width, height int) (fisheye.Profile, error) {
	base := fisheye.DefaultProfile(width, height, *aperture)
	if path == "" {
		return base, base.Validate()
	}
	return fisheye.LoadProfile(path, base)
}

// sharedDuration is the longest stretch both inputs can supply after
// their skip offsets.
func sharedDuration(leftDur, rightDur time.Duration, skipLeft, skipRight int, rate float64) time.Duration {
	l := leftDur - frameSpan(skipLeft, rate)
	r := rightDur - frameSpan(skipRight, rate)
	return min(l, r)
}

func frameSpan(frames int, rate float64) time.Duration {
	return time.Duration(float64(frames) / rate * float64(time.Second))
}

// clampDuration resolves the requested duration against the available
// maximum: zero means "use everything", longer requests are clamped.
func clampDuration(requested, max time.Duration) time.Duration {
	if max < 0 {
		max = 0
	}
	if requested <= 0 {
		stitch.Logf("no duration specified, using maximum %v", max)
		return max
	}
	if requested > max {
		stitch.Logf("duration %v is too long, using maximum %v", requested, max)
		return max
	}
	return requested
}

func printMeta(path string, meta video.Metadata) {
	audio := "no"
	if meta.HasAudio {
		audio = "yes"
	}
	log.Printf("%s: %dx%d @ %.3f fps, %v, audio: %s",
		path, meta.Width, meta.Height, meta.FrameRate, meta.Duration, audio)
}
