// Command findrec locates archived camera recordings covering a
// wall-clock timestamp and prints the skip offsets needed to start a
// stitch at that moment. With exactly two channels it also prints
// ready-to-run unwarp command lines.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openpano/unwarp/internal/archive"
	"github.com/openpano/unwarp/internal/fsutil"
	"github.com/openpano/unwarp/internal/stitch"
	"github.com/openpano/unwarp/internal/version"
)

var (
	inputDir    = flag.String("i", "", "Directory to search for recordings (required)")
	timestamp   = flag.String("t", "", "Target timestamp, e.g. \"2019-06-26 15:14:45\" (required)")
	channels    = flag.String("c", "", "Comma-separated channel numbers, e.g. 1,2 (required)")
	fps         = flag.Int("fps", 24, "Frame rate for computing skip amounts")
	extension   = flag.String("e", ".mp4", "Recording file extension")
	indexPath   = flag.String("index", "", "Optional sqlite index file; rebuilt from the input directory")
	verbose     = flag.Bool("v", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// timeLayouts are the accepted -t formats, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"20060102150405",
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("findrec", version.String())
		return
	}
	if *inputDir == "" || *timestamp == "" || *channels == "" {
		log.Fatal("-i, -t and -c are all required")
	}
	if !*verbose {
		stitch.SetLogger(nil)
	}

	target, err := parseTimestamp(*timestamp)
	if err != nil {
		log.Fatalf("findrec: %v", err)
	}
	chans, err := parseChannels(*channels)
	if err != nil {
		log.Fatalf("findrec: %v", err)
	}
	stitch.Logf("target %v, channels %v", target, chans)

	matches, err := findMatches(target, chans)
	if err != nil {
		log.Fatalf("findrec: %v", err)
	}

	for _, m := range matches {
		fmt.Printf("%s +%d seconds (skip %d frames)\n", m.Path, int(m.Lag/time.Second), m.SkipFrames)
	}

	if len(matches) == 2 {
		pair := archive.Pair{Left: matches[0], Right: matches[1]}

		fmt.Println("Extract near beginning of files:")
		norm := pair.Normalized()
		fmt.Println("  " + unwarpCommand(norm, beginningOutputName(norm)))

		fmt.Printf("Extract from %s:\n", *timestamp)
		fmt.Println("  " + unwarpCommand(pair, timestampOutputName(target)))
	}
}

// findMatches resolves one recording per channel, either through the
// sqlite index or a direct scan.
func findMatches(target time.Time, chans []int) ([]archive.Match, error) {
	fsys := fsutil.OSFileSystem{}
	exts := []string{*extension}

	if *indexPath == "" {
		recs, err := archive.Scan(fsys, *inputDir, exts)
		if err != nil {
			return nil, err
		}
		stitch.Logf("%d recordings with extension %s", len(recs), *extension)
		return archive.MatchChannels(recs, chans, target, *fps)
	}

	ix, err := archive.OpenIndex(*indexPath)
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	if _, err := ix.Rebuild(fsys, *inputDir, exts); err != nil {
		return nil, err
	}

	matches := make([]archive.Match, 0, len(chans))
	for _, ch := range chans {
		rec, lag, err := ix.NearestBefore(ch, target)
		if err != nil {
			return nil, err
		}
		matches = append(matches, archive.Match{
			Recording:  rec,
			Lag:        lag,
			SkipFrames: int(lag/time.Second) * *fps,
		})
	}
	return matches, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

func parseChannels(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	chans := make([]int, 0, len(parts))
	for _, p := range parts {
		ch, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad channel %q: %w", p, err)
		}
		chans = append(chans, ch)
	}
	return chans, nil
}

// unwarpCommand renders a runnable stitch invocation for a matched pair.
func unwarpCommand(p archive.Pair, outName string) string {
	return fmt.Sprintf("unwarp -l %s --skip-left %d -r %s --skip-right %d -o %s",
		p.Left.Path, p.Left.SkipFrames, p.Right.Path, p.Right.SkipFrames, outName)
}

// beginningOutputName names the output after the later-starting input,
// which is where playback begins once skips are normalized.
func beginningOutputName(p archive.Pair) string {
	later := p.Left
	if p.Right.SkipFrames < p.Left.SkipFrames {
		later = p.Right
	}
	base := filepath.Base(later.Path)
	return "unwarp_" + strings.TrimSuffix(base, filepath.Ext(base)) + ".mp4"
}

func timestampOutputName(target time.Time) string {
	return "unwarp_" + target.Format("20060102150405") + ".mp4"
}
