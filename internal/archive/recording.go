package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/openpano/unwarp/internal/fsutil"
	"github.com/openpano/unwarp/internal/stitch"
)

// timestampLayout is the wall-clock encoding used in recording names.
const timestampLayout = "20060102150405"

// ErrNoRecording reports that no recording starts at or before the
// requested target time on the requested channel.
var ErrNoRecording = errors.New("no recording at or before target")

// Recording is one archived camera file.
type Recording struct {
	Path      string    `json:"path"`
	Channel   int       `json:"channel"`
	StartTime time.Time `json:"start_time"`
}

// ParseName extracts channel and start time from a recording path.
// The basename must look like chNN-YYYYMMDDHHMMSS.mp4: a two-character
// prefix, the channel at bytes 2:4, a dash, then a 14-digit timestamp.
func ParseName(path string) (Recording, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	if len(stem) != 19 || stem[4] != '-' {
		return Recording{}, fmt.Errorf("recording name %q: want chNN-YYYYMMDDHHMMSS", base)
	}

	channel, err := strconv.Atoi(stem[2:4])
	if err != nil {
		return Recording{}, fmt.Errorf("recording name %q: bad channel: %w", base, err)
	}

	start, err := time.ParseInLocation(timestampLayout, stem[5:], time.Local)
	if err != nil {
		return Recording{}, fmt.Errorf("recording name %q: bad timestamp: %w", base, err)
	}

	return Recording{Path: path, Channel: channel, StartTime: start}, nil
}

// Scan walks root for recording files with one of the given extensions
// and parses their names. Files that do not follow the naming
// convention are skipped with a log line rather than failing the scan.
func Scan(fsys fsutil.FileSystem, root string, exts []string) ([]Recording, error) {
	files, err := fsutil.ListFiles(fsys, root, exts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	recs := make([]Recording, 0, len(files))
	for _, path := range files {
		rec, err := ParseName(path)
		if err != nil {
			stitch.Logf("archive: skipping %s: %v", path, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
