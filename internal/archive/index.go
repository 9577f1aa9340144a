package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openpano/unwarp/internal/fsutil"
	"github.com/openpano/unwarp/internal/stitch"
)

// Index is a sqlite cache of scanned recordings. Rebuilding replaces
// the whole table; the scans table keeps one audit row per rebuild.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) a recording index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			path TEXT PRIMARY KEY,
			channel INTEGER NOT NULL,
			start_unix INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_recordings_channel_start
			ON recordings(channel, start_unix);
		CREATE TABLE IF NOT EXISTS scans (
			scan_id TEXT PRIMARY KEY,
			root TEXT,
			file_count INTEGER,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Rebuild rescans root and replaces the index contents with the result.
// It returns the number of recordings indexed.
func (ix *Index) Rebuild(fsys fsutil.FileSystem, root string, exts []string) (int, error) {
	recs, err := Scan(fsys, root, exts)
	if err != nil {
		return 0, err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM recordings"); err != nil {
		return 0, err
	}
	for _, rec := range recs {
		_, err := tx.Exec(
			"INSERT INTO recordings (path, channel, start_unix) VALUES (?, ?, ?)",
			rec.Path, rec.Channel, rec.StartTime.Unix())
		if err != nil {
			return 0, fmt.Errorf("index %s: %w", rec.Path, err)
		}
	}

	scanID := uuid.NewString()
	_, err = tx.Exec(
		"INSERT INTO scans (scan_id, root, file_count) VALUES (?, ?, ?)",
		scanID, root, len(recs))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	stitch.Logf("archive: indexed %d recordings under %s (scan %s)", len(recs), root, scanID)
	return len(recs), nil
}

// NearestBefore returns the latest recording on channel that starts at
// or before target, along with how far behind the target it starts.
func (ix *Index) NearestBefore(channel int, target time.Time) (Recording, time.Duration, error) {
	row := ix.db.QueryRow(`
		SELECT path, channel, start_unix FROM recordings
		WHERE channel = ? AND start_unix <= ?
		ORDER BY start_unix DESC LIMIT 1`,
		channel, target.Unix())

	var rec Recording
	var startUnix int64
	if err := row.Scan(&rec.Path, &rec.Channel, &startUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recording{}, 0, fmt.Errorf("channel %d: %w", channel, ErrNoRecording)
		}
		return Recording{}, 0, err
	}
	rec.StartTime = time.Unix(startUnix, 0).In(time.Local)
	return rec, target.Sub(rec.StartTime), nil
}

// Count returns the number of indexed recordings.
func (ix *Index) Count() (int, error) {
	var n int
	err := ix.db.QueryRow("SELECT COUNT(*) FROM recordings").Scan(&n)
	return n, err
}
