package main

import (
	"testing"
	"time"

	"github.com/openpano/unwarp/internal/archive"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2019, time.June, 26, 15, 14, 45, 0, time.Local)
	for _, in := range []string{
		"2019-06-26 15:14:45",
		"2019-06-26T15:14:45",
		"6/26/2019 15:14:45",
		"20190626151445",
	} {
		got, err := parseTimestamp(in)
		if err != nil {
			t.Errorf("parseTimestamp(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestParseChannels(t *testing.T) {
	got, err := parseChannels("1, 2")
	if err != nil {
		t.Fatalf("parseChannels: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("parseChannels = %v, want [1 2]", got)
	}

	if _, err := parseChannels("1,two"); err == nil {
		t.Error("expected error for non-numeric channel")
	}
}

func TestUnwarpCommand(t *testing.T) {
	pair := archive.Pair{
		Left:  archive.Match{Recording: archive.Recording{Path: "a/ch01-20190626151440.mp4"}, SkipFrames: 120},
		Right: archive.Match{Recording: archive.Recording{Path: "a/ch02-20190626151435.mp4"}, SkipFrames: 240},
	}

	got := unwarpCommand(pair, "out.mp4")
	want := "unwarp -l a/ch01-20190626151440.mp4 --skip-left 120 " +
		"-r a/ch02-20190626151435.mp4 --skip-right 240 -o out.mp4"
	if got != want {
		t.Errorf("unwarpCommand = %q, want %q", got, want)
	}
}

func TestOutputNames(t *testing.T) {
	pair := archive.Pair{
		Left:  archive.Match{Recording: archive.Recording{Path: "a/ch01-20190626151440.mp4"}, SkipFrames: 120},
		Right: archive.Match{Recording: archive.Recording{Path: "a/ch02-20190626151435.mp4"}, SkipFrames: 240},
	}
	norm := pair.Normalized()

	// Left starts later (smaller skip), so the beginning-of-files name
	// follows the left recording.
	if got := beginningOutputName(norm); got != "unwarp_ch01-20190626151440.mp4" {
		t.Errorf("beginningOutputName = %q", got)
	}

	target := time.Date(2019, time.June, 26, 15, 14, 45, 0, time.Local)
	if got := timestampOutputName(target); got != "unwarp_20190626151445.mp4" {
		t.Errorf("timestampOutputName = %q", got)
	}
}
