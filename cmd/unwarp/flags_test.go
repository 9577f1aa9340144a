package main

import (
	"testing"
	"time"
)

// TestFlagDefaults verifies the output geometry flags carry the
// documented defaults.
func TestFlagDefaults(t *testing.T) {
	if *outHeight != 2048 {
		t.Errorf("expected height default 2048, got %d", *outHeight)
	}
	if *frameRate != 24 {
		t.Errorf("expected frame-rate default 24, got %v", *frameRate)
	}
	if *aperture != 1.0 {
		t.Errorf("expected aperture default 1.0, got %v", *aperture)
	}
	if *vcodec != "libx264" {
		t.Errorf("expected vcodec default libx264, got %q", *vcodec)
	}
	if *preset != "ultrafast" {
		t.Errorf("expected preset default ultrafast, got %q", *preset)
	}
	if *duration != 0 {
		t.Errorf("expected duration default 0, got %v", *duration)
	}
}

func TestSharedDuration(t *testing.T) {
	// Left has 120s with 240 frames (10s at 24fps) skipped, right a
	// full 105s: the right stream is the limit.
	got := sharedDuration(120*time.Second, 105*time.Second, 240, 0, 24)
	if got != 105*time.Second {
		t.Errorf("sharedDuration = %v, want 105s", got)
	}

	// Skip pushes the left remainder below the right duration.
	got = sharedDuration(120*time.Second, 115*time.Second, 240, 0, 24)
	if got != 110*time.Second {
		t.Errorf("sharedDuration = %v, want 110s", got)
	}
}

func TestClampDuration(t *testing.T) {
	tests := []struct {
		name      string
		requested time.Duration
		available time.Duration
		want      time.Duration
	}{
		{"zero means everything", 0, 90 * time.Second, 90 * time.Second},
		{"within bounds", 30 * time.Second, 90 * time.Second, 30 * time.Second},
		{"clamped", 120 * time.Second, 90 * time.Second, 90 * time.Second},
		{"negative available treated as empty", 10 * time.Second, -5 * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDuration(tt.requested, tt.available); got != tt.want {
				t.Errorf("clampDuration(%v, %v) = %v, want %v",
					tt.requested, tt.available, got, tt.want)
			}
		})
	}
}

func TestFrameSpan(t *testing.T) {
	if got := frameSpan(240, 24); got != 10*time.Second {
		t.Errorf("frameSpan(240, 24) = %v, want 10s", got)
	}
	if got := frameSpan(0, 24); got != 0 {
		t.Errorf("frameSpan(0, 24) = %v, want 0", got)
	}
}
