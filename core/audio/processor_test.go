package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsLegacyFormat(t *testing.T) {
	cases := []struct {
		filename string
		mimeType string
		legacy   bool
	}{
		{"voice-memo.amr", "", true},
		{"voice-memo.AMR", "", true},
		{"voice-memo.amr", "application/octet-stream", true},
		{"upload.bin", "audio/amr", true},
		{"upload.bin", "audio/AMR-WB", true},
		{"song.mp3", "audio/mpeg", false},
		{"song.wav", "audio/wav", false},
		{"song.flac", "", false},
		{"amr-but-not-really.mp3", "audio/mpeg", false},
	}

	for _, c := range cases {
		if got := IsLegacyFormat(c.filename, c.mimeType); got != c.legacy {
			t.Errorf("IsLegacyFormat(%q, %q) = %v, want %v", c.filename, c.mimeType, got, c.legacy)
		}
	}
}

func TestConvertKeepsMp3NamedInputOnFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "note.mp3")
	payload := []byte("#!AMR\nmislabeled amr bytes")
	if err := os.WriteFile(input, payload, 0644); err != nil {
		t.Fatalf("write input failed: %v", err)
	}

	// Conversion fails; the cleanup of the partial output must never touch
	// the input just because both carry an .mp3 name.
	p := NewFFmpegProcessor(filepath.Join(dir, "no-such-ffmpeg"), time.Second)
	if _, err := p.Convert(context.Background(), input); err == nil {
		t.Fatal("expected conversion to fail with a missing binary")
	}

	got, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("input destroyed by failed conversion: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatal("input modified by failed conversion")
	}
	if _, err := os.Stat(filepath.Join(dir, "note.conv.mp3")); !os.IsNotExist(err) {
		t.Fatal("partial output left behind after failed conversion")
	}
}

func TestGetAudioDurationBounded(t *testing.T) {
	dir := t.TempDir()
	probe := filepath.Join(dir, "slow-ffprobe")
	if err := os.WriteFile(probe, []byte("#!/bin/sh\nexec sleep 30\n"), 0755); err != nil {
		t.Fatalf("write stub ffprobe failed: %v", err)
	}

	p := NewFFmpegProcessor(filepath.Join(dir, "slow-ffmpeg"), 100*time.Millisecond)
	start := time.Now()
	if _, err := p.GetAudioDuration(context.Background(), "whatever.mp3"); err == nil {
		t.Fatal("expected the hung probe to fail")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("probe was not killed by its deadline, took %s", elapsed)
	}
}

func TestConvertMissingBinary(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.amr")
	if err := os.WriteFile(input, []byte("#!AMR\n"), 0644); err != nil {
		t.Fatalf("write input failed: %v", err)
	}

	p := NewFFmpegProcessor(filepath.Join(dir, "no-such-ffmpeg"), time.Second)
	if _, err := p.Convert(context.Background(), input); err == nil {
		t.Fatal("expected conversion to fail with a missing binary")
	}

	// The input must be left untouched for the fallback path.
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("input file disturbed by failed conversion: %v", err)
	}
	// No partial output may remain.
	if _, err := os.Stat(filepath.Join(dir, "input.mp3")); !os.IsNotExist(err) {
		t.Fatal("partial output left behind after failed conversion")
	}
}
