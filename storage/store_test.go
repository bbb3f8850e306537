package storage

import (
	"strings"
	"testing"
)

func TestGenerateStorageNameUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := GenerateStorageName("song.mp3")
		if seen[name] {
			t.Fatalf("duplicate storage name generated: %s", name)
		}
		seen[name] = true
	}
}

func TestGenerateStorageNameKeepsExtension(t *testing.T) {
	name := GenerateStorageName("My Song.mp3")
	if !strings.HasSuffix(name, ".mp3") {
		t.Fatalf("expected .mp3 suffix, got %s", name)
	}
	if strings.Contains(name, " ") {
		t.Fatalf("expected no spaces in storage name, got %s", name)
	}
}

func TestSanitizeFilenameStripsTraversal(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":  "passwd",
		"..\\..\\evil.mp3":  "evil.mp3",
		"dir/sub/track.amr": "track.amr",
		"   ":               "upload",
		"températüre.mp3":   "tempratre.mp3",
	}
	for in, want := range cases {
		got := sanitizeFilename(in)
		if got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
		if strings.Contains(got, "/") || strings.Contains(got, "..") {
			t.Errorf("sanitizeFilename(%q) = %q still contains path elements", in, got)
		}
	}
}
