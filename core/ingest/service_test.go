package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"EchoFM/catalog"
	"EchoFM/model"
	"EchoFM/storage"
)

// fakeConverter mimics ffmpeg: it writes an output file next to the input,
// or fails without touching anything.
type fakeConverter struct {
	fail  bool
	calls int
}

func (c *fakeConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	c.calls++
	if c.fail {
		return "", fmt.Errorf("converter unavailable")
	}
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp3"
	if outputPath == inputPath {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".conv.mp3"
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, append([]byte("MP3:"), data...), 0644); err != nil {
		return "", err
	}
	return outputPath, nil
}

func newService(t *testing.T, conv *fakeConverter) (*Service, *storage.FSStore, *catalog.Registry) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	reg := catalog.NewRegistry(nil)
	return NewService(store, reg, conv, 1<<20), store, reg
}

func TestSubmitRoundTrip(t *testing.T) {
	svc, store, reg := newService(t, &fakeConverter{})
	ctx := context.Background()
	payload := []byte("plain mp3 payload")

	track, err := svc.Submit(ctx, bytes.NewReader(payload), int64(len(payload)), "My Song.mp3", "audio/mpeg", "alice")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if track.State != model.StatePending {
		t.Fatalf("expected pending state, got %s", track.State)
	}
	if track.Converted {
		t.Fatal("plain mp3 should not be converted")
	}
	if track.DisplayName != "My Song" {
		t.Fatalf("expected display name 'My Song', got %q", track.DisplayName)
	}
	if track.Uploader != "alice" {
		t.Fatalf("expected uploader alice, got %q", track.Uploader)
	}
	if track.SizeBytes != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), track.SizeBytes)
	}

	reader, _, err := store.Open(ctx, track.StoredFilename)
	if err != nil {
		t.Fatalf("blob missing after submit: %v", err)
	}
	defer reader.Close()
	got, _ := io.ReadAll(reader)
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from uploaded bytes")
	}

	if _, err := reg.Get(track.ID); err != nil {
		t.Fatalf("track not registered: %v", err)
	}
}

func TestSubmitNoFile(t *testing.T) {
	svc, store, _ := newService(t, &fakeConverter{})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, bytes.NewReader(nil), 0, "empty.mp3", "audio/mpeg", ""); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}

	// No side effects: nothing may have been written.
	names, _ := store.List(ctx)
	if len(names) != 0 {
		t.Fatalf("expected empty store, got %v", names)
	}
}

func TestSubmitTooLarge(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	svc := NewService(store, catalog.NewRegistry(nil), &fakeConverter{}, 16)
	ctx := context.Background()

	payload := strings.Repeat("x", 32)
	if _, err := svc.Submit(ctx, strings.NewReader(payload), int64(len(payload)), "big.mp3", "audio/mpeg", ""); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	names, _ := store.List(ctx)
	if len(names) != 0 {
		t.Fatalf("oversized upload must not leave a blob, got %v", names)
	}
}

func TestSubmitLegacyConversion(t *testing.T) {
	conv := &fakeConverter{}
	svc, store, _ := newService(t, conv)
	ctx := context.Background()
	payload := []byte("#!AMR\namr audio")

	track, err := svc.Submit(ctx, bytes.NewReader(payload), int64(len(payload)), "amr-test.amr", "audio/amr", "bob")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if !track.Converted {
		t.Fatal("legacy upload should be converted")
	}
	if conv.calls != 1 {
		t.Fatalf("expected one converter call, got %d", conv.calls)
	}
	if !strings.HasSuffix(track.StoredFilename, ".mp3") {
		t.Fatalf("expected .mp3 stored name, got %s", track.StoredFilename)
	}
	if track.MimeType != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg mime, got %s", track.MimeType)
	}
	if track.State != model.StatePending {
		t.Fatalf("conversion must not change initial state, got %s", track.State)
	}

	// Exactly one blob: the converted one. The original is gone.
	names, _ := store.List(ctx)
	if len(names) != 1 || names[0] != track.StoredFilename {
		t.Fatalf("expected only the converted blob, got %v", names)
	}
}

func TestSubmitConversionFailureFallsBack(t *testing.T) {
	conv := &fakeConverter{fail: true}
	svc, store, reg := newService(t, conv)
	ctx := context.Background()
	payload := []byte("#!AMR\namr audio")

	track, err := svc.Submit(ctx, bytes.NewReader(payload), int64(len(payload)), "voices.amr", "audio/amr", "")
	if err != nil {
		t.Fatalf("upload must survive converter failure, got %v", err)
	}

	if track.Converted {
		t.Fatal("failed conversion must be flagged as not converted")
	}
	if !strings.HasSuffix(track.StoredFilename, ".amr") {
		t.Fatalf("expected original .amr blob, got %s", track.StoredFilename)
	}

	// The original blob is retained untouched and the track is registered.
	reader, _, err := store.Open(ctx, track.StoredFilename)
	if err != nil {
		t.Fatalf("original blob missing after fallback: %v", err)
	}
	defer reader.Close()
	got, _ := io.ReadAll(reader)
	if !bytes.Equal(got, payload) {
		t.Fatal("original blob modified by failed conversion")
	}
	if _, err := reg.Get(track.ID); err != nil {
		t.Fatalf("fallback track not registered: %v", err)
	}
}

func TestSubmitMislabeledMp3Conversion(t *testing.T) {
	conv := &fakeConverter{}
	svc, store, _ := newService(t, conv)
	ctx := context.Background()
	payload := []byte("#!AMR\namr bytes behind an mp3 name")

	// Legacy detection via MIME only: the filename already says .mp3, so
	// the converted blob keeps the same name as the original.
	track, err := svc.Submit(ctx, bytes.NewReader(payload), int64(len(payload)), "note.mp3", "audio/amr", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !track.Converted {
		t.Fatal("mislabeled legacy upload should be converted")
	}

	names, _ := store.List(ctx)
	if len(names) != 1 || names[0] != track.StoredFilename {
		t.Fatalf("expected only the converted blob, got %v", names)
	}
	reader, _, err := store.Open(ctx, track.StoredFilename)
	if err != nil {
		t.Fatalf("converted blob missing: %v", err)
	}
	defer reader.Close()
	got, _ := io.ReadAll(reader)
	if !bytes.HasPrefix(got, []byte("MP3:")) {
		t.Fatal("blob still holds the pre-conversion bytes")
	}
}

func TestSubmitMislabeledMp3ConversionFailure(t *testing.T) {
	conv := &fakeConverter{fail: true}
	svc, store, reg := newService(t, conv)
	ctx := context.Background()
	payload := []byte("#!AMR\namr bytes behind an mp3 name")

	track, err := svc.Submit(ctx, bytes.NewReader(payload), int64(len(payload)), "note.mp3", "audio/amr", "")
	if err != nil {
		t.Fatalf("upload must survive converter failure, got %v", err)
	}
	if track.Converted {
		t.Fatal("failed conversion must be flagged as not converted")
	}

	// The registered track must still have its bytes: the failed conversion
	// may not have removed the original blob.
	reader, _, err := store.Open(ctx, track.StoredFilename)
	if err != nil {
		t.Fatalf("original blob destroyed by failed conversion: %v", err)
	}
	defer reader.Close()
	got, _ := io.ReadAll(reader)
	if !bytes.Equal(got, payload) {
		t.Fatal("original blob modified by failed conversion")
	}
	if _, err := reg.Get(track.ID); err != nil {
		t.Fatalf("fallback track not registered: %v", err)
	}
}

func TestSubmitConcurrentSameName(t *testing.T) {
	svc, store, reg := newService(t, &fakeConverter{})
	ctx := context.Background()

	const uploads = 10
	var wg sync.WaitGroup
	ids := make(chan string, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("payload-%d", i)
			track, err := svc.Submit(ctx, strings.NewReader(payload), int64(len(payload)), "same.mp3", "audio/mpeg", "")
			if err != nil {
				t.Errorf("concurrent submit failed: %v", err)
				return
			}
			ids <- track.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate track id %s for simultaneous uploads", id)
		}
		seen[id] = true
	}
	if len(seen) != uploads {
		t.Fatalf("expected %d distinct tracks, got %d", uploads, len(seen))
	}

	names, _ := store.List(ctx)
	if len(names) != uploads {
		t.Fatalf("expected %d distinct blobs, got %d", uploads, len(names))
	}
	if got := len(reg.List()); got != uploads {
		t.Fatalf("expected %d catalog entries, got %d", uploads, got)
	}
}
