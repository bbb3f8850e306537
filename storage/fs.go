package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps blobs as plain files in a single directory.
type FSStore struct {
	dataDir string
}

// NewFSStore creates the data directory if needed and returns a store over it.
func NewFSStore(dataDir string) (*FSStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dataDir, err)
	}
	return &FSStore{dataDir: dataDir}, nil
}

// Dir returns the directory blobs are stored in.
func (s *FSStore) Dir() string {
	return s.dataDir
}

// LocalPath returns the on-disk path for a blob name. The transcoder uses
// this to hand ffmpeg a real file instead of copying bytes around.
func (s *FSStore) LocalPath(name string) string {
	return filepath.Join(s.dataDir, name)
}

// Save writes the blob through a temp file and renames it into place, so a
// partial write never becomes visible under the final name.
func (s *FSStore) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	fullPath := s.LocalPath(name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write blob %s: %w", name, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync blob %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close blob %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename blob %s into place: %w", name, err)
	}
	return size, nil
}

// Open returns an independent file handle per call. An open handle keeps
// working after the directory entry is unlinked, so a delete racing an
// in-flight stream never produces a torn read.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, int64, error) {
	f, err := os.Open(s.LocalPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open blob %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat blob %s: %w", name, err)
	}
	return f, info.Size(), nil
}

// Delete removes the blob. A missing blob is treated as already deleted.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	err := os.Remove(s.LocalPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the blob is present on disk.
func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.LocalPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", name, err)
	}
	return true, nil
}

// List returns the names of all blobs. Temp files from in-progress saves
// are skipped.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list media directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
