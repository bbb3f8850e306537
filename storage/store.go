package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a named blob does not exist in the store.
var ErrNotFound = errors.New("storage: object not found")

// Store is the blob store: raw uploaded bytes addressed by generated name.
type Store interface {
	// Save writes the blob under name and returns the byte count written.
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	// Open returns a seekable reader over the blob plus its size. Each call
	// returns an independent handle; the caller must close it.
	Open(ctx context.Context, name string) (io.ReadSeekCloser, int64, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, name string) (bool, error)
	// List returns the names of all blobs in the store.
	List(ctx context.Context) ([]string, error)
}

var (
	nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
	multipleSpaces  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename reduces an arbitrary client-supplied filename to a safe
// base name. Path separators and traversal sequences never survive.
func sanitizeFilename(name string) string {
	base := filepath.Base(filepath.ToSlash(name))
	base = strings.TrimSpace(base)
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	base = strings.Trim(base, ".")

	const maxLength = 100
	if len(base) > maxLength {
		base = base[:maxLength]
	}
	if base == "" {
		base = "upload"
	}
	return base
}

// GenerateStorageName builds a collision-resistant blob name from the
// original filename: nanosecond timestamp plus a per-request unique suffix,
// so simultaneous uploads of the same file never collide.
func GenerateStorageName(originalName string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), suffix, sanitizeFilename(originalName))
}
