package server

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"EchoFM/catalog"
	"EchoFM/logger"
)

// StartBlobWatcher watches the media directory and flags blobs that vanish
// outside the moderation workflow while still referenced by the catalog.
// The registry is not mutated; the warning is the signal an operator acts
// on. The watcher stops when ctx is cancelled.
func StartBlobWatcher(ctx context.Context, dir string, registry *catalog.Registry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if strings.HasSuffix(name, ".tmp") {
					continue
				}
				if _, err := registry.Get(name); err == nil {
					logger.Warn("blob removed out-of-band while still in catalog",
						logger.String("blob", name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("blob watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}
