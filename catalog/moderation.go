package catalog

import (
	"context"

	"EchoFM/logger"
	"EchoFM/model"
	"EchoFM/storage"
)

// Moderator applies admin decisions to catalog entries. Approve and Reject
// are pure state transitions; Delete also removes the backing blob.
type Moderator struct {
	registry *Registry
	blobs    storage.Store
}

// NewModerator wires the moderation workflow over a registry and blob store.
func NewModerator(registry *Registry, blobs storage.Store) *Moderator {
	return &Moderator{registry: registry, blobs: blobs}
}

// Approve moves a pending track into the public feed.
func (m *Moderator) Approve(ctx context.Context, id string) (*model.Track, error) {
	track, err := m.registry.UpdateState(ctx, id, model.StateApproved)
	if err != nil {
		return nil, err
	}
	logger.Info("track approved",
		logger.String("trackId", id),
		logger.String("uploader", track.Uploader))
	return track, nil
}

// Reject removes a pending track from the review queue. The blob is kept
// until an explicit delete.
func (m *Moderator) Reject(ctx context.Context, id string) (*model.Track, error) {
	track, err := m.registry.UpdateState(ctx, id, model.StateRejected)
	if err != nil {
		return nil, err
	}
	logger.Info("track rejected",
		logger.String("trackId", id),
		logger.String("uploader", track.Uploader))
	return track, nil
}

// Delete removes a track from any state. The blob is deleted first; if that
// fails the registry entry is left untouched so nothing ever points at a
// blob that was "probably" deleted. Deleting an already-deleted id reports
// ErrNotFound.
func (m *Moderator) Delete(ctx context.Context, id string) error {
	err := m.registry.Remove(ctx, id, func(track *model.Track) error {
		return m.blobs.Delete(ctx, track.StoredFilename)
	})
	if err != nil {
		return err
	}
	logger.Info("track deleted", logger.String("trackId", id))
	return nil
}
