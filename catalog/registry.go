package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"EchoFM/model"
	"EchoFM/storage"
)

// StateStore persists registry contents so moderation state survives
// process restarts. Writes happen synchronously on every mutation.
type StateStore interface {
	Put(ctx context.Context, track *model.Track) error
	UpdateState(ctx context.Context, id string, state model.ModerationState) error
	Remove(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*model.Track, error)
}

// allowedTransitions holds the admin-triggered moderation transitions.
// Deletion is handled by Remove and is valid from any state.
var allowedTransitions = map[model.ModerationState][]model.ModerationState{
	model.StatePending: {model.StateApproved, model.StateRejected},
}

func transitionAllowed(from, to model.ModerationState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Registry is the authoritative in-memory catalog of tracks. A coarse
// RWMutex guards the map for insert/list/get; every mutation of a single
// track additionally holds that track's id lock, so concurrent moderation
// of different tracks never serializes on each other.
type Registry struct {
	mu     sync.RWMutex
	tracks map[string]*model.Track

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	store StateStore // optional durable write-through
}

// NewRegistry creates an empty registry. store may be nil for purely
// in-memory operation.
func NewRegistry(store StateStore) *Registry {
	return &Registry{
		tracks: make(map[string]*model.Track),
		locks:  make(map[string]*sync.Mutex),
		store:  store,
	}
}

// idLock returns the mutex for one track id, creating it on first use.
// Entries are never removed: ids are never reused, and a stale lock entry
// is a few dozen bytes.
func (r *Registry) idLock(id string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Load restores persisted rows into memory, dropping any row whose blob is
// no longer present in the store. Returns how many rows were loaded and
// dropped.
func (r *Registry) Load(ctx context.Context, blobs storage.Store) (loaded, dropped int, err error) {
	if r.store == nil {
		return 0, 0, nil
	}

	rows, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load catalog rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		exists, err := blobs.Exists(ctx, row.StoredFilename)
		if err != nil {
			return loaded, dropped, fmt.Errorf("failed to check blob %s: %w", row.StoredFilename, err)
		}
		if !exists {
			// Orphaned row: remove it rather than serving a track with no bytes.
			if err := r.store.Remove(ctx, row.ID); err != nil {
				return loaded, dropped, fmt.Errorf("failed to drop orphaned row %s: %w", row.ID, err)
			}
			dropped++
			continue
		}
		r.tracks[row.ID] = row.Clone()
		loaded++
	}
	return loaded, dropped, nil
}

// Insert adds a new track. The durable row is written before the track
// becomes visible in memory, so a persistence failure never leaves a
// half-registered track.
func (r *Registry) Insert(ctx context.Context, track *model.Track) error {
	lock := r.idLock(track.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	_, exists := r.tracks[track.ID]
	r.mu.RUnlock()
	if exists {
		return ErrDuplicateID
	}

	if r.store != nil {
		if err := r.store.Put(ctx, track); err != nil {
			return fmt.Errorf("failed to persist track %s: %w", track.ID, err)
		}
	}

	r.mu.Lock()
	r.tracks[track.ID] = track.Clone()
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the track, or ErrNotFound.
func (r *Registry) Get(id string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// List returns tracks newest first. With no filter it returns everything
// (the admin view); with filters it returns only tracks in those states.
func (r *Registry) List(states ...model.ModerationState) []*model.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		if len(states) > 0 {
			match := false
			for _, s := range states {
				if t.State == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, t.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// UpdateState applies a moderation transition and returns the updated
// track. The second of two racing identical transitions observes the
// already-updated state and gets ErrAlreadyInState.
func (r *Registry) UpdateState(ctx context.Context, id string, state model.ModerationState) (*model.Track, error) {
	lock := r.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	t, ok := r.tracks[id]
	var current model.ModerationState
	if ok {
		current = t.State
	}
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if current == state {
		return nil, ErrAlreadyInState
	}
	if !transitionAllowed(current, state) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, state)
	}

	// Persist first: the in-memory state only moves once the durable row has.
	if r.store != nil {
		if err := r.store.UpdateState(ctx, id, state); err != nil {
			return nil, fmt.Errorf("failed to persist state for track %s: %w", id, err)
		}
	}

	r.mu.Lock()
	t.State = state
	updated := t.Clone()
	r.mu.Unlock()
	return updated, nil
}

// Remove purges a track after running cleanup against a copy of the record.
// If cleanup fails the registry entry is left untouched; this is how the
// moderation workflow guarantees blob removal happens before the purge.
func (r *Registry) Remove(ctx context.Context, id string, cleanup func(*model.Track) error) error {
	lock := r.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	t, ok := r.tracks[id]
	var snapshot *model.Track
	if ok {
		snapshot = t.Clone()
	}
	r.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	if cleanup != nil {
		if err := cleanup(snapshot); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.tracks, id)
	r.mu.Unlock()

	// The blob is already gone, so the in-memory purge stands even if the
	// durable row cannot be removed; startup reconciliation drops such rows.
	if r.store != nil {
		if err := r.store.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove persisted row for track %s: %w", id, err)
		}
	}
	return nil
}
