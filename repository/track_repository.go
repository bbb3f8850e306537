package repository

import (
	"context"
	"database/sql"
	"fmt"

	"EchoFM/model"
)

// MySQLCatalogStore persists catalog rows to a single MySQL table. It backs
// the registry's write-through persistence so moderation state survives
// restarts.
type MySQLCatalogStore struct {
	DB *sql.DB
}

// NewMySQLCatalogStore creates a store over an open connection pool.
func NewMySQLCatalogStore(db *sql.DB) *MySQLCatalogStore {
	return &MySQLCatalogStore{DB: db}
}

// Put inserts a new catalog row.
func (r *MySQLCatalogStore) Put(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO catalog_tracks (id, display_name, stored_filename, uploader, size_bytes, mime_type, converted, state, uploaded_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.DB.ExecContext(ctx, query,
		track.ID, track.DisplayName, track.StoredFilename, track.Uploader,
		track.SizeBytes, track.MimeType, track.Converted, string(track.State), track.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert catalog row %s: %w", track.ID, err)
	}
	return nil
}

// UpdateState writes the new moderation state for a row.
func (r *MySQLCatalogStore) UpdateState(ctx context.Context, id string, state model.ModerationState) error {
	query := `UPDATE catalog_tracks SET state = ? WHERE id = ?`
	res, err := r.DB.ExecContext(ctx, query, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to update state for catalog row %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no catalog row for id %s", id)
	}
	return nil
}

// Remove deletes a catalog row. Removing a missing row is not an error.
func (r *MySQLCatalogStore) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM catalog_tracks WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete catalog row %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every persisted catalog row, newest first.
func (r *MySQLCatalogStore) LoadAll(ctx context.Context) ([]*model.Track, error) {
	query := `SELECT id, display_name, stored_filename, uploader, size_bytes, mime_type, converted, state, uploaded_at
	           FROM catalog_tracks ORDER BY uploaded_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog rows: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track := &model.Track{}
		var state string
		err := rows.Scan(&track.ID, &track.DisplayName, &track.StoredFilename, &track.Uploader,
			&track.SizeBytes, &track.MimeType, &track.Converted, &state, &track.UploadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		track.State = model.ModerationState(state)
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during catalog rows iteration: %w", err)
	}
	return tracks, nil
}
