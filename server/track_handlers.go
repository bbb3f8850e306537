package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/catalog"
	"EchoFM/core/ingest"
	"EchoFM/logger"
	"EchoFM/model"
)

// multipart form overhead allowed on top of the raw file size limit.
const formOverheadBytes = 1 << 20

// UploadTrackHandler accepts a multipart upload (field "song", optional
// "uploader") and registers it as a pending track.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxUploadBytes

	// Oversized requests are rejected before anything touches the disk.
	if r.ContentLength > maxBytes+formOverheadBytes {
		logger.Warn("upload rejected, request too large",
			logger.Int64("contentLength", r.ContentLength),
			logger.Int64("maxBytes", maxBytes))
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large, maximum size is %d MB", maxBytes>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("failed to parse upload form",
			logger.String("remoteAddr", r.RemoteAddr),
			logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "failed to parse upload form")
		return
	}

	file, header, err := r.FormFile("song")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondError(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	defer file.Close()

	uploader := r.FormValue("uploader")
	mimeType := header.Header.Get("Content-Type")

	track, err := h.ingest.Submit(r.Context(), file, header.Size, header.Filename, mimeType, uploader)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrNoFile):
			respondError(w, http.StatusBadRequest, "no file uploaded")
		case errors.Is(err, ingest.ErrTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file too large, maximum size is %d MB", maxBytes>>20))
		default:
			logger.Error("upload failed",
				logger.String("originalName", header.Filename),
				logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "failed to store upload")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"filename":     track.ID,
		"originalName": header.Filename,
		"uploader":     track.Uploader,
		"converted":    track.Converted,
	})
}

// ListTracksHandler returns the catalog. The public feed contains approved
// tracks only; the admin view returns everything, optionally filtered by a
// ?state= query parameter.
func (h *APIHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	var tracks []*model.Track
	if h.isAdmin(r) {
		if stateParam := r.URL.Query().Get("state"); stateParam != "" {
			state := model.ModerationState(stateParam)
			if !state.Valid() {
				respondError(w, http.StatusBadRequest, "unknown moderation state: "+stateParam)
				return
			}
			tracks = h.registry.List(state)
		} else {
			tracks = h.registry.List()
		}
	} else {
		tracks = h.registry.List(model.StateApproved)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"songs":   tracks,
	})
}

// DeleteTrackHandler removes a track and its blob. Deleting an unknown or
// already-deleted id reports not found.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["filename"]

	if err := h.moderator.Delete(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "track not found")
			return
		}
		logger.Error("delete failed",
			logger.String("trackId", id),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to delete track")
		return
	}

	if h.stats != nil {
		// Counter cleanup is best-effort; the delete already succeeded.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.stats.Forget(ctx, id); err != nil {
			logger.Warn("failed to drop counters",
				logger.String("trackId", id),
				logger.ErrorField(err))
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"state":   model.StateDeleted,
	})
}
