package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"EchoFM/logger"
	"EchoFM/model"
)

// LikeTrackHandler bumps the like counter for an approved track.
func (h *APIHandler) LikeTrackHandler(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "stats are not enabled")
		return
	}

	id := mux.Vars(r)["filename"]
	track, err := h.registry.Get(id)
	if err != nil || track.State != model.StateApproved {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}

	likes, err := h.stats.Like(r.Context(), id)
	if err != nil {
		logger.Error("failed to record like",
			logger.String("trackId", id),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to record like")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"likes":   likes,
	})
}

// TrackStatsHandler returns the like and play counters for a track.
func (h *APIHandler) TrackStatsHandler(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "stats are not enabled")
		return
	}

	id := mux.Vars(r)["filename"]
	track, err := h.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}
	if track.State != model.StateApproved && !h.isAdmin(r) {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}

	likes, plays, err := h.stats.Counts(r.Context(), id)
	if err != nil {
		logger.Error("failed to read counters",
			logger.String("trackId", id),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"likes":   likes,
		"plays":   plays,
	})
}
