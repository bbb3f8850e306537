package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"EchoFM/catalog"
	"EchoFM/logger"
	"EchoFM/model"
)

// ApproveTrackHandler moves a pending track into the public feed.
func (h *APIHandler) ApproveTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StateApproved)
}

// RejectTrackHandler removes a pending track from the review queue. The
// blob stays in place until an explicit delete.
func (h *APIHandler) RejectTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StateRejected)
}

func (h *APIHandler) transition(w http.ResponseWriter, r *http.Request, target model.ModerationState) {
	id := mux.Vars(r)["filename"]

	var (
		track *model.Track
		err   error
	)
	switch target {
	case model.StateApproved:
		track, err = h.moderator.Approve(r.Context(), id)
	case model.StateRejected:
		track, err = h.moderator.Reject(r.Context(), id)
	}

	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			respondError(w, http.StatusNotFound, "track not found")
		case errors.Is(err, catalog.ErrAlreadyInState), errors.Is(err, catalog.ErrInvalidTransition):
			// The registry's current state is authoritative; return it so
			// the caller can reconcile.
			h.respondConflict(w, id, err)
		default:
			logger.Error("moderation transition failed",
				logger.String("trackId", id),
				logger.String("target", string(target)),
				logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "failed to update track state")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"track":   track,
	})
}

func (h *APIHandler) respondConflict(w http.ResponseWriter, id string, cause error) {
	payload := map[string]interface{}{
		"success": false,
		"error":   cause.Error(),
	}
	if track, err := h.registry.Get(id); err == nil {
		payload["state"] = track.State
	}
	respondJSON(w, http.StatusConflict, payload)
}
