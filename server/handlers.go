package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"EchoFM/cache"
	"EchoFM/catalog"
	"EchoFM/config"
	"EchoFM/core/ingest"
	"EchoFM/logger"
	"EchoFM/storage"
)

// APIHandler carries the wired services for all HTTP endpoints.
type APIHandler struct {
	ingest    *ingest.Service
	registry  *catalog.Registry
	moderator *catalog.Moderator
	blobs     storage.Store
	stats     *cache.Stats // nil when Redis is not configured
	cfg       *config.Config
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	ingestSvc *ingest.Service,
	registry *catalog.Registry,
	moderator *catalog.Moderator,
	blobs storage.Store,
	stats *cache.Stats,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		ingest:    ingestSvc,
		registry:  registry,
		moderator: moderator,
		blobs:     blobs,
		stats:     stats,
		cfg:       cfg,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/songs", h.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/songs", h.ListTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{filename}", h.StreamTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{filename}", h.AdminOnly(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/songs/{filename}/approve", h.AdminOnly(h.ApproveTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/songs/{filename}/reject", h.AdminOnly(h.RejectTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/songs/{filename}/like", h.LikeTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/songs/{filename}/stats", h.TrackStatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
}

// isAdmin checks the shared admin token. Authentication policy itself is
// out of scope here; callers arrive pre-validated by this predicate.
func (h *APIHandler) isAdmin(r *http.Request) bool {
	if h.cfg.AdminToken == "" {
		return false
	}
	token := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) == 1
}

// AdminOnly rejects requests that do not carry the admin token.
func (h *APIHandler) AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			respondError(w, http.StatusForbidden, "admin authorization required")
			return
		}
		next(w, r)
	}
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write response", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
