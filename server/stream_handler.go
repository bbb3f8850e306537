package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/logger"
	"EchoFM/model"
	"EchoFM/storage"
)

var (
	errMalformedRange     = errors.New("malformed range header")
	errUnsatisfiableRange = errors.New("range not satisfiable")
)

// parseRange parses a single "bytes=<start>-<end>" header against a blob of
// the given size. An omitted start is malformed; an omitted end defaults to
// size-1. Anything outside 0 <= start <= end <= size-1 is unsatisfiable.
func parseRange(header string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, errMalformedRange
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if spec == "" || strings.Contains(spec, ",") {
		return 0, 0, errMalformedRange
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, errMalformedRange
	}
	startStr := strings.TrimSpace(spec[:dash])
	endStr := strings.TrimSpace(spec[dash+1:])

	if startStr == "" {
		return 0, 0, errMalformedRange
	}
	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errMalformedRange
	}

	if endStr == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return 0, 0, errMalformedRange
		}
	}

	if start > end || end >= size {
		return 0, 0, errUnsatisfiableRange
	}
	return start, end, nil
}

// StreamTrackHandler serves catalog bytes with byte-range support for
// seekable playback. Only approved tracks are publicly reachable; pending
// and rejected tracks stream for the admin view only.
func (h *APIHandler) StreamTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["filename"]

	track, err := h.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}
	if track.State != model.StateApproved && !h.isAdmin(r) {
		// Hide unapproved tracks from the public surface entirely.
		respondError(w, http.StatusNotFound, "track not found")
		return
	}

	// Independent handle per request: concurrent range reads never share a
	// cursor, and an open handle survives a racing delete.
	reader, size, err := h.blobs.Open(r.Context(), track.StoredFilename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "track not found")
			return
		}
		logger.Error("failed to open blob",
			logger.String("trackId", id),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to open track")
		return
	}
	defer reader.Close()

	contentType := track.MimeType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	h.recordPlay(track)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, reader); err != nil {
			// Usually the client hung up mid-stream.
			logger.Debug("stream aborted",
				logger.String("trackId", id),
				logger.ErrorField(err))
		}
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		if errors.Is(err, errUnsatisfiableRange) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			respondError(w, http.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")
			return
		}
		respondError(w, http.StatusBadRequest, "malformed range header")
		return
	}

	if _, err := reader.Seek(start, io.SeekStart); err != nil {
		logger.Error("failed to seek blob",
			logger.String("trackId", id),
			logger.Int64("offset", start),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to read track")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.CopyN(w, reader, length); err != nil {
		logger.Debug("range stream aborted",
			logger.String("trackId", id),
			logger.ErrorField(err))
	}
}

// recordPlay bumps the play counter for public listens, best-effort.
func (h *APIHandler) recordPlay(track *model.Track) {
	if h.stats == nil || track.State != model.StateApproved {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.stats.RecordPlay(ctx, track.ID); err != nil {
			logger.Debug("failed to record play",
				logger.String("trackId", track.ID),
				logger.ErrorField(err))
		}
	}()
}
