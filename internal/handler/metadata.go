package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/skystar-p/hako/internal/store"
	"github.com/skystar-p/hako/internal/transport"
)

// HandleMetadata returns the public parameters and computed size of a
// completed, available file. An id that is malformed is 400; one that is
// well-formed but unknown, incomplete, or expired is 404 — never 400 — per
// the original server's handlers.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeBadRequest(w)
		return
	}

	if cached, ok := h.cache.Get(r.Context(), id); ok {
		writeMetadataResponse(w, cached)
		return
	}

	start := time.Now()
	meta, err := h.store.GetMetadata(r.Context(), id)
	h.recordStoreOp("get_metadata", err, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w)
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("get metadata failed")
		writeInternalError(w)
		return
	}

	h.cache.Set(r.Context(), id, meta)
	writeMetadataResponse(w, meta)
}

func writeMetadataResponse(w http.ResponseWriter, meta *store.FileMeta) {
	resp := transport.MetadataResponse{
		Filename:      base64.StdEncoding.EncodeToString(meta.Filename),
		Salt:          base64.StdEncoding.EncodeToString(meta.Salt),
		Nonce:         base64.StdEncoding.EncodeToString(meta.Nonce),
		FilenameNonce: base64.StdEncoding.EncodeToString(meta.FilenameNonce),
		IsText:        meta.IsText,
		Size:          meta.Size,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// parseID parses a positive int64 id from a query parameter. Non-integer or
// non-positive values are rejected at the wire boundary.
func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("handler: missing id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("handler: id must be positive")
	}
	return id, nil
}
