package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/skystar-p/hako/internal/store"
)

// HandleDownload streams the ciphertext chunks of a completed, available
// file in order. Chunks are fetched and written one at a time rather than
// buffered whole in memory: each ReadChunk call is a short, independent
// store operation, so no transaction or gate is held across the client's
// network await (see DESIGN.md for the Open Question this resolves).
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeBadRequest(w)
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

	lastSeqStart := time.Now()
	lastSeq, err := h.store.GetLastSeq(r.Context(), id)
	h.recordStoreOp("get_last_seq", err, time.Since(lastSeqStart).Seconds())
	if err != nil {
		h.logger.Error().Err(err).Int64("id", id).Msg("get last seq failed")
		writeInternalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for seq := int64(1); seq <= lastSeq; seq++ {
		chunkStart := time.Now()
		content, err := h.store.ReadChunk(r.Context(), id, seq)
		h.recordStoreOp("read_chunk", err, time.Since(chunkStart).Seconds())
		if err != nil {
			h.logger.Error().Err(err).Int64("id", id).Int64("seq", seq).Msg("read chunk failed mid-download")
			return
		}
		if _, err := w.Write(content); err != nil {
			h.logger.Warn().Err(err).Int64("id", id).Msg("download write failed, client likely disconnected")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if h.metrics != nil {
		h.metrics.DownloadsTotal.Inc()
	}
}
