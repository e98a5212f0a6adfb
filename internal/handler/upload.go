package handler

import (
	"net/http"
	"time"

	"github.com/skystar-p/hako/internal/transport"
)

// HandleUpload appends one chunk to an existing file.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, transport.UploadBodyLimit)

	mr, err := r.MultipartReader()
	if err != nil {
		writeBadRequest(w)
		return
	}

	fields, err := readRecognizedParts(mr, map[string]bool{
		transport.FieldID:      true,
		transport.FieldSeq:     true,
		transport.FieldIsLast:  true,
		transport.FieldContent: true,
	})
	if err != nil {
		writeBadRequest(w)
		return
	}

	id, err := transport.DecodeInt64(fields[transport.FieldID])
	if err != nil {
		writeBadRequest(w)
		return
	}
	seq, err := transport.DecodeInt64(fields[transport.FieldSeq])
	if err != nil {
		writeBadRequest(w)
		return
	}
	isLast, err := transport.DecodeBool(fields[transport.FieldIsLast])
	if err != nil {
		writeBadRequest(w)
		return
	}
	content := fields[transport.FieldContent]

	start := time.Now()
	err = h.store.AppendChunk(r.Context(), id, seq, content, isLast)
	h.recordStoreOp("append_chunk", err, time.Since(start).Seconds())
	if err != nil {
		status := storeErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Int64("id", id).Int64("seq", seq).Msg("append chunk failed")
		}
		writeError(w, status, http.StatusText(status))
		return
	}

	if h.metrics != nil {
		h.metrics.ChunksAppended.Inc()
		h.metrics.ChunkBytesTotal.Add(float64(len(content)))
		if isLast {
			h.metrics.UploadsCompleted.Inc()
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
