package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skystar-p/hako/internal/transport"
)

// HandlePrepareUpload creates a file row from its public parameters and
// returns the assigned id. Fields are read from a streaming multipart
// reader so bytes belonging to an unrecognized field name are never
// buffered.
func (h *Handler) HandlePrepareUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, transport.PrepareUploadBodyLimit)

	mr, err := r.MultipartReader()
	if err != nil {
		writeBadRequest(w)
		return
	}

	fields, err := readRecognizedParts(mr, map[string]bool{
		transport.FieldSalt:          true,
		transport.FieldNonce:         true,
		transport.FieldFilenameNonce: true,
		transport.FieldFilename:      true,
		transport.FieldIsText:        true,
	})
	if err != nil {
		writeBadRequest(w)
		return
	}

	isText, err := transport.DecodeBool(fields[transport.FieldIsText])
	if err != nil {
		writeBadRequest(w)
		return
	}

	pf := transport.PrepareUploadFields{
		Salt:          fields[transport.FieldSalt],
		Nonce:         fields[transport.FieldNonce],
		FilenameNonce: fields[transport.FieldFilenameNonce],
		Filename:      fields[transport.FieldFilename],
		IsText:        isText,
	}
	if err := transport.ValidatePrepareUpload(pf); err != nil {
		writeBadRequest(w)
		return
	}

	start := time.Now()
	id, err := h.store.CreateFile(r.Context(), pf.Salt, pf.Nonce, pf.FilenameNonce, pf.Filename, pf.IsText)
	h.recordStoreOp("create_file", err, time.Since(start).Seconds())
	if err != nil {
		h.logger.Error().Err(err).Msg("create file failed")
		writeInternalError(w)
		return
	}

	if h.metrics != nil {
		h.metrics.UploadsStarted.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(transport.PrepareUploadResponse{ID: id})
}

// readRecognizedParts drains a multipart reader, collecting the body of
// every part whose form name is in recognized into a map and discarding
// the rest without buffering them.
func readRecognizedParts(mr *multipart.Reader, recognized map[string]bool) (map[string][]byte, error) {
	fields := make(map[string][]byte)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		name := p.FormName()
		if !recognized[name] {
			continue
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, err
		}
		fields[name] = data
	}
	return fields, nil
}
