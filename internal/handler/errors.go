package handler

import (
	"errors"
	"net/http"

	"github.com/skystar-p/hako/internal/store"
)

// writeError maps an internal error to a status code and writes a short
// static body. It never leaks internal error text to the client; the
// original error is expected to already have been logged by the caller.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func writeBadRequest(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "bad request")
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal error")
}

// storeErrorStatus maps a store-layer error to a response status, per
// spec section 7: wire validation failures are 400, anything else
// unexpected during a storage operation is 500.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrSeqConflict), errors.Is(err, store.ErrSeqLimit), errors.Is(err, store.ErrInvalidSeq):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
