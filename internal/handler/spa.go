package handler

import (
	"io/fs"
	"net/http"
	"strconv"
	"strings"
)

// spaHandler serves the SPA shell: a numeric path or the empty root path
// gets index.html so the client-side router can mount the upload or
// download view; anything else is looked up as a static asset.
type spaHandler struct {
	indexHTML []byte
	assets    http.Handler
}

func newSPAHandler(assetFS fs.FS, indexHTML []byte) *spaHandler {
	var assets http.Handler
	if assetFS != nil {
		assets = http.FileServer(http.FS(assetFS))
	}
	return &spaHandler{indexHTML: indexHTML, assets: assets}
}

func (s *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if path == "" {
		s.serveIndex(w)
		return
	}

	if isAllDigits(path) {
		id, err := strconv.ParseInt(path, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w)
			return
		}
		s.serveIndex(w)
		return
	}

	if s.assets == nil {
		writeNotFound(w)
		return
	}
	s.assets.ServeHTTP(w, r)
}

func (s *spaHandler) serveIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.indexHTML)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
