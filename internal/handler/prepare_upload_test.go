package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystar-p/hako/internal/transport"
)

func TestHandlePrepareUpload_FileModeSucceeds(t *testing.T) {
	h, fs := newTestHandler()
	body, contentType := buildPrepareUploadBody(t, fileModeFields([]byte("ciphertext-filename")))

	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Contains(t, fs.files, int64(1))
}

func TestHandlePrepareUpload_TextModeSucceeds(t *testing.T) {
	h, _ := newTestHandler()
	body, contentType := buildPrepareUploadBody(t, textModeFields())

	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePrepareUpload_ModeNonceMismatchRejected(t *testing.T) {
	h, _ := newTestHandler()
	fields := fileModeFields([]byte("x"))
	fields[transport.FieldNonce] = make([]byte, transport.TextNonceLen)
	body, contentType := buildPrepareUploadBody(t, fields)

	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePrepareUpload_MissingSaltRejected(t *testing.T) {
	h, _ := newTestHandler()
	fields := textModeFields()
	delete(fields, transport.FieldSalt)
	body, contentType := buildPrepareUploadBody(t, fields)

	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePrepareUpload_UnrecognizedFieldIgnored(t *testing.T) {
	h, _ := newTestHandler()
	fields := textModeFields()
	fields["bogus"] = []byte("should be ignored")
	body, contentType := buildPrepareUploadBody(t, fields)

	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePrepareUpload_NotMultipartRejected(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", nil)
	rec := httptest.NewRecorder()

	h.HandlePrepareUpload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
