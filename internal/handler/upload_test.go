package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystar-p/hako/internal/transport"
)

func createTestFile(t *testing.T, h *Handler) int64 {
	t.Helper()
	body, contentType := buildPrepareUploadBody(t, textModeFields())
	req := httptest.NewRequest(http.MethodPost, "/api/prepare_upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandlePrepareUpload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return 1
}

func uploadFields(id, seq int64, isLast bool, content []byte) map[string][]byte {
	return map[string][]byte{
		transport.FieldID:      transport.EncodeInt64(id),
		transport.FieldSeq:     transport.EncodeInt64(seq),
		transport.FieldIsLast:  transport.EncodeBool(isLast),
		transport.FieldContent: content,
	}
}

func TestHandleUpload_SingleLastChunkCompletesFile(t *testing.T) {
	h, fs := newTestHandler()
	id := createTestFile(t, h)

	body, contentType := buildPrepareUploadBody(t, uploadFields(id, 1, true, []byte("ciphertext")))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.True(t, fs.complete[id])
}

func TestHandleUpload_DuplicateSeqRejected(t *testing.T) {
	h, _ := newTestHandler()
	id := createTestFile(t, h)

	for i := 0; i < 2; i++ {
		body, contentType := buildPrepareUploadBody(t, uploadFields(id, 1, false, []byte("a")))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, req)
		if i == 0 {
			require.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestHandleUpload_NonPositiveSeqRejected(t *testing.T) {
	h, _ := newTestHandler()
	id := createTestFile(t, h)

	body, contentType := buildPrepareUploadBody(t, uploadFields(id, 0, true, []byte("a")))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
