package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/skystar-p/hako/internal/transport"
)

func newTestHandler() (*Handler, *fakeStore) {
	fs := newFakeStore()
	h := New(Config{
		Store:  fs,
		Logger: zerolog.Nop(),
	})
	return h, fs
}

// buildPrepareUploadBody constructs a multipart body for prepare_upload.
func buildPrepareUploadBody(t *testing.T, fields map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, val := range fields {
		w, err := mw.CreateFormField(name)
		require.NoError(t, err)
		_, err = w.Write(val)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func fileModeFields(filename []byte) map[string][]byte {
	return map[string][]byte{
		transport.FieldSalt:          make([]byte, transport.SaltLen),
		transport.FieldNonce:         make([]byte, transport.StreamNonceLen),
		transport.FieldFilenameNonce: make([]byte, transport.FilenameNonceLen),
		transport.FieldFilename:      filename,
		transport.FieldIsText:        transport.EncodeBool(false),
	}
}

func textModeFields() map[string][]byte {
	return map[string][]byte{
		transport.FieldSalt:   make([]byte, transport.SaltLen),
		transport.FieldNonce:  make([]byte, transport.TextNonceLen),
		transport.FieldIsText: transport.EncodeBool(true),
	}
}

func TestHandlePing(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()

	h.HandlePing(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", rec.Body.String())
}
