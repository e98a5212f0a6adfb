// Package transport implements the wire-level marshal/unmarshal helpers
// shared by internal/handler and pkg/hakoclient. It carries no business
// logic: only field names, fixed-length checks, and big-endian integer
// codecs for the multipart contract in spec section 6.
package transport

import (
	"encoding/binary"
	"fmt"
)

// Multipart field names recognized by prepare_upload and upload. Any other
// field name is ignored without its body being read.
const (
	FieldSalt          = "salt"
	FieldNonce         = "nonce"
	FieldFilenameNonce = "filename_nonce"
	FieldFilename      = "filename"
	FieldIsText        = "is_text"
	FieldID            = "id"
	FieldSeq           = "seq"
	FieldIsLast        = "is_last"
	FieldContent       = "content"
)

// Fixed field lengths.
const (
	SaltLen          = 32
	StreamNonceLen   = 19 // file mode
	TextNonceLen     = 24 // text mode
	FilenameNonceLen = 24
	BoolFieldLen     = 1
	Int64FieldLen    = 8
)

// Request body limits.
const (
	PrepareUploadBodyLimit = 10 * 1024 * 1024
	UploadBodyLimit        = 100 * 1024 * 1024
)

// EncodeInt64 encodes v as an 8-byte big-endian signed integer.
func EncodeInt64(v int64) []byte {
	b := make([]byte, Int64FieldLen)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeInt64 decodes an 8-byte big-endian signed integer.
func DecodeInt64(b []byte) (int64, error) {
	if len(b) != Int64FieldLen {
		return 0, fmt.Errorf("transport: int64 field must be %d bytes, got %d", Int64FieldLen, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// EncodeBool encodes a boolean as a single byte, 0x01 for true.
func EncodeBool(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool decodes a single boolean byte; any nonzero value is true.
func DecodeBool(b []byte) (bool, error) {
	if len(b) != BoolFieldLen {
		return false, fmt.Errorf("transport: bool field must be %d byte, got %d", BoolFieldLen, len(b))
	}
	return b[0] != 0, nil
}

// PrepareUploadFields is the decoded, not-yet-validated set of fields from a
// prepare_upload request.
type PrepareUploadFields struct {
	Salt          []byte
	Nonce         []byte
	FilenameNonce []byte
	Filename      []byte
	IsText        bool
}

// ValidatePrepareUpload enforces the field-length and mode-consistency
// rules from spec section 6 and section 9 ("nonce length as mode witness").
func ValidatePrepareUpload(f PrepareUploadFields) error {
	if len(f.Salt) != SaltLen {
		return fmt.Errorf("transport: salt must be %d bytes, got %d", SaltLen, len(f.Salt))
	}

	if f.IsText {
		if len(f.Nonce) != TextNonceLen {
			return fmt.Errorf("transport: text mode nonce must be %d bytes, got %d", TextNonceLen, len(f.Nonce))
		}
		if len(f.FilenameNonce) != 0 || len(f.Filename) != 0 {
			return fmt.Errorf("transport: text mode must not carry filename fields")
		}
		return nil
	}

	if len(f.Nonce) != StreamNonceLen {
		return fmt.Errorf("transport: file mode nonce must be %d bytes, got %d", StreamNonceLen, len(f.Nonce))
	}
	if len(f.FilenameNonce) != FilenameNonceLen {
		return fmt.Errorf("transport: filename_nonce must be %d bytes, got %d", FilenameNonceLen, len(f.FilenameNonce))
	}
	return nil
}

// UploadFields is the decoded set of fields from an upload request.
type UploadFields struct {
	ID      int64
	Seq     int64
	IsLast  bool
	Content []byte
}

// MetadataResponse is the JSON body returned by GET /api/metadata.
type MetadataResponse struct {
	Filename      string `json:"filename"`
	Salt          string `json:"salt"`
	Nonce         string `json:"nonce"`
	FilenameNonce string `json:"filename_nonce"`
	IsText        bool   `json:"is_text"`
	Size          int64  `json:"size"`
}

// PrepareUploadResponse is the JSON body returned by POST /api/prepare_upload.
type PrepareUploadResponse struct {
	ID int64 `json:"id"`
}
