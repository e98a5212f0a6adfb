package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeInt64_RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 128, 1 << 40} {
		got, err := DecodeInt64(EncodeInt64(v))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeInt64_WrongLength(t *testing.T) {
	_, err := DecodeInt64([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEncodeDecodeBool_RoundTrip(t *testing.T) {
	got, err := DecodeBool(EncodeBool(true))
	assert.NoError(t, err)
	assert.True(t, got)

	got, err = DecodeBool(EncodeBool(false))
	assert.NoError(t, err)
	assert.False(t, got)
}

func TestDecodeBool_NonzeroIsTrue(t *testing.T) {
	got, err := DecodeBool([]byte{0xFF})
	assert.NoError(t, err)
	assert.True(t, got)
}

func TestValidatePrepareUpload_FileMode(t *testing.T) {
	err := ValidatePrepareUpload(PrepareUploadFields{
		Salt:          make([]byte, SaltLen),
		Nonce:         make([]byte, StreamNonceLen),
		FilenameNonce: make([]byte, FilenameNonceLen),
		Filename:      []byte("secret.txt"),
		IsText:        false,
	})
	assert.NoError(t, err)
}

func TestValidatePrepareUpload_TextMode(t *testing.T) {
	err := ValidatePrepareUpload(PrepareUploadFields{
		Salt:   make([]byte, SaltLen),
		Nonce:  make([]byte, TextNonceLen),
		IsText: true,
	})
	assert.NoError(t, err)
}

func TestValidatePrepareUpload_TextModeWithFilenameRejected(t *testing.T) {
	err := ValidatePrepareUpload(PrepareUploadFields{
		Salt:     make([]byte, SaltLen),
		Nonce:    make([]byte, TextNonceLen),
		IsText:   true,
		Filename: []byte("oops"),
	})
	assert.Error(t, err)
}

func TestValidatePrepareUpload_ModeNonceMismatchRejected(t *testing.T) {
	// File mode with a text-length nonce must fail: nonce length is the
	// mode witness, cross-checked against is_text.
	err := ValidatePrepareUpload(PrepareUploadFields{
		Salt:          make([]byte, SaltLen),
		Nonce:         make([]byte, TextNonceLen),
		FilenameNonce: make([]byte, FilenameNonceLen),
		IsText:        false,
	})
	assert.Error(t, err)
}

func TestValidatePrepareUpload_WrongSaltLength(t *testing.T) {
	err := ValidatePrepareUpload(PrepareUploadFields{
		Salt:   make([]byte, 10),
		Nonce:  make([]byte, TextNonceLen),
		IsText: true,
	})
	assert.Error(t, err)
}
