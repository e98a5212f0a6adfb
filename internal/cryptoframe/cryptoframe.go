// Package cryptoframe implements the client-side AEAD primitives shared by
// the Hako uploader and downloader: HKDF-SHA256 key derivation and
// XChaCha20-Poly1305 in both one-shot and streaming form.
package cryptoframe

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a derived XChaCha20-Poly1305 key.
	KeySize = chacha20poly1305.KeySize

	// SaltSize is the size of the HKDF salt stored alongside a file.
	SaltSize = 32

	// OneShotNonceSize is the nonce size used for text payloads and for
	// filename encryption in file mode.
	OneShotNonceSize = chacha20poly1305.NonceSizeX

	// StreamNonceSize is the size of the stream nonce prefix stored alongside
	// a file-mode upload. The remaining 5 bytes of the 24-byte XChaCha20
	// nonce are derived per block (4-byte big-endian counter, 1-byte flag).
	StreamNonceSize = 19

	// Overhead is the Poly1305 tag size added to every sealed block.
	Overhead = chacha20poly1305.Overhead

	blockCounterSize = 4
	lastFlagByte     = 1
	lastFlagSet      = 0x01
)

// ErrDecrypt is returned whenever AEAD authentication fails. It never
// reveals which block failed.
var ErrDecrypt = errors.New("cryptoframe: decryption failed")

// DeriveKey derives a 32-byte key from a passphrase and salt using
// HKDF-SHA256 with an empty info string, per the wire contract.
func DeriveKey(passphrase []byte, salt []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(salt) != SaltSize {
		return key, fmt.Errorf("cryptoframe: salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	reader := hkdf.New(sha256.New, passphrase, salt, nil)
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("cryptoframe: failed to derive key: %w", err)
	}
	return key, nil
}

// SealOnce performs one-shot XChaCha20-Poly1305 encryption. The returned
// slice is ciphertext followed by the 16-byte authentication tag.
func SealOnce(key [KeySize]byte, nonce []byte, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("cryptoframe: nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// OpenOnce reverses SealOnce. It returns ErrDecrypt on authentication
// failure without surfacing any partial plaintext.
func OpenOnce(key [KeySize]byte, nonce []byte, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("cryptoframe: nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newAEAD(key [KeySize]byte) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: failed to create AEAD: %w", err)
	}
	return aead, nil
}

// StreamEncryptor seals successive plaintext blocks under a single stream
// nonce prefix. Nonce for block i is prefix(19) || BE32(i) || flag(1), where
// flag is 0x00 for a non-terminal block and 0x01 for the last block.
type StreamEncryptor struct {
	aead     cipher.AEAD
	prefix   [StreamNonceSize]byte
	counter  uint32
	lastCall bool
}

// NewStreamEncryptor constructs a streaming sealer for the given key and
// 19-byte stream nonce prefix.
func NewStreamEncryptor(key [KeySize]byte, prefix []byte) (*StreamEncryptor, error) {
	if len(prefix) != StreamNonceSize {
		return nil, fmt.Errorf("cryptoframe: stream nonce prefix must be %d bytes, got %d", StreamNonceSize, len(prefix))
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: failed to create AEAD: %w", err)
	}
	e := &StreamEncryptor{aead: aead}
	copy(e.prefix[:], prefix)
	return e, nil
}

// Next seals a non-terminal block and advances the block counter.
func (e *StreamEncryptor) Next(plaintext []byte) ([]byte, error) {
	if e.lastCall {
		return nil, errors.New("cryptoframe: Next called after Last")
	}
	nonce := e.nonceFor(false)
	e.counter++
	return e.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Last seals the terminal block, possibly empty, and binds it with the
// last-block flag so truncation or extension is detectable.
func (e *StreamEncryptor) Last(plaintext []byte) ([]byte, error) {
	if e.lastCall {
		return nil, errors.New("cryptoframe: Last already called")
	}
	e.lastCall = true
	nonce := e.nonceFor(true)
	return e.aead.Seal(nil, nonce, plaintext, nil), nil
}

func (e *StreamEncryptor) nonceFor(last bool) []byte {
	nonce := make([]byte, StreamNonceSize+blockCounterSize+lastFlagByte)
	copy(nonce, e.prefix[:])
	binary.BigEndian.PutUint32(nonce[StreamNonceSize:], e.counter)
	if last {
		nonce[len(nonce)-1] = lastFlagSet
	}
	return nonce
}

// StreamDecryptor reverses StreamEncryptor.
type StreamDecryptor struct {
	aead     cipher.AEAD
	prefix   [StreamNonceSize]byte
	counter  uint32
	lastCall bool
}

// NewStreamDecryptor constructs a streaming opener for the given key and
// 19-byte stream nonce prefix.
func NewStreamDecryptor(key [KeySize]byte, prefix []byte) (*StreamDecryptor, error) {
	if len(prefix) != StreamNonceSize {
		return nil, fmt.Errorf("cryptoframe: stream nonce prefix must be %d bytes, got %d", StreamNonceSize, len(prefix))
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: failed to create AEAD: %w", err)
	}
	d := &StreamDecryptor{aead: aead}
	copy(d.prefix[:], prefix)
	return d, nil
}

// Next opens a non-terminal block and advances the block counter.
func (d *StreamDecryptor) Next(ciphertext []byte) ([]byte, error) {
	if d.lastCall {
		return nil, errors.New("cryptoframe: Next called after Last")
	}
	nonce := d.nonceFor(false)
	plaintext, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	d.counter++
	return plaintext, nil
}

// Last opens the terminal block. A decrypt failure here also covers the case
// where a non-terminal block was mistakenly presented as last.
func (d *StreamDecryptor) Last(ciphertext []byte) ([]byte, error) {
	if d.lastCall {
		return nil, errors.New("cryptoframe: Last already called")
	}
	d.lastCall = true
	nonce := d.nonceFor(true)
	plaintext, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func (d *StreamDecryptor) nonceFor(last bool) []byte {
	nonce := make([]byte, StreamNonceSize+blockCounterSize+lastFlagByte)
	copy(nonce, d.prefix[:])
	binary.BigEndian.PutUint32(nonce[StreamNonceSize:], d.counter)
	if last {
		nonce[len(nonce)-1] = lastFlagSet
	}
	return nonce
}
