// Package blockio implements the fixed-size block framing used to carry a
// Hako file body over the streaming AEAD construction in internal/cryptoframe.
//
// Framing is implicit: no block boundary or length is ever stored alongside
// the ciphertext. BlockSize and BlockOverhead are part of the wire contract
// between the uploader and downloader and must not change independently of
// each other.
package blockio

import (
	"errors"
	"io"

	"github.com/skystar-p/hako/internal/cryptoframe"
)

const (
	// BlockSize is the amount of plaintext sealed into one block.
	BlockSize = 10 * 1024 * 1024

	// BlockOverhead is the authentication tag appended to every sealed
	// block.
	BlockOverhead = cryptoframe.Overhead
)

// Encoder pulls plaintext from an underlying reader and seals it into
// fixed-size blocks, one AEAD output per call to NextBlock.
type Encoder struct {
	src    io.Reader
	stream *cryptoframe.StreamEncryptor
	buf    []byte
	done   bool
}

// NewEncoder creates a block encoder reading plaintext from src.
func NewEncoder(src io.Reader, stream *cryptoframe.StreamEncryptor) *Encoder {
	return &Encoder{
		src:    src,
		stream: stream,
		buf:    make([]byte, BlockSize),
	}
}

// NextBlock returns the next sealed block and whether it is the terminal
// block of the stream. Once it returns last=true, it must not be called
// again.
func (e *Encoder) NextBlock() (block []byte, last bool, err error) {
	if e.done {
		return nil, false, errors.New("blockio: NextBlock called after last block")
	}

	n, err := io.ReadFull(e.src, e.buf)
	switch {
	case err == nil:
		// Buffer is exactly full; this may or may not be the final block —
		// only a subsequent empty read tells us that, so emit it as
		// non-terminal and let the caller pull again.
		sealed, serr := e.stream.Next(e.buf)
		if serr != nil {
			return nil, false, serr
		}
		return sealed, false, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		e.done = true
		sealed, serr := e.stream.Last(e.buf[:n])
		if serr != nil {
			return nil, false, serr
		}
		return sealed, true, nil
	default:
		return nil, false, err
	}
}

// Decoder accumulates ciphertext from an underlying reader and opens it
// block by block.
type Decoder struct {
	src    io.Reader
	stream *cryptoframe.StreamDecryptor
	buf    []byte
	done   bool
}

// NewDecoder creates a block decoder reading ciphertext from src.
func NewDecoder(src io.Reader, stream *cryptoframe.StreamDecryptor) *Decoder {
	return &Decoder{
		src:    src,
		stream: stream,
		buf:    make([]byte, BlockSize+BlockOverhead),
	}
}

// NextBlock returns the next opened plaintext block and whether it was the
// terminal block of the stream.
func (d *Decoder) NextBlock() (plaintext []byte, last bool, err error) {
	if d.done {
		return nil, false, errors.New("blockio: NextBlock called after last block")
	}

	n, err := io.ReadFull(d.src, d.buf)
	switch {
	case err == nil:
		plaintext, derr := d.stream.Next(d.buf)
		if derr != nil {
			return nil, false, derr
		}
		return plaintext, false, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		d.done = true
		plaintext, derr := d.stream.Last(d.buf[:n])
		if derr != nil {
			return nil, false, derr
		}
		return plaintext, true, nil
	default:
		return nil, false, err
	}
}
