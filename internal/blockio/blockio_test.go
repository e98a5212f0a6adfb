package blockio

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystar-p/hako/internal/cryptoframe"
)

func freshKeyAndPrefix(t *testing.T) ([cryptoframe.KeySize]byte, []byte) {
	t.Helper()
	salt := make([]byte, cryptoframe.SaltSize)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	key, err := cryptoframe.DeriveKey([]byte("passphrase"), salt)
	require.NoError(t, err)
	prefix := make([]byte, cryptoframe.StreamNonceSize)
	_, err = rand.Read(prefix)
	require.NoError(t, err)
	return key, prefix
}

func roundTrip(t *testing.T, plaintext []byte) []byte {
	t.Helper()
	key, prefix := freshKeyAndPrefix(t)

	encStream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)
	enc := NewEncoder(bytes.NewReader(plaintext), encStream)

	var blocks [][]byte
	for {
		block, last, err := enc.NextBlock()
		require.NoError(t, err)
		blocks = append(blocks, block)
		if last {
			break
		}
	}

	decStream, err := cryptoframe.NewStreamDecryptor(key, prefix)
	require.NoError(t, err)
	dec := NewDecoder(bytes.NewReader(joinBlocks(blocks)), decStream)

	var out bytes.Buffer
	for {
		pt, last, err := dec.NextBlock()
		require.NoError(t, err)
		out.Write(pt)
		if last {
			break
		}
	}
	return out.Bytes()
}

func joinBlocks(blocks [][]byte) []byte {
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.Write(b)
	}
	return buf.Bytes()
}

func TestRoundTrip_SmallPayload(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0x61}, 5000)
	got := roundTrip(t, plaintext)
	assert.Equal(t, plaintext, got)
}

func TestRoundTrip_EmptyPayload(t *testing.T) {
	got := roundTrip(t, nil)
	assert.Empty(t, got)
}

func TestRoundTrip_ExactlyOneBlock(t *testing.T) {
	plaintext := make([]byte, BlockSize)
	got := roundTrip(t, plaintext)
	assert.Equal(t, plaintext, got)
}

func TestRoundTrip_TwoBlocksPlusOneByte(t *testing.T) {
	plaintext := make([]byte, 2*BlockSize+1)
	_, err := rand.Read(plaintext)
	require.NoError(t, err)
	got := roundTrip(t, plaintext)
	assert.Equal(t, plaintext, got)
}

func TestEncoder_OneFullBlockProducesTwoChunks(t *testing.T) {
	key, prefix := freshKeyAndPrefix(t)
	stream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)

	plaintext := make([]byte, BlockSize)
	enc := NewEncoder(bytes.NewReader(plaintext), stream)

	block1, last1, err := enc.NextBlock()
	require.NoError(t, err)
	assert.False(t, last1)
	assert.Len(t, block1, BlockSize+BlockOverhead)

	block2, last2, err := enc.NextBlock()
	require.NoError(t, err)
	assert.True(t, last2)
	assert.Len(t, block2, BlockOverhead)
}

func TestDecoder_TruncatedBlockFails(t *testing.T) {
	key, prefix := freshKeyAndPrefix(t)
	encStream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)
	enc := NewEncoder(bytes.NewReader(make([]byte, BlockSize+1)), encStream)

	block1, last1, err := enc.NextBlock()
	require.NoError(t, err)
	require.False(t, last1)

	decStream, err := cryptoframe.NewStreamDecryptor(key, prefix)
	require.NoError(t, err)
	// Drop the trailing byte so the decoder's read comes up short, forcing
	// the truncated ciphertext through Last where authentication must fail.
	dec := NewDecoder(bytes.NewReader(block1[:len(block1)-1]), decStream)

	_, _, err = dec.NextBlock()
	assert.ErrorIs(t, err, cryptoframe.ErrDecrypt)
}

func TestDecoder_NonTerminalBlockPresentedAloneDecryptsAsNonTerminal(t *testing.T) {
	// A Decoder only calls Last once its underlying reader is exhausted.
	// If exactly one non-terminal sealed block is fed in with nothing
	// after it, the buffer read still succeeds (exact fit) and the block
	// opens via Next, matching what the encoder produced. The missing
	// terminal block only shows on the following NextBlock call: the reader
	// is then exhausted, so the empty residual goes through Last and fails
	// authentication.
	key, prefix := freshKeyAndPrefix(t)
	encStream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)
	enc := NewEncoder(bytes.NewReader(make([]byte, BlockSize+1)), encStream)

	block1, last1, err := enc.NextBlock()
	require.NoError(t, err)
	require.False(t, last1)

	decStream, err := cryptoframe.NewStreamDecryptor(key, prefix)
	require.NoError(t, err)
	dec := NewDecoder(bytes.NewReader(block1), decStream)

	_, last, err := dec.NextBlock()
	require.NoError(t, err)
	assert.False(t, last)
}

func TestEncoder_NextBlockAfterLastErrors(t *testing.T) {
	key, prefix := freshKeyAndPrefix(t)
	stream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)
	enc := NewEncoder(bytes.NewReader(nil), stream)

	_, last, err := enc.NextBlock()
	require.NoError(t, err)
	require.True(t, last)

	_, _, err = enc.NextBlock()
	assert.Error(t, err)
}

func TestEncoder_PropagatesSourceError(t *testing.T) {
	key, prefix := freshKeyAndPrefix(t)
	stream, err := cryptoframe.NewStreamEncryptor(key, prefix)
	require.NoError(t, err)
	enc := NewEncoder(errReader{}, stream)

	_, _, err = enc.NextBlock()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }
