// Package store defines the transactional chunk-store abstraction shared by
// the embedded and pooled backends. A Store holds one row per uploaded
// object plus its append-only content chunks; it never sees plaintext.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for an id that does not exist, is not yet
	// complete, or has been garbage collected.
	ErrNotFound = errors.New("store: not found")

	// ErrSeqConflict is returned when a chunk's (file_id, seq) pair has
	// already been recorded.
	ErrSeqConflict = errors.New("store: sequence already recorded")

	// ErrSeqLimit is returned when seq exceeds the configured
	// chunk_count_limit.
	ErrSeqLimit = errors.New("store: sequence exceeds chunk count limit")

	// ErrInvalidSeq is returned for a non-positive seq.
	ErrInvalidSeq = errors.New("store: sequence must be positive")
)

// FileMeta is the public-parameter row of an uploaded object, returned by
// GetMetadata. Size is the sum of stored chunk lengths, not a separately
// tracked counter.
type FileMeta struct {
	ID            int64
	Salt          []byte
	Nonce         []byte
	FilenameNonce []byte
	Filename      []byte
	IsText        bool
	Size          int64
}

// Store is the transactional persistence boundary consumed by
// internal/handler and internal/gc. Implementations must serialize access
// so that AppendChunk, GetMetadata and GCExpired never observe a partial
// commit from one another.
type Store interface {
	// CreateFile inserts a new file row with upload_complete=false,
	// available=true and returns its assigned id.
	CreateFile(ctx context.Context, salt, nonce, filenameNonce, filename []byte, isText bool) (int64, error)

	// AppendChunk records chunk seq for file id. If isLast, the file's
	// upload_complete flag is set true in the same transaction.
	AppendChunk(ctx context.Context, id, seq int64, content []byte, isLast bool) error

	// GetMetadata returns the public parameters and size of a completed,
	// available file. It returns ErrNotFound otherwise.
	GetMetadata(ctx context.Context, id int64) (*FileMeta, error)

	// GetLastSeq returns the maximum seq recorded for id.
	GetLastSeq(ctx context.Context, id int64) (int64, error)

	// ReadChunk returns the content of chunk seq of file id.
	ReadChunk(ctx context.Context, id, seq int64) ([]byte, error)

	// GCExpired deletes the chunks and marks unavailable every file whose
	// created_at is older than expirySecs, atomically, returning the
	// affected ids.
	GCExpired(ctx context.Context, expirySecs int64) ([]int64, error)

	// Ping verifies the backing connection is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing connection or pool.
	Close() error
}
