// Package sqlite implements the embedded, serial chunk-store backend using
// modernc.org/sqlite. It matches the spec's "embedded file-local engine" case:
// a single connection protected by an explicit exclusive gate.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skystar-p/hako/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	salt BLOB NOT NULL,
	nonce BLOB NOT NULL,
	filename_nonce BLOB NOT NULL,
	filename BLOB NOT NULL,
	is_text INTEGER NOT NULL,
	upload_complete INTEGER NOT NULL DEFAULT 0,
	available INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_contents (
	file_id INTEGER NOT NULL REFERENCES files(id),
	seq INTEGER NOT NULL,
	content BLOB NOT NULL,
	UNIQUE(file_id, seq)
);
`

const defaultChunkCountLimit = 128

// Store is the embedded chunk-store backend. modernc.org/sqlite connections
// are not safe for concurrent writers, so the pool is pinned to one
// connection and every operation additionally holds a gate — the gate, not
// the pool size, is what makes the transactional semantics explicit and
// testable independent of the driver.
type Store struct {
	db              *sql.DB
	gate            sync.Mutex
	chunkCountLimit int64
}

// Open creates (if missing) the schema at path and returns a ready Store.
// An empty path or ":memory:" opens a private in-memory database.
func Open(path string, chunkCountLimit int64) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: bootstrap schema: %w", err)
	}

	if chunkCountLimit <= 0 {
		chunkCountLimit = defaultChunkCountLimit
	}

	return &Store{db: db, chunkCountLimit: chunkCountLimit}, nil
}

// Ping verifies the connection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateFile inserts a new file row and returns its assigned id.
func (s *Store) CreateFile(ctx context.Context, salt, nonce, filenameNonce, filename []byte, isText bool) (int64, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (salt, nonce, filename_nonce, filename, is_text, upload_complete, available, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 1, ?)
	`, salt, nonce, filenameNonce, filename, boolToInt(isText), time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: create file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: create file: %w", err)
	}
	return id, nil
}

// AppendChunk records chunk seq for file id, flipping upload_complete when
// isLast. Duplicate (id, seq) pairs surface store.ErrSeqConflict.
func (s *Store) AppendChunk(ctx context.Context, id, seq int64, content []byte, isLast bool) error {
	if seq <= 0 {
		return store.ErrInvalidSeq
	}
	if seq > s.chunkCountLimit {
		return store.ErrSeqLimit
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: append chunk: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_contents (file_id, seq, content) VALUES (?, ?, ?)
	`, id, seq, content); err != nil {
		if isUniqueConstraintErr(err) {
			return store.ErrSeqConflict
		}
		return fmt.Errorf("sqlite: append chunk: insert: %w", err)
	}

	if isLast {
		if _, err := tx.ExecContext(ctx, `UPDATE files SET upload_complete = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: append chunk: complete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: append chunk: commit: %w", err)
	}
	return nil
}

// GetMetadata returns the public parameters and computed size of a
// completed, available file.
func (s *Store) GetMetadata(ctx context.Context, id int64) (*store.FileMeta, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT f.salt, f.nonce, f.filename_nonce, f.filename, f.is_text,
		       COALESCE((SELECT SUM(LENGTH(content)) FROM file_contents WHERE file_id = f.id), 0)
		FROM files f
		WHERE f.id = ? AND f.upload_complete = 1 AND f.available = 1
	`, id)

	meta := &store.FileMeta{ID: id}
	var isText int
	if err := row.Scan(&meta.Salt, &meta.Nonce, &meta.FilenameNonce, &meta.Filename, &isText, &meta.Size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get metadata: %w", err)
	}
	meta.IsText = isText != 0
	return meta, nil
}

// GetLastSeq returns the maximum seq recorded for id.
func (s *Store) GetLastSeq(ctx context.Context, id int64) (int64, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM file_contents WHERE file_id = ?`, id).Scan(&seq); err != nil {
		return 0, fmt.Errorf("sqlite: get last seq: %w", err)
	}
	if !seq.Valid {
		return 0, fmt.Errorf("sqlite: get last seq: %w", store.ErrNotFound)
	}
	return seq.Int64, nil
}

// ReadChunk returns the content of chunk seq of file id.
func (s *Store) ReadChunk(ctx context.Context, id, seq int64) ([]byte, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM file_contents WHERE file_id = ? AND seq = ?`, id, seq).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: read chunk: %w", err)
	}
	return content, nil
}

// GCExpired deletes chunks and marks files unavailable past expirySecs,
// atomically, and returns the affected ids.
func (s *Store) GCExpired(ctx context.Context, expirySecs int64) ([]int64, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	cutoff := time.Now().UTC().Unix() - expirySecs

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: gc: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM files WHERE available = 1 AND created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: gc: select expired: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: gc: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: gc: iterate: %w", err)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_contents WHERE file_id = ?`, id); err != nil {
			return nil, fmt.Errorf("sqlite: gc: delete chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE files SET available = 0 WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("sqlite: gc: mark unavailable: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: gc: commit: %w", err)
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

var _ store.Store = (*Store)(nil)
