package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skystar-p/hako/internal/store"
)

const defaultChunkCountLimit = 128

const uniqueViolation = "23505"

// Store is the pooled chunk-store backend.
type Store struct {
	db              *DB
	chunkCountLimit int64
}

// NewStore wraps an already-connected DB as a store.Store.
func NewStore(db *DB, chunkCountLimit int64) *Store {
	if chunkCountLimit <= 0 {
		chunkCountLimit = defaultChunkCountLimit
	}
	return &Store{db: db, chunkCountLimit: chunkCountLimit}
}

// Ping verifies the pool is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// CreateFile inserts a new file row and returns its assigned id.
func (s *Store) CreateFile(ctx context.Context, salt, nonce, filenameNonce, filename []byte, isText bool) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO files (salt, nonce, filename_nonce, filename, is_text, upload_complete, available)
		VALUES ($1, $2, $3, $4, $5, FALSE, TRUE)
		RETURNING id
	`, salt, nonce, filenameNonce, filename, isText).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create file: %w", err)
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

	return s.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO file_contents (file_id, seq, content) VALUES ($1, $2, $3)
		`, id, seq, content)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrSeqConflict
			}
			return fmt.Errorf("postgres: append chunk: insert: %w", err)
		}

		if isLast {
			if _, err := tx.Exec(ctx, `UPDATE files SET upload_complete = TRUE WHERE id = $1`, id); err != nil {
				return fmt.Errorf("postgres: append chunk: complete: %w", err)
			}
		}
		return nil
	})
}

// GetMetadata returns the public parameters and computed size of a
// completed, available file.
func (s *Store) GetMetadata(ctx context.Context, id int64) (*store.FileMeta, error) {
	meta := &store.FileMeta{ID: id}
	err := s.db.Pool.QueryRow(ctx, `
		SELECT f.salt, f.nonce, f.filename_nonce, f.filename, f.is_text,
		       COALESCE((SELECT SUM(LENGTH(content)) FROM file_contents WHERE file_id = f.id), 0)
		FROM files f
		WHERE f.id = $1 AND f.upload_complete = TRUE AND f.available = TRUE
	`, id).Scan(&meta.Salt, &meta.Nonce, &meta.FilenameNonce, &meta.Filename, &meta.IsText, &meta.Size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get metadata: %w", err)
	}
	return meta, nil
}

// GetLastSeq returns the maximum seq recorded for id.
func (s *Store) GetLastSeq(ctx context.Context, id int64) (int64, error) {
	var seq *int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT MAX(seq) FROM file_contents WHERE file_id = $1`, id).Scan(&seq); err != nil {
		return 0, fmt.Errorf("postgres: get last seq: %w", err)
	}
	if seq == nil {
		return 0, fmt.Errorf("postgres: get last seq: %w", store.ErrNotFound)
	}
	return *seq, nil
}

// ReadChunk returns the content of chunk seq of file id.
func (s *Store) ReadChunk(ctx context.Context, id, seq int64) ([]byte, error) {
	var content []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT content FROM file_contents WHERE file_id = $1 AND seq = $2`, id, seq).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: read chunk: %w", err)
	}
	return content, nil
}

// GCExpired deletes chunks and marks files unavailable past expirySecs,
// atomically, and returns the affected ids.
func (s *Store) GCExpired(ctx context.Context, expirySecs int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM files
			WHERE available = TRUE AND created_at < now() - make_interval(secs => $1)
		`, expirySecs)
		if err != nil {
			return fmt.Errorf("postgres: gc: select expired: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("postgres: gc: scan: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("postgres: gc: iterate: %w", err)
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM file_contents WHERE file_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("postgres: gc: delete chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE files SET available = FALSE WHERE id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("postgres: gc: mark unavailable: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ store.Store = (*Store)(nil)
