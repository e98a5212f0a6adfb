package handler

import (
	"context"
	"sync"

	"github.com/skystar-p/hako/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise the HTTP
// handlers without a real database backend.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	files    map[int64]*store.FileMeta
	complete map[int64]bool
	chunks   map[int64]map[int64][]byte
	pingErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:    make(map[int64]*store.FileMeta),
		complete: make(map[int64]bool),
		chunks:   make(map[int64]map[int64][]byte),
	}
}

func (f *fakeStore) CreateFile(ctx context.Context, salt, nonce, filenameNonce, filename []byte, isText bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.files[id] = &store.FileMeta{
		ID:            id,
		Salt:          salt,
		Nonce:         nonce,
		FilenameNonce: filenameNonce,
		Filename:      filename,
		IsText:        isText,
	}
	f.chunks[id] = make(map[int64][]byte)
	return id, nil
}

func (f *fakeStore) AppendChunk(ctx context.Context, id, seq int64, content []byte, isLast bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seq <= 0 {
		return store.ErrInvalidSeq
	}
	if _, ok := f.chunks[id][seq]; ok {
		return store.ErrSeqConflict
	}
	f.chunks[id][seq] = content
	if m := f.files[id]; m != nil {
		m.Size += int64(len(content))
	}
	if isLast {
		f.complete[id] = true
	}
	return nil
}

func (f *fakeStore) GetMetadata(ctx context.Context, id int64) (*store.FileMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.complete[id] {
		return nil, store.ErrNotFound
	}
	m, ok := f.files[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) GetLastSeq(ctx context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var max int64
	for seq := range f.chunks[id] {
		if seq > max {
			max = seq
		}
	}
	if max == 0 {
		return 0, store.ErrNotFound
	}
	return max, nil
}

func (f *fakeStore) ReadChunk(ctx context.Context, id, seq int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, ok := f.chunks[id][seq]
	if !ok {
		return nil, store.ErrNotFound
	}
	return content, nil
}

func (f *fakeStore) GCExpired(ctx context.Context, expirySecs int64) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeStore) Close() error {
	return nil
}

var _ store.Store = (*fakeStore)(nil)
