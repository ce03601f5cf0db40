package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore keeps published documents in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
