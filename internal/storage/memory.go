package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryBaseURL prefixes the URLs handed out by MemoryStore
const MemoryBaseURL = "memory://blobs"

// Blob is a stored object
type Blob struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore creates an empty in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = Blob{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return MemoryBaseURL + "/" + key
}

func (s *MemoryStore) Key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, MemoryBaseURL+"/")
	return key, ok && key != ""
}

// Get returns a stored blob
func (s *MemoryStore) Get(key string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Len reports how many blobs are stored
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
