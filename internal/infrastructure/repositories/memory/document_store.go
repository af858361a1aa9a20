package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"streamctl/internal/core/ports"
)

// DocumentStore keeps documents as encoded JSON in memory. Nothing
// survives a restart.
type DocumentStore struct {
	docs map[string][]byte
	mu   sync.RWMutex
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string][]byte),
	}
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Load(ctx context.Context, name string, v interface{}) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.docs[name]
	if !exists {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = data
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return nil
}
