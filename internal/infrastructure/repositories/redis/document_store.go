package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"streamctl/internal/core/ports"
	"streamctl/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// DocumentStore keeps each document as one JSON string key. SET replaces
// the whole value atomically.
type DocumentStore struct {
	client *redis.Client
	prefix string
}

func NewDocumentStore(client *redis.Client, prefix string) *DocumentStore {
	return &DocumentStore{
		client: client,
		prefix: prefix,
	}
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func documentKey(prefix, name string) string {
	return prefix + "doc:" + name
}

func (s *DocumentStore) Load(ctx context.Context, name string, v interface{}) (bool, error) {
	ctx, span := tracing.TraceDocumentOperation(ctx, "load", name)
	defer span.End()

	data, err := s.client.Get(ctx, documentKey(s.prefix, name)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from Redis: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v interface{}) error {
	ctx, span := tracing.TraceDocumentOperation(ctx, "save", name)
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := s.client.Set(ctx, documentKey(s.prefix, name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", name, err)
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
