// Package redis implements the snapshot store on Redis. The full application
// state is serialized as one JSON document under a fixed key, mirroring how
// the client persisted it before the engine moved server-side.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"github.com/OpinNetwork/engage_layer/internal/app/storage"
)

// SnapshotKey is the Redis key holding the serialized snapshot.
const SnapshotKey = "engage_layer:snapshot"

// SnapshotStore persists the application snapshot in Redis.
type SnapshotStore struct {
	client *goredis.Client
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore wraps an existing client.
func NewSnapshotStore(client *goredis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*SnapshotStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewSnapshotStore(client), nil
}

// Close releases the client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

// SaveSnapshot overwrites the stored snapshot.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, SnapshotKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot and whether one exists.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (storage.Snapshot, bool, error) {
	payload, err := s.client.Get(ctx, SnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return storage.Snapshot{}, false, nil
		}
		return storage.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap storage.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return storage.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}
