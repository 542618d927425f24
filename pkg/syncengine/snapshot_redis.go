package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "session_snapshot:"

// RedisSnapshotStore keeps tier-2 snapshots in redis, JSON-encoded,
// one key per session.
type RedisSnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSnapshotStore(rdb *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb, ttl: ttl}
}

var _ SnapshotStore = &RedisSnapshotStore{}

func (s *RedisSnapshotStore) Save(ctx context.Context, sessionID uuid.UUID, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.rdb.Set(ctx, snapshotKeyPrefix+sessionID.String(), data, s.ttl).Err()
}

func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKeyPrefix+sessionID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt snapshot is a cache miss, not a failure.
		return nil, nil
	}
	return &snap, nil
}
