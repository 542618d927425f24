package syncengine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemorySnapshotStore is the in-process SnapshotStore used in tests
// and in deployments without redis.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[uuid.UUID]Snapshot)}
}

var _ SnapshotStore = &MemorySnapshotStore{}

func (s *MemorySnapshotStore) Save(ctx context.Context, sessionID uuid.UUID, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[sessionID] = *snap
	return nil
}

func (s *MemorySnapshotStore) Load(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[sessionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}
