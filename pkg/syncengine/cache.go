package syncengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Snapshot is one tier-2 record: a full session rendering plus the
// moment it was taken. Snapshots are advisory; they are never a source
// of truth and can be discarded without data loss.
type Snapshot struct {
	Session Session   `json:"session_snapshot"`
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotStore is the durable tier-2 port (redis in production, an
// in-memory map in tests). Load returns nil with no error when the id
// has no snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, snap *Snapshot) error
	Load(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error)
}

// Cache layers a short-lived in-process view cache over the durable
// snapshot store. Tier 1 is invalidated on every successful mutation;
// tier 2 is rewritten after every successful append or transition.
type Cache struct {
	tier1     *gocache.Cache
	snapshots SnapshotStore
	staleness time.Duration
}

func NewCache(snapshots SnapshotStore, staleness time.Duration) *Cache {
	return &Cache{
		tier1:     gocache.New(5*time.Minute, 10*time.Minute),
		snapshots: snapshots,
		staleness: staleness,
	}
}

func (c *Cache) Get(sessionID uuid.UUID) (*Session, bool) {
	if v, ok := c.tier1.Get(sessionID.String()); ok {
		sess := v.(Session)
		return &sess, true
	}
	return nil, false
}

func (c *Cache) Put(sess *Session) {
	c.tier1.Set(sess.Id.String(), cloneSession(sess), gocache.DefaultExpiration)
}

func (c *Cache) Invalidate(sessionID uuid.UUID) {
	c.tier1.Delete(sessionID.String())
}

// WriteSnapshot persists the tier-2 record. Failures are the caller's
// to log and ignore; a broken snapshot store only costs startup speed.
func (c *Cache) WriteSnapshot(ctx context.Context, sess *Session) error {
	if c.snapshots == nil {
		return nil
	}
	return c.snapshots.Save(ctx, sess.Id, &Snapshot{
		Session: cloneSession(sess),
		SavedAt: time.Now(),
	})
}

// LoadSnapshot returns the tier-2 record and whether it is stale, i.e.
// older than the staleness window and in need of an immediate
// reconcile even though it can be rendered first.
func (c *Cache) LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (snap *Snapshot, stale bool, err error) {
	if c.snapshots == nil {
		return nil, false, nil
	}
	snap, err = c.snapshots.Load(ctx, sessionID)
	if err != nil || snap == nil {
		return nil, false, err
	}
	return snap, time.Since(snap.SavedAt) > c.staleness, nil
}
