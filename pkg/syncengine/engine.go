package syncengine

import (
	"context"
	"sync"
	"time"

	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/retry"

	"github.com/google/uuid"
)

// ErrStillSending rejects a send while a previous one is still in
// flight or queued; within one session mutations are strictly serial.
var ErrStillSending = apperr.Conflict("still sending a previous message")

type Config struct {
	PollInterval time.Duration // reconciliation cadence while active
	StoreTimeout time.Duration // per-attempt budget for store calls
	Staleness    time.Duration // snapshot age that forces a reconcile
	Retry        retry.Policy

	// OnStatusChange observes offline/online flips (status banner).
	OnStatusChange func(online bool)

	Log logger.ILogger
}

func (c *Config) withDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.Staleness <= 0 {
		c.Staleness = 5 * time.Minute
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.Log == nil {
		c.Log = logger.NewNopLogger()
	}
}

// Engine maintains one optimistic view and one poll loop per open
// session. All local mutations for a session are serialized; loops for
// different sessions are independent.
type Engine struct {
	transport Transport
	cache     *Cache
	detector  *OfflineDetector
	cfg       Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionHandle
}

type sessionHandle struct {
	mu     sync.Mutex
	view   *SessionView
	cancel context.CancelFunc

	// queued holds at most one send accepted while offline.
	queued *string
}

func NewEngine(transport Transport, snapshots SnapshotStore, cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{
		transport: transport,
		cache:     NewCache(snapshots, cfg.Staleness),
		detector:  NewOfflineDetector(cfg.OnStatusChange),
		cfg:       cfg,
		sessions:  make(map[uuid.UUID]*sessionHandle),
	}
}

// Online reports the detector's current verdict.
func (e *Engine) Online() bool {
	return e.detector.Online()
}

// StartSession creates a session on the store and opens it.
func (e *Engine) StartSession(ctx context.Context, topic string) (*Session, error) {
	var sess *Session
	err := e.callStore(ctx, func(ctx context.Context) error {
		s, err := e.transport.CreateSession(ctx, topic)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	h := e.register(sess.Id, NewSessionView(sess))
	e.cache.Put(sess)
	e.snapshot(ctx, sess)
	e.startPolling(sess.Id, h)

	out := cloneSession(sess)
	return &out, nil
}

// Open renders a session and starts its poll loop. A durable snapshot,
// when present, is rendered immediately; a stale one additionally
// triggers a background reconcile before the first scheduled poll.
func (e *Engine) Open(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	if h, ok := e.sessions[sessionID]; ok {
		e.mu.Unlock()
		h.mu.Lock()
		out := h.view.Session()
		h.mu.Unlock()
		return &out, nil
	}
	e.mu.Unlock()

	if cached, ok := e.cache.Get(sessionID); ok {
		h := e.register(sessionID, NewSessionView(cached))
		e.startPolling(sessionID, h)
		out := cloneSession(cached)
		return &out, nil
	}

	snap, stale, err := e.cache.LoadSnapshot(ctx, sessionID)
	if err != nil {
		e.cfg.Log.Warn("syncengine", "snapshot load failed", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
	if snap != nil {
		h := e.register(sessionID, NewSessionView(&snap.Session))
		if stale {
			go e.reconcile(context.Background(), sessionID, h)
		}
		e.startPolling(sessionID, h)
		out := cloneSession(&snap.Session)
		return &out, nil
	}

	// No cache anywhere; the first render needs the store.
	var sess *Session
	err = e.callStore(ctx, func(ctx context.Context) error {
		s, err := e.transport.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	h := e.register(sessionID, NewSessionView(sess))
	e.cache.Put(sess)
	e.snapshot(ctx, sess)
	e.startPolling(sessionID, h)

	out := cloneSession(sess)
	return &out, nil
}

// View returns the current local rendering, pending entry included.
func (e *Engine) View(sessionID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	h, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("session is not open")
	}
	h.mu.Lock()
	out := h.view.Session()
	h.mu.Unlock()
	return &out, nil
}

// Send applies the message optimistically and commits it through the
// retry policy. While offline the send is queued (one slot) and
// flushed on reconnect; the caller still sees the pending entry.
func (e *Engine) Send(ctx context.Context, sessionID uuid.UUID, content string) (*Message, error) {
	e.mu.Lock()
	h, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("session is not open")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.view.Session().Terminal() {
		return nil, apperr.InvalidState("session ended")
	}
	if h.view.HasPending() || h.queued != nil {
		return nil, ErrStillSending
	}

	pending := h.view.ApplyPending(content)

	if !e.detector.Online() {
		h.queued = &content
		return &pending, nil
	}

	committed, err := e.commitPending(ctx, sessionID, h, content)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// commitPending pushes the pending entry to the store. Caller holds
// h.mu. On Conflict the view is refreshed from the store and the send
// reapplied exactly once with the corrected sequence; a second
// conflict rolls back and surfaces. Exhausted retries roll back too,
// leaving the view identical to its pre-submission state.
func (e *Engine) commitPending(ctx context.Context, sessionID uuid.UUID, h *sessionHandle, content string) (*Message, error) {
	expected := h.view.LastSequence() + 1
	result, err := e.append(ctx, sessionID, content, expected)
	if err != nil && apperr.KindOf(err) == apperr.KindConflict {
		if refErr := e.refreshLocked(ctx, sessionID, h); refErr != nil {
			h.view.RollbackPending()
			return nil, refErr
		}
		if h.view.Session().Terminal() {
			h.view.RollbackPending()
			return nil, apperr.InvalidState("session ended")
		}
		// An ambiguous timeout may mean the first attempt actually
		// landed; the refetch would then show our row at the position
		// we tried.
		if m, ok := h.view.messageAt(expected); ok && m.Role == "initiator" && m.Content == content {
			h.view.RollbackPending()
			return &m, nil
		}
		if !h.view.HasPending() {
			// The merge discarded the speculation; re-stage it behind
			// whatever the other writer committed.
			h.view.ApplyPending(content)
		}
		result, err = e.append(ctx, sessionID, content, h.view.LastSequence()+1)
	}
	if err != nil {
		h.view.RollbackPending()
		return nil, err
	}

	h.view.ConfirmPending(result.Message)
	if result.SessionStatus != "" {
		h.view.session.Status = result.SessionStatus
	}
	if result.Outcome != nil {
		h.view.session.Outcome = result.Outcome
	}

	e.cache.Invalidate(sessionID)
	sess := h.view.Session()
	e.cache.Put(&sess)
	e.snapshot(ctx, &sess)

	m := result.Message
	return &m, nil
}

func (e *Engine) append(ctx context.Context, sessionID uuid.UUID, content string, expected int64) (*AppendResult, error) {
	var result *AppendResult
	err := e.callStore(ctx, func(ctx context.Context) error {
		r, err := e.transport.AppendMessage(ctx, sessionID, content, expected)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// Close stops the session's poll loop and forgets its view. In-flight
// calls may complete but their results are discarded.
func (e *Engine) Close(sessionID uuid.UUID) {
	e.mu.Lock()
	h, ok := e.sessions[sessionID]
	if ok {
		delete(e.sessions, sessionID)
	}
	e.mu.Unlock()
	if ok && h.cancel != nil {
		h.cancel()
	}
}

// Shutdown closes every open session.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	handles := make([]*sessionHandle, 0, len(e.sessions))
	for id, h := range e.sessions {
		handles = append(handles, h)
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	for _, h := range handles {
		if h.cancel != nil {
			h.cancel()
		}
	}
}

// internals

func (e *Engine) register(sessionID uuid.UUID, view *SessionView) *sessionHandle {
	h := &sessionHandle{view: view}
	e.mu.Lock()
	e.sessions[sessionID] = h
	e.mu.Unlock()
	return h
}

// startPolling runs the per-session reconciliation loop. While online
// each tick merges authoritative state; while offline the same fetch
// doubles as the connectivity probe. The loop exits permanently on
// terminal status or Close.
func (e *Engine) startPolling(sessionID uuid.UUID, h *sessionHandle) {
	h.mu.Lock()
	if h.cancel != nil || h.view.Session().Terminal() {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if terminal := e.pollOnce(ctx, sessionID, h); terminal {
					e.Close(sessionID)
					return
				}
			}
		}
	}()
}

func (e *Engine) pollOnce(ctx context.Context, sessionID uuid.UUID, h *sessionHandle) (terminal bool) {
	wasOffline := !e.detector.Online()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := e.refreshLocked(ctx, sessionID, h); err != nil {
		return false
	}

	if wasOffline && e.detector.Online() && h.queued != nil {
		content := *h.queued
		h.queued = nil
		if h.view.HasPending() {
			if _, err := e.commitPending(ctx, sessionID, h, content); err != nil {
				e.cfg.Log.Warn("syncengine", "queued send failed after reconnect", map[string]interface{}{
					"session_id": sessionID.String(),
					"error":      err.Error(),
				})
			}
		} else {
			e.cfg.Log.Warn("syncengine", "queued send superseded by reconcile", map[string]interface{}{
				"session_id": sessionID.String(),
			})
		}
	}

	return h.view.Session().Terminal()
}

// refreshLocked fetches authoritative state (single attempt; the next
// tick is the retry) and merges it. Caller holds h.mu.
func (e *Engine) refreshLocked(ctx context.Context, sessionID uuid.UUID, h *sessionHandle) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	sess, err := e.transport.GetSession(callCtx, sessionID)
	cancel()
	e.detector.Record(err)
	if err != nil {
		return err
	}

	h.view.Merge(sess)
	e.cache.Invalidate(sessionID)
	merged := h.view.Session()
	e.cache.Put(&merged)
	e.snapshot(ctx, &merged)
	return nil
}

// reconcile is the eager background pass for stale snapshots.
func (e *Engine) reconcile(ctx context.Context, sessionID uuid.UUID, h *sessionHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := e.refreshLocked(ctx, sessionID, h); err != nil {
		e.cfg.Log.Warn("syncengine", "stale snapshot reconcile failed", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
}

// callStore wraps a store call with the per-attempt timeout, the retry
// policy and offline bookkeeping.
func (e *Engine) callStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		defer cancel()
		err := fn(callCtx)
		e.detector.Record(err)
		return err
	}, apperr.IsRetryable)
}

func (e *Engine) snapshot(ctx context.Context, sess *Session) {
	if err := e.cache.WriteSnapshot(ctx, sess); err != nil {
		e.cfg.Log.Warn("syncengine", "snapshot write failed", map[string]interface{}{
			"session_id": sess.Id.String(),
			"error":      err.Error(),
		})
	}
}
