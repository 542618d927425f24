package syncengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/pkg/retry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport implements the store semantics in memory: sequence
// guard, terminal immutability, and a programmable failure schedule.
type fakeTransport struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	// failures is consumed one entry per call; nil entries succeed.
	failures []error

	appendCalls int
	getCalls    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: make(map[uuid.UUID]*Session)}
}

func (f *fakeTransport) fail(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeTransport) nextFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func transportConnErr() error {
	return apperr.Transient("could not reach the server", fmt.Errorf("%w: dial tcp refused", ErrConnection))
}

func (f *fakeTransport) CreateSession(ctx context.Context, topic string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	sess := &Session{
		Id:        uuid.New(),
		OwnerId:   uuid.New(),
		Topic:     topic,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.sessions[sess.Id] = sess
	out := cloneSession(sess)
	return &out, nil
}

func (f *fakeTransport) AppendMessage(ctx context.Context, sessionID uuid.UUID, content string, expectedSequence int64) (*AppendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}

	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	if sess.Status != "active" {
		return nil, apperr.InvalidState("session ended")
	}
	var last int64
	if n := len(sess.Messages); n > 0 {
		last = sess.Messages[n-1].Sequence
	}
	if expectedSequence != last+1 {
		return nil, apperr.Conflict("message sequence conflict")
	}

	msg := Message{
		Id:        uuid.New(),
		SessionId: sessionID,
		Role:      "initiator",
		Content:   content,
		Sequence:  expectedSequence,
		CreatedAt: time.Now(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
	return &AppendResult{Message: msg, SessionStatus: sess.Status}, nil
}

func (f *fakeTransport) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	out := cloneSession(sess)
	return &out, nil
}

func (f *fakeTransport) ListSessions(ctx context.Context, limit, offset int) (*SessionList, error) {
	return &SessionList{}, nil
}

// serverAppend commits a message directly on the fake, simulating
// another client instance or the responder worker.
func (f *fakeTransport) serverAppend(sessionID uuid.UUID, role, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	var last int64
	if n := len(sess.Messages); n > 0 {
		last = sess.Messages[n-1].Sequence
	}
	sess.Messages = append(sess.Messages, Message{
		Id: uuid.New(), SessionId: sessionID, Role: role,
		Content: content, Sequence: last + 1, CreatedAt: time.Now(),
	})
	sess.UpdatedAt = time.Now()
}

func (f *fakeTransport) serverResolve(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	sess.Status = "resolved"
	now := time.Now()
	sess.EndedAt = &now
	sess.Outcome = &Outcome{
		Status:      "resolved",
		Summary:     "The student can now explain elasticity in their own words without prompting.",
		NextActions: []NextAction{{Type: "practice", Label: "Three practice problems"}},
	}
}

func newTestEngine(transport Transport, pollInterval time.Duration) *Engine {
	return NewEngine(transport, NewMemorySnapshotStore(), Config{
		PollInterval: pollInterval,
		StoreTimeout: time.Second,
		Staleness:    time.Minute,
		Retry:        retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Cap: 5 * time.Millisecond},
	})
}

func TestEngineSendCommits(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, time.Hour)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)
	assert.Equal(t, "active", sess.Status)

	msg, err := engine.Send(ctx, sess.Id, "Demand goes down?")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Sequence)
	assert.False(t, msg.Pending)

	view, err := engine.View(sess.Id)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)
	assert.False(t, view.Messages[0].Pending)
}

func TestEngineSendRollsBackWhenRetriesExhaust(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, time.Hour)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)
	before, err := engine.View(sess.Id)
	require.NoError(t, err)

	// Every attempt within the cap fails at the HTTP layer (the
	// connection is fine, so the engine stays online).
	transport.fail(
		apperr.Transient("boom", fmt.Errorf("server returned status 500")),
		apperr.Transient("boom", fmt.Errorf("server returned status 500")),
		apperr.Transient("boom", fmt.Errorf("server returned status 500")),
	)

	_, err = engine.Send(ctx, sess.Id, "never lands")
	require.Error(t, err)
	assert.Equal(t, 3, transport.appendCalls)

	// Rollback leaves the view structurally identical.
	after, err := engine.View(sess.Id)
	require.NoError(t, err)
	assert.Equal(t, before.Messages, after.Messages)
	assert.True(t, engine.Online())
}

func TestEngineSendRetriesTransientThenSucceeds(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, time.Hour)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)

	transport.fail(
		apperr.Transient("boom", fmt.Errorf("server returned status 503")),
		apperr.Transient("boom", fmt.Errorf("server returned status 503")),
	)

	msg, err := engine.Send(ctx, sess.Id, "third time lucky")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Sequence)
	assert.Equal(t, 3, transport.appendCalls)
}

func TestEngineConflictRefetchesAndReapplies(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, time.Hour)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)

	// Another tab commits sequence 1 behind our back.
	transport.serverAppend(sess.Id, "initiator", "the other tab got here first")

	msg, err := engine.Send(ctx, sess.Id, "mine lands second")
	require.NoError(t, err)
	assert.Equal(t, int64(2), msg.Sequence)

	view, err := engine.View(sess.Id)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "the other tab got here first", view.Messages[0].Content)
	assert.Equal(t, "mine lands second", view.Messages[1].Content)
}

func TestEnginePollMergesResponderReply(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, 20*time.Millisecond)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)
	_, err = engine.Send(ctx, sess.Id, "Demand goes down?")
	require.NoError(t, err)

	transport.serverAppend(sess.Id, "responder", "What does elastic mean to you?")

	require.Eventually(t, func() bool {
		view, err := engine.View(sess.Id)
		return err == nil && len(view.Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnginePollStopsOnTerminal(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, 20*time.Millisecond)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)

	transport.serverResolve(sess.Id)

	// The loop observes the terminal status and closes the session.
	require.Eventually(t, func() bool {
		_, err := engine.View(sess.Id)
		return apperr.KindOf(err) == apperr.KindNotFound
	}, 2*time.Second, 10*time.Millisecond)

	transport.mu.Lock()
	settled := transport.getCalls
	transport.mu.Unlock()
	time.Sleep(100 * time.Millisecond)
	transport.mu.Lock()
	assert.Equal(t, settled, transport.getCalls, "no polls after terminal")
	transport.mu.Unlock()
}

func TestEngineOfflineQueueAndFlush(t *testing.T) {
	transport := newFakeTransport()
	engine := newTestEngine(transport, 20*time.Millisecond)
	defer engine.Shutdown()
	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "price elasticity of demand")
	require.NoError(t, err)

	// Flip offline through the detector's own rule.
	engine.detector.Record(transportConnErr())
	engine.detector.Record(transportConnErr())
	require.False(t, engine.Online())

	msg, err := engine.Send(ctx, sess.Id, "Demand goes down?")
	require.NoError(t, err)
	assert.True(t, msg.Pending)

	// Single-slot queue: a second send is rejected client-side.
	_, err = engine.Send(ctx, sess.Id, "another one")
	assert.ErrorIs(t, err, ErrStillSending)

	// The next successful probe flips online and flushes the queue.
	require.Eventually(t, func() bool {
		view, err := engine.View(sess.Id)
		if err != nil || !engine.Online() {
			return false
		}
		return len(view.Messages) == 1 && !view.Messages[0].Pending
	}, 2*time.Second, 10*time.Millisecond)

	transport.mu.Lock()
	serverMessages := len(transport.sessions[sess.Id].Messages)
	transport.mu.Unlock()
	assert.Equal(t, 1, serverMessages)
}

func TestEngineOpenRendersSnapshotFirst(t *testing.T) {
	transport := newFakeTransport()
	snapshots := NewMemorySnapshotStore()
	ctx := context.Background()

	sess, err := transport.CreateSession(ctx, "price elasticity of demand")
	require.NoError(t, err)
	transport.serverAppend(sess.Id, "initiator", "Demand goes down?")

	// A prior run left a durable snapshot behind.
	stored, err := transport.GetSession(ctx, sess.Id)
	require.NoError(t, err)
	require.NoError(t, snapshots.Save(ctx, sess.Id, &Snapshot{Session: *stored, SavedAt: time.Now()}))

	engine := NewEngine(transport, snapshots, Config{
		PollInterval: time.Hour,
		StoreTimeout: time.Second,
		Staleness:    time.Minute,
		Retry:        retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Cap: 5 * time.Millisecond},
	})
	defer engine.Shutdown()

	transport.mu.Lock()
	getCallsBefore := transport.getCalls
	transport.mu.Unlock()

	view, err := engine.Open(ctx, sess.Id)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)

	// The render came from the snapshot, not the store.
	transport.mu.Lock()
	assert.Equal(t, getCallsBefore, transport.getCalls)
	transport.mu.Unlock()
}
