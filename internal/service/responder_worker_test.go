package service

import (
	"context"
	"testing"
	"time"

	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/internal/session"
	"ai-tutoring-be/pkg/responder/scripted"
	"ai-tutoring-be/pkg/retry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testTopic = "session.respond_request"

// wires the real publisher, worker and service over one gochannel bus.
func newWorkerHarness(t *testing.T, resolveAfter int) (ISessionService, context.CancelFunc) {
	t.Helper()

	store := memory.NewStore()
	factory := memory.NewFactory(store)
	log := logger.NewNopLogger()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisher := NewRespondPublisher(testTopic, pubSub)
	svc := NewSessionService(factory, publisher, nil, log)

	worker := NewResponderWorker(
		pubSub,
		testTopic,
		factory,
		scripted.NewScriptedProvider(resolveAfter),
		svc,
		time.Second,
		retry.Policy{MaxAttempts: 2, Base: time.Millisecond, Cap: 5 * time.Millisecond},
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, worker.Consume(ctx))
	t.Cleanup(cancel)
	t.Cleanup(func() { _ = pubSub.Close() })

	return svc, cancel
}

func TestWorkerAppendsReply(t *testing.T) {
	svc, _ := newWorkerHarness(t, 5)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	_, _, err := svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Demand goes down?", 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := svc.GetSession(ctx, ownerID, sessionID)
		if err != nil || len(view.Messages) != 2 {
			return false
		}
		return view.Messages[1].Role == session.RoleResponder && view.Messages[1].Sequence == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWorkerCommitsOutcomeWhenDeclared(t *testing.T) {
	svc, _ := newWorkerHarness(t, 1)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	_, _, err := svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Demand goes down?", 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := svc.GetSession(ctx, ownerID, sessionID)
		if err != nil {
			return false
		}
		return view.Status == string(session.StatusResolved) && view.Outcome != nil
	}, 3*time.Second, 10*time.Millisecond)

	// The declared terminal state is absorbing.
	_, _, err = svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "one more", 3)
	require.Error(t, err)
}
