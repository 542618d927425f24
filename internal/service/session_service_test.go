package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/internal/session"
	"ai-tutoring-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu       sync.Mutex
	requests []dto.RespondRequestMessage
}

func (p *capturingPublisher) PublishRespondRequest(ctx context.Context, payload *dto.RespondRequestMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, *payload)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type capturingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *capturingSink) Publish(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event.EventType())
	return nil
}

func newTestService(t *testing.T) (ISessionService, *capturingPublisher, *capturingSink) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	sink := &capturingSink{}
	svc := NewSessionService(memory.NewFactory(store), publisher, sink, logger.NewNopLogger())
	return svc, publisher, sink
}

func createActiveSession(t *testing.T, svc ISessionService, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	resp, err := svc.CreateSession(context.Background(), ownerID, &dto.CreateSessionRequest{
		Topic: "I don't understand price elasticity",
	})
	require.NoError(t, err)
	return resp.Id
}

func validOutcome(status session.Status) *entity.Outcome {
	return &entity.Outcome{
		Status:  status,
		Summary: strings.Repeat("The student reached a correct understanding. ", 2),
		NextActions: []entity.NextAction{
			{Type: "practice", Label: "Try three practice problems"},
		},
	}
}

func TestCreateSession(t *testing.T) {
	svc, _, sink := newTestService(t)
	ownerID := uuid.New()

	t.Run("valid topic", func(t *testing.T) {
		resp, err := svc.CreateSession(context.Background(), ownerID, &dto.CreateSessionRequest{
			Topic: "I don't understand price elasticity",
		})
		require.NoError(t, err)
		assert.Equal(t, string(session.StatusActive), resp.Status)
		assert.Empty(t, resp.Messages)
		assert.Nil(t, resp.Outcome)
		assert.Contains(t, sink.events, "SESSION_CREATED")
	})

	t.Run("topic too short", func(t *testing.T) {
		_, err := svc.CreateSession(context.Background(), ownerID, &dto.CreateSessionRequest{Topic: "short"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("topic too long", func(t *testing.T) {
		_, err := svc.CreateSession(context.Background(), ownerID, &dto.CreateSessionRequest{
			Topic: strings.Repeat("a", 501),
		})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestAppendMessageOrdering(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	msg, sess, err := svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Demand goes down?", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Sequence)
	assert.Equal(t, session.StatusActive, sess.Status)
	assert.Equal(t, 1, publisher.count())

	// A gap is a conflict.
	_, _, err = svc.AppendMessage(ctx, ownerID, sessionID, session.RoleResponder, "What do you think?", 3)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, _, err = svc.AppendMessage(ctx, ownerID, sessionID, session.RoleResponder, "What do you think?", 2)
	require.NoError(t, err)

	// Responder appends do not solicit another reply.
	assert.Equal(t, 1, publisher.count())

	view, err := svc.GetSession(ctx, ownerID, sessionID)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	for i, m := range view.Messages {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
}

func TestAppendMessageDuplicateSubmissionIsAbsorbed(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	first, _, err := svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Demand goes down?", 1)
	require.NoError(t, err)

	// Network retry after an ambiguous timeout: same position, same
	// content. Exactly one committed row, and no second respond request.
	again, _, err := svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Demand goes down?", 1)
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)
	assert.Equal(t, 1, publisher.count())

	view, err := svc.GetSession(ctx, ownerID, sessionID)
	require.NoError(t, err)
	assert.Len(t, view.Messages, 1)

	// Same position but different content is a real conflict.
	_, _, err = svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "Something else", 1)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAppendMessageValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	tests := []struct {
		name     string
		role     string
		content  string
		expected int64
	}{
		{"unknown role", "observer", "hello", 1},
		{"empty content", session.RoleInitiator, "", 1},
		{"content too long", session.RoleInitiator, strings.Repeat("a", 2001), 1},
		{"non-positive sequence", session.RoleInitiator, "hello", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.AppendMessage(ctx, ownerID, sessionID, tt.role, tt.content, tt.expected)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestOwnershipIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerA := uuid.New()
	ownerB := uuid.New()
	sessionID := createActiveSession(t, svc, ownerA)
	ctx := context.Background()

	// A foreign session and a missing session produce the same error
	// class, so ids cannot be probed.
	_, foreignErr := svc.GetSession(ctx, ownerB, sessionID)
	_, missingErr := svc.GetSession(ctx, ownerB, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(foreignErr))
	assert.Equal(t, apperr.KindOf(missingErr), apperr.KindOf(foreignErr))
	assert.Equal(t, apperr.UserMessage(missingErr), apperr.UserMessage(foreignErr))

	_, _, appendForeign := svc.AppendMessage(ctx, ownerB, sessionID, session.RoleInitiator, "hello there", 1)
	_, _, appendMissing := svc.AppendMessage(ctx, ownerB, uuid.New(), session.RoleInitiator, "hello there", 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(appendForeign))
	assert.Equal(t, apperr.KindOf(appendMissing), apperr.KindOf(appendForeign))
}

func TestTransition(t *testing.T) {
	svc, _, sink := newTestService(t)
	ownerID := uuid.New()
	ctx := context.Background()

	t.Run("commits status and outcome together", func(t *testing.T) {
		sessionID := createActiveSession(t, svc, ownerID)

		sess, err := svc.Transition(ctx, sessionID, session.StatusResolved, validOutcome(session.StatusResolved))
		require.NoError(t, err)
		assert.Equal(t, session.StatusResolved, sess.Status)
		require.NotNil(t, sess.EndedAt)
		assert.Contains(t, sink.events, "SESSION_ENDED")

		view, err := svc.GetSession(ctx, ownerID, sessionID)
		require.NoError(t, err)
		require.NotNil(t, view.Outcome)
		assert.Equal(t, string(session.StatusResolved), view.Outcome.Status)
	})

	t.Run("terminal sessions are immutable", func(t *testing.T) {
		sessionID := createActiveSession(t, svc, ownerID)
		_, err := svc.Transition(ctx, sessionID, session.StatusResolved, validOutcome(session.StatusResolved))
		require.NoError(t, err)

		_, _, err = svc.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, "one more question", 1)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

		_, err = svc.Transition(ctx, sessionID, session.StatusAbandoned, validOutcome(session.StatusAbandoned))
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

		// History stays readable.
		view, err := svc.GetSession(ctx, ownerID, sessionID)
		require.NoError(t, err)
		assert.Equal(t, string(session.StatusResolved), view.Status)
	})

	t.Run("outcome validation", func(t *testing.T) {
		sessionID := createActiveSession(t, svc, ownerID)

		tests := []struct {
			name    string
			status  session.Status
			outcome *entity.Outcome
		}{
			{"non-terminal target", session.StatusActive, validOutcome(session.StatusActive)},
			{"nil outcome", session.StatusResolved, nil},
			{"status mismatch", session.StatusResolved, validOutcome(session.StatusAbandoned)},
			{"thin summary", session.StatusResolved, &entity.Outcome{
				Status:      session.StatusResolved,
				Summary:     "too short",
				NextActions: []entity.NextAction{{Type: "practice", Label: "x"}},
			}},
			{"no next actions", session.StatusResolved, &entity.Outcome{
				Status:  session.StatusResolved,
				Summary: strings.Repeat("Long enough summary text. ", 3),
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Transition(ctx, sessionID, tt.status, tt.outcome)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			})
		}

		// The failed attempts left the session untouched.
		view, err := svc.GetSession(ctx, ownerID, sessionID)
		require.NoError(t, err)
		assert.Equal(t, string(session.StatusActive), view.Status)
		assert.Nil(t, view.Outcome)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		sessionID := createActiveSession(t, svc, ownerID)
		bad := validOutcome(session.StatusResolved)
		over := 1.5
		bad.Confidence = &over
		_, err := svc.Transition(ctx, sessionID, session.StatusResolved, bad)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestAbandon(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	resp, err := svc.Abandon(ctx, ownerID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusAbandoned), resp.Status)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, string(session.StatusAbandoned), resp.Outcome.Status)

	// Foreign owner cannot abandon, same shape as missing.
	other := createActiveSession(t, svc, ownerID)
	_, err = svc.Abandon(ctx, uuid.New(), other)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createActiveSession(t, svc, ownerID)
		time.Sleep(time.Millisecond)
	}
	createActiveSession(t, svc, uuid.New()) // someone else's

	resp, err := svc.ListSessions(ctx, ownerID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Sessions, 2)
	assert.True(t, resp.Sessions[0].CreatedAt.After(resp.Sessions[1].CreatedAt) ||
		resp.Sessions[0].CreatedAt.Equal(resp.Sessions[1].CreatedAt))

	rest, err := svc.ListSessions(ctx, ownerID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest.Sessions, 1)
}

func TestAbandonInactive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerID := uuid.New()
	ctx := context.Background()

	idle := createActiveSession(t, svc, ownerID)
	ended := createActiveSession(t, svc, ownerID)
	_, err := svc.Transition(ctx, ended, session.StatusResolved, validOutcome(session.StatusResolved))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	fresh := createActiveSession(t, svc, ownerID)
	_, _, err = svc.AppendMessage(ctx, ownerID, fresh, session.RoleInitiator, "still here", 1)
	require.NoError(t, err)

	swept, err := svc.AbandonInactive(ctx, time.Now().Add(-25*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	view, err := svc.GetSession(ctx, ownerID, idle)
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusAbandoned), view.Status)
	require.NotNil(t, view.Outcome)

	freshView, err := svc.GetSession(ctx, ownerID, fresh)
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusActive), freshView.Status)
}

func TestSendMessageReportsOutcomeWhenTerminal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ownerID := uuid.New()
	sessionID := createActiveSession(t, svc, ownerID)
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, ownerID, sessionID, &dto.SendMessageRequest{
		Content:          "Demand goes down?",
		ExpectedSequence: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusActive), resp.SessionStatus)
	assert.Nil(t, resp.Outcome)
	assert.Equal(t, int64(1), resp.Message.Sequence)
}
