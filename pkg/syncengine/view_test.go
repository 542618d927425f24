package syncengine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSession(messages ...Message) *Session {
	return &Session{
		Id:        uuid.New(),
		OwnerId:   uuid.New(),
		Topic:     "price elasticity of demand",
		Status:    "active",
		Messages:  messages,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func confirmed(sessionID uuid.UUID, sequence int64, role, content string) Message {
	return Message{
		Id:        uuid.New(),
		SessionId: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  sequence,
		CreatedAt: time.Now(),
	}
}

func TestViewPendingLifecycle(t *testing.T) {
	sess := baseSession()
	v := NewSessionView(sess)

	before := v.Session()
	p := v.ApplyPending("Demand goes down?")
	assert.True(t, p.Pending)
	assert.Equal(t, int64(1), p.Sequence)

	withPending := v.Session()
	require.Len(t, withPending.Messages, 1)
	assert.True(t, withPending.Messages[0].Pending)
	// Pending entries never count as confirmed.
	assert.Equal(t, int64(0), v.LastSequence())

	committed := confirmed(sess.Id, 1, "initiator", "Demand goes down?")
	v.ConfirmPending(committed)
	after := v.Session()
	require.Len(t, after.Messages, 1)
	assert.False(t, after.Messages[0].Pending)
	assert.Equal(t, committed.Id, after.Messages[0].Id)
	assert.Equal(t, int64(1), v.LastSequence())

	// Rollback restores the exact pre-submission structure.
	v2 := NewSessionView(sess)
	v2.ApplyPending("never commits")
	v2.RollbackPending()
	assert.Equal(t, before, v2.Session())
}

func TestViewMergeAppendsOnlyDelta(t *testing.T) {
	sess := baseSession()
	m1 := confirmed(sess.Id, 1, "initiator", "Demand goes down?")
	m2 := confirmed(sess.Id, 2, "responder", "What does elastic mean to you?")
	v := NewSessionView(sess)
	v.ConfirmPending(m1)

	remote := baseSession(m1, m2)
	remote.Id = sess.Id
	v.Merge(remote)
	v.Merge(remote) // idempotent

	got := v.Session()
	require.Len(t, got.Messages, 2)
	assert.Equal(t, int64(1), got.Messages[0].Sequence)
	assert.Equal(t, int64(2), got.Messages[1].Sequence)
}

func TestViewMergeServerWinsOnDivergence(t *testing.T) {
	sess := baseSession()
	v := NewSessionView(sess)
	v.ConfirmPending(confirmed(sess.Id, 1, "initiator", "local version"))

	serverM1 := confirmed(sess.Id, 1, "initiator", "server version")
	serverM2 := confirmed(sess.Id, 2, "responder", "reply")
	remote := baseSession(serverM1, serverM2)
	remote.Id = sess.Id
	v.Merge(remote)

	got := v.Session()
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "server version", got.Messages[0].Content)
	assert.Equal(t, serverM1.Id, got.Messages[0].Id)
}

func TestViewMergeDiscardsSupersededPending(t *testing.T) {
	sess := baseSession()
	v := NewSessionView(sess)
	v.ApplyPending("mine")

	// Another client won sequence 1.
	remote := baseSession(confirmed(sess.Id, 1, "initiator", "theirs"))
	remote.Id = sess.Id
	v.Merge(remote)

	got := v.Session()
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "theirs", got.Messages[0].Content)
	assert.False(t, v.HasPending())
}

func TestViewMergeCarriesStatusAndOutcome(t *testing.T) {
	sess := baseSession()
	v := NewSessionView(sess)

	ended := time.Now()
	remote := baseSession()
	remote.Id = sess.Id
	remote.Status = "resolved"
	remote.EndedAt = &ended
	remote.Outcome = &Outcome{
		Status:      "resolved",
		Summary:     "The student can now explain elasticity in their own words without prompting.",
		NextActions: []NextAction{{Type: "practice", Label: "Three practice problems"}},
	}
	v.Merge(remote)

	got := v.Session()
	assert.Equal(t, "resolved", got.Status)
	require.NotNil(t, got.Outcome)
	assert.True(t, got.Terminal())
}
