package syncengine

import (
	"time"

	"github.com/google/uuid"
)

// SessionView is the local, possibly speculative rendering of one
// session: the confirmed message list plus at most one pending entry.
// It is not safe for concurrent use; the engine serializes access.
type SessionView struct {
	session Session
	pending *Message
}

func NewSessionView(sess *Session) *SessionView {
	v := &SessionView{}
	if sess != nil {
		v.session = cloneSession(sess)
	}
	return v
}

// Session returns a copy of the current view with the pending entry,
// if any, appended after the confirmed messages.
func (v *SessionView) Session() Session {
	out := cloneSession(&v.session)
	if v.pending != nil {
		p := *v.pending
		out.Messages = append(out.Messages, p)
	}
	return out
}

// LastSequence is the highest confirmed sequence; pending entries do
// not count until the store confirms them.
func (v *SessionView) LastSequence() int64 {
	if n := len(v.session.Messages); n > 0 {
		return v.session.Messages[n-1].Sequence
	}
	return 0
}

func (v *SessionView) HasPending() bool {
	return v.pending != nil
}

// ApplyPending speculatively appends an initiator message ahead of the
// store round-trip. The entry carries the sequence the store is
// expected to assign.
func (v *SessionView) ApplyPending(content string) Message {
	p := Message{
		Id:        uuid.New(),
		SessionId: v.session.Id,
		Role:      "initiator",
		Content:   content,
		Sequence:  v.LastSequence() + 1,
		CreatedAt: time.Now(),
		Pending:   true,
	}
	v.pending = &p
	return p
}

// ConfirmPending replaces the pending entry with the committed row the
// store assigned (server id, sequence and timestamp win).
func (v *SessionView) ConfirmPending(committed Message) {
	v.pending = nil
	v.appendConfirmed(committed)
}

// RollbackPending drops the pending entry, leaving the view
// structurally identical to its pre-submission state.
func (v *SessionView) RollbackPending() {
	v.pending = nil
}

// Merge folds an authoritative session into the view. Unknown messages
// are appended by sequence; known sequences are never duplicated. When
// the store disagrees with a confirmed local entry the store's list
// replaces the local one outright. A pending entry whose sequence the
// store has meanwhile assigned to someone else is discarded.
func (v *SessionView) Merge(authoritative *Session) {
	diverged := false
	for _, remote := range authoritative.Messages {
		local, ok := v.messageAt(remote.Sequence)
		if !ok {
			continue
		}
		if local.Id != remote.Id || local.Content != remote.Content || local.Role != remote.Role {
			diverged = true
			break
		}
	}

	if diverged || len(authoritative.Messages) < len(v.session.Messages) {
		v.session.Messages = nil
		for _, m := range authoritative.Messages {
			v.appendConfirmed(m)
		}
	} else {
		last := v.LastSequence()
		for _, m := range authoritative.Messages {
			if m.Sequence > last {
				v.appendConfirmed(m)
			}
		}
	}

	if v.pending != nil && v.pending.Sequence <= v.LastSequence() {
		v.pending = nil
	}

	v.session.Status = authoritative.Status
	v.session.Outcome = authoritative.Outcome
	v.session.Topic = authoritative.Topic
	v.session.OwnerId = authoritative.OwnerId
	v.session.Id = authoritative.Id
	v.session.CreatedAt = authoritative.CreatedAt
	v.session.UpdatedAt = authoritative.UpdatedAt
	v.session.EndedAt = authoritative.EndedAt
}

func (v *SessionView) appendConfirmed(m Message) {
	m.Pending = false
	v.session.Messages = append(v.session.Messages, m)
}

func (v *SessionView) messageAt(sequence int64) (Message, bool) {
	for _, m := range v.session.Messages {
		if m.Sequence == sequence {
			return m, true
		}
	}
	return Message{}, false
}

func cloneSession(s *Session) Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Outcome != nil {
		o := *s.Outcome
		o.NextActions = make([]NextAction, len(s.Outcome.NextActions))
		copy(o.NextActions, s.Outcome.NextActions)
		out.Outcome = &o
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}
