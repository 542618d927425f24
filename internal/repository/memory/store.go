// Package memory provides an in-memory implementation of the repository
// contracts. It backs service tests so the store can be substituted
// without a database, while preserving the behavior the service depends
// on: the (session_id, sequence) uniqueness guard and transactional
// rollback.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/specification"
	"ai-tutoring-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session
	messages map[uuid.UUID][]*entity.Message // keyed by session id, sorted by sequence
	outcomes map[uuid.UUID]*entity.Outcome   // keyed by session id
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*entity.Session),
		messages: make(map[uuid.UUID][]*entity.Message),
		outcomes: make(map[uuid.UUID]*entity.Outcome),
	}
}

type snapshot struct {
	sessions map[uuid.UUID]*entity.Session
	messages map[uuid.UUID][]*entity.Message
	outcomes map[uuid.UUID]*entity.Outcome
}

func (s *Store) clone() *snapshot {
	snap := &snapshot{
		sessions: make(map[uuid.UUID]*entity.Session, len(s.sessions)),
		messages: make(map[uuid.UUID][]*entity.Message, len(s.messages)),
		outcomes: make(map[uuid.UUID]*entity.Outcome, len(s.outcomes)),
	}
	for id, sess := range s.sessions {
		c := *sess
		snap.sessions[id] = &c
	}
	for id, msgs := range s.messages {
		cp := make([]*entity.Message, len(msgs))
		for i, m := range msgs {
			c := *m
			cp[i] = &c
		}
		snap.messages[id] = cp
	}
	for id, o := range s.outcomes {
		c := *o
		snap.outcomes[id] = &c
	}
	return snap
}

func (s *Store) restore(snap *snapshot) {
	s.sessions = snap.sessions
	s.messages = snap.messages
	s.outcomes = snap.outcomes
}

// Factory implements unitofwork.RepositoryFactory over the in-memory store.
type Factory struct {
	store *Store
}

func NewFactory(store *Store) *Factory {
	return &Factory{store: store}
}

func (f *Factory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: f.store}
}

// unitOfWork holds the store lock for the duration of a transaction so a
// Begin..Commit block observes and mutates a consistent state, mirroring
// the serializable behavior the service relies on for the sequence check.
type unitOfWork struct {
	store  *Store
	active bool
	snap   *snapshot
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.active = true
	u.snap = u.store.clone()
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}
	u.active = false
	u.snap = nil
	u.store.mu.Unlock()
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.restore(u.snap)
	u.active = false
	u.snap = nil
	u.store.mu.Unlock()
	return nil
}

// lock acquires the store lock for a standalone (non-transactional) call.
// The returned func is a no-op when the uow already holds the lock.
func (u *unitOfWork) lock() func() {
	if u.active {
		return func() {}
	}
	u.store.mu.Lock()
	return u.store.mu.Unlock
}

func (u *unitOfWork) SessionRepository() contract.SessionRepository {
	return &sessionRepo{uow: u}
}

func (u *unitOfWork) MessageRepository() contract.MessageRepository {
	return &messageRepo{uow: u}
}

func (u *unitOfWork) OutcomeRepository() contract.OutcomeRepository {
	return &outcomeRepo{uow: u}
}

// spec filtering

type filter struct {
	id            *uuid.UUID
	ownerID       *uuid.UUID
	sessionID     *uuid.UUID
	status        *string
	updatedBefore *specification.UpdatedBefore
	order         *specification.OrderBy
	page          *specification.Pagination
}

func parseSpecs(specs []specification.Specification) filter {
	var f filter
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id := v.ID
			f.id = &id
		case specification.OwnedBy:
			id := v.OwnerID
			f.ownerID = &id
		case specification.BySessionID:
			id := v.SessionID
			f.sessionID = &id
		case specification.ByStatus:
			st := v.Status
			f.status = &st
		case specification.UpdatedBefore:
			ub := v
			f.updatedBefore = &ub
		case specification.OrderBy:
			o := v
			f.order = &o
		case specification.Pagination:
			p := v
			f.page = &p
		}
	}
	return f
}

func (f filter) matchSession(s *entity.Session) bool {
	if f.id != nil && s.Id != *f.id {
		return false
	}
	if f.ownerID != nil && s.OwnerId != *f.ownerID {
		return false
	}
	if f.status != nil && string(s.Status) != *f.status {
		return false
	}
	if f.updatedBefore != nil && !s.UpdatedAt.Before(f.updatedBefore.Cutoff) {
		return false
	}
	return true
}

// session repository

type sessionRepo struct {
	uow *unitOfWork
}

func (r *sessionRepo) Create(ctx context.Context, session *entity.Session) error {
	unlock := r.uow.lock()
	defer unlock()
	c := *session
	r.uow.store.sessions[session.Id] = &c
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, session *entity.Session) error {
	unlock := r.uow.lock()
	defer unlock()
	c := *session
	r.uow.store.sessions[session.Id] = &c
	return nil
}

func (r *sessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *sessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	unlock := r.uow.lock()
	defer unlock()

	f := parseSpecs(specs)
	var out []*entity.Session
	for _, s := range r.uow.store.sessions {
		if f.matchSession(s) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.order != nil && f.order.Desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.page != nil {
		start := f.page.Offset
		if start > len(out) {
			start = len(out)
		}
		end := start + f.page.Limit
		if f.page.Limit <= 0 || end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (r *sessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// message repository

type messageRepo struct {
	uow *unitOfWork
}

func (r *messageRepo) Create(ctx context.Context, message *entity.Message) error {
	unlock := r.uow.lock()
	defer unlock()

	msgs := r.uow.store.messages[message.SessionId]
	for _, m := range msgs {
		if m.Sequence == message.Sequence {
			// Same failure shape the postgres driver reports for a
			// violated unique index.
			return gorm.ErrDuplicatedKey
		}
	}
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	c := *message
	r.uow.store.messages[message.SessionId] = append(msgs, &c)
	sort.Slice(r.uow.store.messages[message.SessionId], func(i, j int) bool {
		return r.uow.store.messages[message.SessionId][i].Sequence < r.uow.store.messages[message.SessionId][j].Sequence
	})
	return nil
}

func (r *messageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	unlock := r.uow.lock()
	defer unlock()

	f := parseSpecs(specs)
	var out []*entity.Message
	if f.sessionID != nil {
		for _, m := range r.uow.store.messages[*f.sessionID] {
			c := *m
			out = append(out, &c)
		}
	} else {
		for _, msgs := range r.uow.store.messages {
			for _, m := range msgs {
				c := *m
				out = append(out, &c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *messageRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	f := parseSpecs(specs)
	for _, m := range all {
		if f.id != nil && m.Id != *f.id {
			continue
		}
		return m, nil
	}
	return nil, nil
}

func (r *messageRepo) LastSequence(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	unlock := r.uow.lock()
	defer unlock()

	msgs := r.uow.store.messages[sessionID]
	if len(msgs) == 0 {
		return 0, nil
	}
	return msgs[len(msgs)-1].Sequence, nil
}

func (r *messageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// outcome repository

type outcomeRepo struct {
	uow *unitOfWork
}

func (r *outcomeRepo) Create(ctx context.Context, outcome *entity.Outcome) error {
	unlock := r.uow.lock()
	defer unlock()

	if _, exists := r.uow.store.outcomes[outcome.SessionId]; exists {
		return gorm.ErrDuplicatedKey
	}
	if outcome.Id == uuid.Nil {
		outcome.Id = uuid.New()
	}
	c := *outcome
	r.uow.store.outcomes[outcome.SessionId] = &c
	return nil
}

func (r *outcomeRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Outcome, error) {
	unlock := r.uow.lock()
	defer unlock()

	f := parseSpecs(specs)
	if f.sessionID != nil {
		if o, ok := r.uow.store.outcomes[*f.sessionID]; ok {
			c := *o
			return &c, nil
		}
		return nil, nil
	}
	for _, o := range r.uow.store.outcomes {
		c := *o
		return &c, nil
	}
	return nil, nil
}
