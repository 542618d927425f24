package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/specification"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/internal/session"
	"ai-tutoring-be/pkg/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	topicMinRunes   = 10
	topicMaxRunes   = 500
	contentMinRunes = 1
	contentMaxRunes = 2000
	summaryMinRunes = 50
	maxNextActions  = 5
)

// LifecycleSink receives session lifecycle events (NATS in production).
// Delivery is best effort; a down broker never fails a user request.
type LifecycleSink interface {
	Publish(ctx context.Context, event events.Event) error
}

// ISessionService is the authoritative session store contract: every
// mutation of session state funnels through it.
type ISessionService interface {
	CreateSession(ctx context.Context, ownerID uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	SendMessage(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	GetSession(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*dto.ListSessionsResponse, error)
	Abandon(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID) (*dto.SessionResponse, error)

	// AppendMessage is the single commit path for messages, used by
	// SendMessage and by the responder worker.
	AppendMessage(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID, role, content string, expectedSequence int64) (*entity.Message, *entity.Session, error)

	// Transition atomically moves a session into a terminal status and
	// commits its outcome in the same transaction.
	Transition(ctx context.Context, sessionID uuid.UUID, newStatus session.Status, outcome *entity.Outcome) (*entity.Session, error)

	// AbandonInactive sweeps active sessions idle since before cutoff.
	AbandonInactive(ctx context.Context, cutoff time.Time) (int, error)
}

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  IRespondPublisher
	lifecycle  LifecycleSink
	log        logger.ILogger
}

func NewSessionService(
	uowFactory unitofwork.RepositoryFactory,
	publisher IRespondPublisher,
	lifecycle LifecycleSink,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		uowFactory: uowFactory,
		publisher:  publisher,
		lifecycle:  lifecycle,
		log:        log,
	}
}

// CreateSession opens a new active session for an owner.
func (s *sessionService) CreateSession(ctx context.Context, ownerID uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if n := utf8.RuneCountInString(request.Topic); n < topicMinRunes || n > topicMaxRunes {
		return nil, apperr.Validation("topic must be between 10 and 500 characters")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	sess := entity.Session{
		Id:        uuid.New(),
		OwnerId:   ownerID,
		Topic:     request.Topic,
		Status:    session.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uow.SessionRepository().Create(ctx, &sess); err != nil {
		return nil, apperr.Transient("could not create session", err)
	}

	s.emit(ctx, events.NewSessionCreated(sess.Id, ownerID, sess.Topic))

	return s.toSessionResponse(&sess, nil, nil), nil
}

// SendMessage commits an initiator message and reports the session status
// observed in the same transaction. The responder reply arrives later
// through the poll path.
func (s *sessionService) SendMessage(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	msg, sess, err := s.AppendMessage(ctx, ownerID, sessionID, session.RoleInitiator, request.Content, request.ExpectedSequence)
	if err != nil {
		return nil, err
	}

	resp := &dto.SendMessageResponse{
		Message:       toMessageResponse(msg),
		SessionStatus: string(sess.Status),
	}
	if session.Terminal(sess.Status) {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		outcome, err := uow.OutcomeRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionID})
		if err == nil {
			resp.Outcome = toOutcomeResponse(outcome)
		}
	}
	return resp, nil
}

// AppendMessage enforces the append-only, gap-free sequence contract.
// The sequence check and insert share one transaction; the unique index
// on (session_id, sequence) backstops concurrent writers that raced past
// the check.
func (s *sessionService) AppendMessage(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID, role, content string, expectedSequence int64) (*entity.Message, *entity.Session, error) {
	if !session.ValidRole(role) {
		return nil, nil, apperr.Validation("unknown message role")
	}
	if n := utf8.RuneCountInString(content); n < contentMinRunes || n > contentMaxRunes {
		return nil, nil, apperr.Validation("message must be between 1 and 2000 characters")
	}
	if expectedSequence < 1 {
		return nil, nil, apperr.Validation("expected_sequence must be positive")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, apperr.Transient("could not start transaction", err)
	}
	defer uow.Rollback()

	sess, err := s.findOwnedSession(ctx, uow, ownerID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if session.Terminal(sess.Status) {
		return nil, nil, apperr.InvalidState("session ended")
	}

	last, err := uow.MessageRepository().LastSequence(ctx, sessionID)
	if err != nil {
		return nil, nil, apperr.Transient("could not read sequence", err)
	}

	if expectedSequence != last+1 {
		// A resubmission of an already-committed message (same position,
		// same content) is a network retry after an ambiguous timeout;
		// absorb it instead of conflicting so the client never commits
		// a duplicate.
		if expectedSequence <= last {
			existing, findErr := s.findAtSequence(ctx, uow, sessionID, expectedSequence)
			if findErr == nil && existing != nil && existing.Role == role && existing.Content == content {
				return existing, sess, nil
			}
		}
		return nil, nil, apperr.Conflict("message sequence conflict")
	}

	now := time.Now()
	msg := entity.Message{
		Id:        uuid.New(),
		SessionId: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  expectedSequence,
		CreatedAt: now,
	}

	if err := uow.MessageRepository().Create(ctx, &msg); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another writer won the race for this sequence.
			return nil, nil, apperr.Conflict("message sequence conflict")
		}
		return nil, nil, apperr.Transient("could not commit message", err)
	}

	sess.UpdatedAt = now
	if err := uow.SessionRepository().Update(ctx, sess); err != nil {
		return nil, nil, apperr.Transient("could not update session", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, apperr.Transient("could not commit transaction", err)
	}

	// Only committed initiator turns solicit a reply. Publishing after
	// commit keeps the bus free of phantom requests from rolled-back
	// transactions.
	if role == session.RoleInitiator && s.publisher != nil {
		if err := s.publisher.PublishRespondRequest(ctx, &dto.RespondRequestMessage{
			SessionId: sessionID,
			OwnerId:   sess.OwnerId,
			Sequence:  msg.Sequence,
		}); err != nil {
			s.log.Warn("session", "failed to publish respond request", map[string]interface{}{
				"session_id": sessionID.String(),
				"error":      err.Error(),
			})
		}
	}

	return &msg, sess, nil
}

// Transition moves a session into a terminal status. The status flip and
// the outcome row commit in the same transaction; a session can never be
// observed terminal without its outcome.
func (s *sessionService) Transition(ctx context.Context, sessionID uuid.UUID, newStatus session.Status, outcome *entity.Outcome) (*entity.Session, error) {
	if !session.Valid(newStatus) {
		return nil, apperr.Validation("unknown session status")
	}
	if err := validateOutcome(newStatus, outcome); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperr.Transient("could not start transaction", err)
	}
	defer uow.Rollback()

	sess, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, apperr.Transient("could not load session", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}

	if !session.CanTransition(sess.Status, newStatus) {
		return nil, apperr.InvalidState("session ended")
	}

	now := time.Now()
	sess.Status = newStatus
	sess.UpdatedAt = now
	sess.EndedAt = &now
	if err := uow.SessionRepository().Update(ctx, sess); err != nil {
		return nil, apperr.Transient("could not update session", err)
	}

	outcome.Id = uuid.New()
	outcome.SessionId = sessionID
	outcome.CreatedAt = now
	if err := uow.OutcomeRepository().Create(ctx, outcome); err != nil {
		return nil, apperr.Transient("could not commit outcome", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperr.Transient("could not commit transaction", err)
	}

	sess.Outcome = outcome
	s.emit(ctx, events.NewSessionEnded(sess.Id, sess.OwnerId, string(newStatus)))

	return sess, nil
}

// GetSession returns the full owner-scoped view: session, ordered
// history, and outcome when terminal.
func (s *sessionService) GetSession(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sess, err := s.findOwnedSession(ctx, uow, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	msgs, err := uow.MessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "sequence", Desc: false},
	)
	if err != nil {
		return nil, apperr.Transient("could not load messages", err)
	}

	var outcome *entity.Outcome
	if session.Terminal(sess.Status) {
		outcome, err = uow.OutcomeRepository().FindOne(ctx, specification.BySessionID{SessionID: sessionID})
		if err != nil {
			return nil, apperr.Transient("could not load outcome", err)
		}
	}

	return s.toSessionResponse(sess, msgs, outcome), nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *sessionService) ListSessions(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*dto.ListSessionsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.SessionRepository().Count(ctx, specification.OwnedBy{OwnerID: ownerID})
	if err != nil {
		return nil, apperr.Transient("could not count sessions", err)
	}

	sessions, err := uow.SessionRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerID},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, apperr.Transient("could not list sessions", err)
	}

	resp := &dto.ListSessionsResponse{
		Sessions: make([]dto.SessionSummaryResponse, 0, len(sessions)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, dto.SessionSummaryResponse{
			Id:        sess.Id,
			Topic:     sess.Topic,
			Status:    string(sess.Status),
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		})
	}
	return resp, nil
}

// Abandon ends a session on explicit client signal.
func (s *sessionService) Abandon(ctx context.Context, ownerID uuid.UUID, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	// Ownership check first so a foreign session is indistinguishable
	// from a missing one.
	if _, err := s.findOwnedSession(ctx, uow, ownerID, sessionID); err != nil {
		return nil, err
	}

	sess, err := s.Transition(ctx, sessionID, session.StatusAbandoned, abandonedOutcome())
	if err != nil {
		return nil, err
	}

	msgs, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "sequence", Desc: false},
	)
	if err != nil {
		return nil, apperr.Transient("could not load messages", err)
	}

	return s.toSessionResponse(sess, msgs, sess.Outcome), nil
}

// AbandonInactive transitions every active session idle since before
// cutoff. Invoked by the sweeper ticker.
func (s *sessionService) AbandonInactive(ctx context.Context, cutoff time.Time) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	idle, err := uow.SessionRepository().FindAll(ctx,
		specification.ByStatus{Status: string(session.StatusActive)},
		specification.UpdatedBefore{Cutoff: cutoff},
	)
	if err != nil {
		return 0, apperr.Transient("could not query idle sessions", err)
	}

	swept := 0
	for _, sess := range idle {
		if _, err := s.Transition(ctx, sess.Id, session.StatusAbandoned, abandonedOutcome()); err != nil {
			// A session can legitimately end between the query and the
			// transition; anything else is logged and skipped.
			if apperr.KindOf(err) != apperr.KindInvalidState {
				s.log.Warn("session", "failed to abandon idle session", map[string]interface{}{
					"session_id": sess.Id.String(),
					"error":      err.Error(),
				})
			}
			continue
		}
		swept++
	}
	return swept, nil
}

// helpers

// findOwnedSession loads a session scoped by owner. A session owned by
// someone else produces the same error as a missing one, so ids cannot
// be probed.
func (s *sessionService) findOwnedSession(ctx context.Context, uow unitofwork.UnitOfWork, ownerID uuid.UUID, sessionID uuid.UUID) (*entity.Session, error) {
	sess, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionID},
		specification.OwnedBy{OwnerID: ownerID},
	)
	if err != nil {
		return nil, apperr.Transient("could not load session", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}
	return sess, nil
}

func (s *sessionService) findAtSequence(ctx context.Context, uow unitofwork.UnitOfWork, sessionID uuid.UUID, sequence int64) (*entity.Message, error) {
	msgs, err := uow.MessageRepository().FindAll(ctx, specification.BySessionID{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Sequence == sequence {
			return m, nil
		}
	}
	return nil, nil
}

func (s *sessionService) emit(ctx context.Context, event events.Event) {
	if s.lifecycle == nil {
		return
	}
	if err := s.lifecycle.Publish(ctx, event); err != nil {
		s.log.Warn("session", "failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func validateOutcome(newStatus session.Status, outcome *entity.Outcome) error {
	if !session.Terminal(newStatus) {
		return apperr.Validation("transition target must be a terminal status")
	}
	if outcome == nil {
		return apperr.Validation("terminal transition requires an outcome")
	}
	if outcome.Status != newStatus {
		return apperr.Validation("outcome status must match session status")
	}
	if utf8.RuneCountInString(outcome.Summary) < summaryMinRunes {
		return apperr.Validation("outcome summary must be at least 50 characters")
	}
	if len(outcome.NextActions) < 1 || len(outcome.NextActions) > maxNextActions {
		return apperr.Validation("outcome requires between 1 and 5 next actions")
	}
	for _, a := range outcome.NextActions {
		if a.Type == "" || a.Label == "" {
			return apperr.Validation("next actions require a type and a label")
		}
	}
	if outcome.Confidence != nil && (*outcome.Confidence < 0 || *outcome.Confidence > 1) {
		return apperr.Validation("confidence must be within [0,1]")
	}
	return nil
}

// abandonedOutcome synthesizes the outcome for abandonment paths, where
// no responder verdict exists.
func abandonedOutcome() *entity.Outcome {
	return &entity.Outcome{
		Status:  session.StatusAbandoned,
		Summary: "The session ended without a conclusion because the conversation went inactive before the question was resolved.",
		NextActions: []entity.NextAction{
			{Type: "restart", Label: "Start a new session to continue working on this topic"},
		},
	}
}

// response mapping

func (s *sessionService) toSessionResponse(sess *entity.Session, msgs []*entity.Message, outcome *entity.Outcome) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		Id:        sess.Id,
		OwnerId:   sess.OwnerId,
		Topic:     sess.Topic,
		Status:    string(sess.Status),
		Messages:  make([]dto.MessageResponse, 0, len(msgs)),
		Outcome:   toOutcomeResponse(outcome),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		EndedAt:   sess.EndedAt,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return resp
}

func toMessageResponse(m *entity.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Id:        m.Id,
		SessionId: m.SessionId,
		Role:      m.Role,
		Content:   m.Content,
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}
}

func toOutcomeResponse(o *entity.Outcome) *dto.OutcomeResponse {
	if o == nil {
		return nil
	}
	resp := &dto.OutcomeResponse{
		Status:      string(o.Status),
		Summary:     o.Summary,
		NextActions: make([]dto.NextActionResponse, 0, len(o.NextActions)),
		Confidence:  o.Confidence,
	}
	for _, a := range o.NextActions {
		resp.NextActions = append(resp.NextActions, dto.NextActionResponse{
			Type:  a.Type,
			Label: a.Label,
			Ref:   a.Ref,
		})
	}
	return resp
}
