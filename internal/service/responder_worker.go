package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/apperr"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/specification"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/internal/session"
	"ai-tutoring-be/pkg/responder"
	"ai-tutoring-be/pkg/retry"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IResponderWorker consumes respond requests and commits the responder's
// reply (and, when declared, the terminal outcome) through the regular
// store write path.
type IResponderWorker interface {
	Consume(ctx context.Context) error
}

type responderWorker struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	provider       responder.Responder
	sessionService ISessionService
	timeout        time.Duration
	policy         retry.Policy
	log            logger.ILogger
}

func NewResponderWorker(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	provider responder.Responder,
	sessionService ISessionService,
	timeout time.Duration,
	policy retry.Policy,
	log logger.ILogger,
) IResponderWorker {
	return &responderWorker{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		provider:       provider,
		sessionService: sessionService,
		timeout:        timeout,
		policy:         policy,
		log:            log,
	}
}

func (w *responderWorker) Consume(ctx context.Context) error {
	messages, err := w.pubSub.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (w *responderWorker) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.RespondRequestMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.log.Error("responder_worker", "failed to unmarshal respond request", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads would loop forever on Nack
		return
	}

	if err := w.respond(ctx, &payload); err != nil {
		w.log.Error("responder_worker", "respond request failed", map[string]interface{}{
			"session_id": payload.SessionId.String(),
			"error":      err.Error(),
		})
	}
	// Always Ack: the adapter is not idempotent, so redelivery risks a
	// duplicate invocation. A lost reply surfaces to the student as
	// "no answer yet" with a retry affordance.
	msg.Ack()
}

func (w *responderWorker) respond(ctx context.Context, payload *dto.RespondRequestMessage) error {
	uow := w.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: payload.SessionId},
		specification.OwnedBy{OwnerID: payload.OwnerId},
	)
	if err != nil {
		return apperr.Transient("could not load session", err)
	}
	if sess == nil || session.Terminal(sess.Status) {
		// Ended (or swept) between commit and consumption; nothing to do.
		return nil
	}

	msgs, err := uow.MessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: payload.SessionId},
		specification.OrderBy{Field: "sequence", Desc: false},
	)
	if err != nil {
		return apperr.Transient("could not load history", err)
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != session.RoleInitiator {
		// The reply for this request was already committed (redelivery,
		// or a second worker); invoking the adapter again would duplicate it.
		return nil
	}

	history := make([]responder.Turn, len(msgs))
	for i, m := range msgs {
		history[i] = responder.Turn{Role: m.Role, Content: m.Content}
	}
	lastSequence := msgs[len(msgs)-1].Sequence

	var reply *responder.Reply
	err = w.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		r, callErr := w.provider.Respond(callCtx, sess.Topic, history)
		if callErr != nil {
			return apperr.Adapter("the tutor did not answer, please try again", callErr)
		}
		reply = r
		return nil
	}, apperr.IsRetryable)
	if err != nil {
		return err
	}

	_, _, err = w.sessionService.AppendMessage(ctx, payload.OwnerId, payload.SessionId,
		session.RoleResponder, reply.Content, lastSequence+1)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			// Another writer advanced the conversation first; the poll
			// path will deliver whatever won.
			w.log.Warn("responder_worker", "reply lost sequence race", map[string]interface{}{
				"session_id": payload.SessionId.String(),
			})
			return nil
		}
		return err
	}

	if reply.Outcome != nil {
		return w.finishSession(ctx, payload, reply.Outcome)
	}
	return nil
}

func (w *responderWorker) finishSession(ctx context.Context, payload *dto.RespondRequestMessage, verdict *responder.Outcome) error {
	status := session.Status(verdict.Status)
	if !session.Terminal(status) {
		w.log.Warn("responder_worker", "adapter declared unknown terminal status", map[string]interface{}{
			"session_id": payload.SessionId.String(),
			"status":     verdict.Status,
		})
		return nil
	}

	outcome := &entity.Outcome{
		Status:      status,
		Summary:     verdict.Summary,
		NextActions: make([]entity.NextAction, 0, len(verdict.NextActions)),
		Confidence:  verdict.Confidence,
	}
	for _, a := range verdict.NextActions {
		outcome.NextActions = append(outcome.NextActions, entity.NextAction{
			Type:  a.Type,
			Label: a.Label,
			Ref:   a.Ref,
		})
	}

	_, err := w.sessionService.Transition(ctx, payload.SessionId, status, outcome)
	if err != nil && apperr.KindOf(err) == apperr.KindValidation {
		// The model produced an outcome that fails the invariants (thin
		// summary, no actions). The session stays active rather than
		// committing a malformed verdict.
		w.log.Warn("responder_worker", "adapter outcome rejected", map[string]interface{}{
			"session_id": payload.SessionId.String(),
			"error":      err.Error(),
		})
		return nil
	}
	return err
}
