package mapper

import (
	"encoding/json"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/model"
	"ai-tutoring-be/internal/session"

	"gorm.io/datatypes"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// Session Mappers

func (m *SessionMapper) SessionToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}

	return &entity.Session{
		Id:        s.Id,
		OwnerId:   s.OwnerId,
		Topic:     s.Topic,
		Status:    session.Status(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		EndedAt:   s.EndedAt,
	}
}

func (m *SessionMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}

	return &model.Session{
		Id:        s.Id,
		OwnerId:   s.OwnerId,
		Topic:     s.Topic,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		EndedAt:   s.EndedAt,
	}
}

// Message Mappers

func (m *SessionMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	return &entity.Message{
		Id:        msg.Id,
		SessionId: msg.SessionId,
		Role:      msg.Role,
		Content:   msg.Content,
		Sequence:  msg.Sequence,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *SessionMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	return &model.Message{
		Id:        msg.Id,
		SessionId: msg.SessionId,
		Role:      msg.Role,
		Content:   msg.Content,
		Sequence:  msg.Sequence,
		CreatedAt: msg.CreatedAt,
	}
}

// Outcome Mappers

func (m *SessionMapper) OutcomeToEntity(o *model.Outcome) *entity.Outcome {
	if o == nil {
		return nil
	}

	var actions []entity.NextAction
	// NextActions is validated on the write path; a decode failure here
	// would mean the row was corrupted outside the application.
	_ = json.Unmarshal(o.NextActions, &actions)

	return &entity.Outcome{
		Id:          o.Id,
		SessionId:   o.SessionId,
		Status:      session.Status(o.Status),
		Summary:     o.Summary,
		NextActions: actions,
		Confidence:  o.Confidence,
		CreatedAt:   o.CreatedAt,
	}
}

func (m *SessionMapper) OutcomeToModel(o *entity.Outcome) *model.Outcome {
	if o == nil {
		return nil
	}

	raw, _ := json.Marshal(o.NextActions)

	return &model.Outcome{
		Id:          o.Id,
		SessionId:   o.SessionId,
		Status:      string(o.Status),
		Summary:     o.Summary,
		NextActions: datatypes.JSON(raw),
		Confidence:  o.Confidence,
		CreatedAt:   o.CreatedAt,
	}
}
