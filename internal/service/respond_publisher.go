package service

import (
	"context"
	"encoding/json"

	"ai-tutoring-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IRespondPublisher queues a respond request on the in-process bus after
// an initiator message commits.
type IRespondPublisher interface {
	PublishRespondRequest(ctx context.Context, payload *dto.RespondRequestMessage) error
}

type respondPublisher struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewRespondPublisher(topicName string, pubSub *gochannel.GoChannel) IRespondPublisher {
	return &respondPublisher{
		pubSub:    pubSub,
		topicName: topicName,
	}
}

func (p *respondPublisher) PublishRespondRequest(ctx context.Context, payload *dto.RespondRequestMessage) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return p.pubSub.Publish(p.topicName, msg)
}
