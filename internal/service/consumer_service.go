package service

import (
	"context"

	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/events"
	pktNats "rag-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	auditModule        = "CHAT_AUDIT"
	auditDurable       = "chat-audit"
	auditSubjectFilter = "chat.>"
)

// IConsumerService drains chat events into the audit log in the background.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

// recordEvent writes one chat event to the audit log.
func recordEvent(auditLogger logger.ILogger, event events.Event) {
	details := map[string]interface{}{
		"type":        event.EventType(),
		"occurred_at": event.Timestamp(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}

	if event.EventType() == events.TypeGenerationFailed {
		auditLogger.Warn(auditModule, "Chat event", details)
		return
	}
	auditLogger.Info(auditModule, "Chat event", details)
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	auditLogger logger.ILogger
	logger      logger.ILogger
}

// NewConsumerService reads the in-process watermill topic.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	auditLogger logger.ILogger,
	logger logger.ILogger,
) IConsumerService {
	if topicName == "" {
		topicName = events.DefaultTopic
	}
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	event, err := events.Decode(msg)
	if err != nil {
		cs.logger.Error(auditModule, "Dropping malformed chat event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Malformed payloads never become valid on redelivery.
		msg.Ack()
		return
	}

	recordEvent(cs.auditLogger, event)
	msg.Ack()
}

type natsConsumerService struct {
	subscriber  *pktNats.Subscriber
	auditLogger logger.ILogger
}

// NewNatsConsumerService reads the JetStream stream with a durable consumer.
func NewNatsConsumerService(subscriber *pktNats.Subscriber, auditLogger logger.ILogger) IConsumerService {
	return &natsConsumerService{
		subscriber:  subscriber,
		auditLogger: auditLogger,
	}
}

func (cs *natsConsumerService) Consume(ctx context.Context) error {
	return cs.subscriber.Subscribe(ctx, auditSubjectFilter, auditDurable, func(ctx context.Context, event events.Event) error {
		recordEvent(cs.auditLogger, event)
		return nil
	})
}
