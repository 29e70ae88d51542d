package events

import (
	"context"
	"time"

	"rag-chatbot-be/internal/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emitter fans an event out to every sink. Publishing is best effort: sink
// failures are logged and never reach the caller. A nil Emitter is a no-op.
type Emitter struct {
	sinks   []Publisher
	logger  logger.ILogger
	timeout time.Duration
}

func NewEmitter(logger logger.ILogger, sinks ...Publisher) *Emitter {
	active := make([]Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Emitter{sinks: active, logger: logger, timeout: 5 * time.Second}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, data map[string]interface{}) {
	if e == nil || len(e.sinks) == 0 {
		return
	}

	event := New(eventType, data)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	for _, sink := range e.sinks {
		if err := sink.Publish(pubCtx, event); err != nil {
			e.logger.Warn("EVENTS", "Failed to publish event", map[string]interface{}{
				"type":  eventType,
				"error": err.Error(),
			})
		}
	}
}
