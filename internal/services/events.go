package services

import (
	"context"
	"log/slog"

	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/types"
)

// EventPublisher sends domain events to the message queue. *mq.EventBus
// satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev types.Event) (string, error)
}

// publish sends ev when a publisher is configured. The row that caused the
// event is already committed, so failures are logged rather than returned.
func publish(ctx context.Context, pub EventPublisher, log *slog.Logger, ev types.Event) {
	if pub == nil {
		return
	}
	id, err := pub.PublishEvent(ctx, ev)
	if err != nil {
		log.Warn("failed to publish event",
			slog.String("op", "services.publish"),
			slog.String("kind", ev.Kind),
			slog.Int("entity_id", ev.EntityID),
			logger.Err(err),
		)
		return
	}
	log.Debug("event published", slog.String("kind", ev.Kind), slog.String("message_id", id))
}
