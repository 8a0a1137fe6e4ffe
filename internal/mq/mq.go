package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aquanet/apiserver/config"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/types"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Backend names accepted in MQ_BACKEND.
const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
)

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("message queue disabled")

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case "":
		return nil, ErrDisabled
	case BackendRabbitMQ:
		return NewRabbitMQClient(cfg.RabbitMQ)
	case BackendPubSub:
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("mq.Open: unknown backend %q", cfg.Backend)
	}
}

const attrKind = "kind"

// EventBus publishes and consumes types.Event values as JSON on one channel.
type EventBus struct {
	backend Backend
	channel string
	log     *slog.Logger
}

func NewEventBus(backend Backend, channel string, log *slog.Logger) *EventBus {
	return &EventBus{backend: backend, channel: channel, log: log}
}

// PublishEvent sends ev and returns the broker message id.
func (b *EventBus) PublishEvent(ctx context.Context, ev types.Event) (string, error) {
	const op = "mq.EventBus.PublishEvent"

	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := b.backend.Publish(ctx, b.channel, data, map[string]string{attrKind: ev.Kind})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Consume blocks, passing every decoded event to handle until ctx ends.
// Payloads that do not decode are logged and acknowledged so they are not
// redelivered forever.
func (b *EventBus) Consume(ctx context.Context, handle func(context.Context, types.Event) error) error {
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var ev types.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Warn("dropping malformed event",
				slog.String("op", "mq.EventBus.Consume"),
				slog.String("message_id", msg.ID),
				logger.Err(err),
			)
			return nil
		}
		return handle(ctx, ev)
	})
}

// Close closes the underlying backend.
func (b *EventBus) Close() error {
	return b.backend.Close()
}
