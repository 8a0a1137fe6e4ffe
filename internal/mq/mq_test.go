package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquanet/apiserver/config"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/types"
)

// loopback delivers published messages synchronously to the subscriber.
type loopback struct {
	mu      sync.Mutex
	handler Handler
	pending []Message
	acked   int
}

func (l *loopback) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := Message{ID: "m1", Data: data, Attributes: attrs}
	l.pending = append(l.pending, msg)
	return msg.ID, nil
}

func (l *loopback) Subscribe(ctx context.Context, _ string, handler Handler) error {
	l.mu.Lock()
	msgs := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, m := range msgs {
		if err := handler(ctx, m); err == nil {
			l.acked++
		}
	}
	return nil
}

func (l *loopback) Close() error { return nil }

func TestEventBus_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := &loopback{}
	bus := NewEventBus(backend, "notifications", logger.Discard())

	uid := 7
	sent := types.Event{
		Kind:       types.EventNotificationCreated,
		EntityID:   3,
		UserID:     &uid,
		Title:      "Outage",
		Message:    "Pipe burst on Main St",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	id, err := bus.PublishEvent(ctx, sent)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Equal(t, types.EventNotificationCreated, backend.pending[0].Attributes["kind"])

	var got []types.Event
	require.NoError(t, bus.Consume(ctx, func(_ context.Context, ev types.Event) error {
		got = append(got, ev)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, sent, got[0])
}

func TestEventBus_DropsMalformed(t *testing.T) {
	ctx := context.Background()
	backend := &loopback{pending: []Message{{ID: "bad", Data: []byte("{not json")}}}
	bus := NewEventBus(backend, "notifications", logger.Discard())

	called := false
	require.NoError(t, bus.Consume(ctx, func(context.Context, types.Event) error {
		called = true
		return errors.New("unreachable")
	}))
	assert.False(t, called)
	assert.Equal(t, 1, backend.acked)
}

func TestOpen_Selection(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: BackendRabbitMQ})
	assert.ErrorContains(t, err, "RABBITMQ_URL")

	_, err = Open(context.Background(), config.MQConfig{Backend: BackendPubSub})
	assert.ErrorContains(t, err, "PUBSUB_PROJECT_ID")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	assert.Equal(t,
		map[string]string{"kind": "notification.created", "raw": "x", "n": "3"},
		headersToAttributes(amqp.Table{"kind": "notification.created", "raw": []byte("x"), "n": int32(3)}),
	)
}

func TestSubscriptionName(t *testing.T) {
	assert.Equal(t, "notifications-sub", subscriptionName("notifications", ""))
	assert.Equal(t, "notifications-dispatch", subscriptionName("notifications", "-dispatch"))
}
