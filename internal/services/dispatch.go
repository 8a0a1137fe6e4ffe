package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// Delivery is one recipient's share of an event.
type Delivery struct {
	UserID   int
	Channels []string
	Event    types.Event
}

// DeliverFunc hands a delivery to the channel senders.
type DeliverFunc func(ctx context.Context, d Delivery) error

// defaultChannels apply to users without a setting for the event type.
var defaultChannels = []string{"email", "push"}

const dispatchPageSize = 200

// Dispatcher resolves recipients and their enabled channels for events
// consumed from the notification channel.
type Dispatcher struct {
	users    UserRepository
	settings Repository[types.NotificationSetting]
	deliver  DeliverFunc
	log      *slog.Logger
}

func NewDispatcher(users UserRepository, settings Repository[types.NotificationSetting], deliver DeliverFunc, log *slog.Logger) *Dispatcher {
	return &Dispatcher{users: users, settings: settings, deliver: deliver, log: log}
}

// Handle delivers ev to its addressee, or to every active user for a
// broadcast. Unknown or inactive addressees are skipped. A failed addressed
// delivery is returned so the event is redelivered; a broadcast logs each
// failed recipient and carries on, since redelivering it would repeat every
// delivery that already succeeded.
func (d *Dispatcher) Handle(ctx context.Context, ev types.Event) error {
	const op = "services.Dispatcher.Handle"

	if ev.UserID != nil {
		user, err := d.users.GetByID(ctx, *ev.UserID)
		if errors.Is(err, store.ErrNotFound) {
			d.log.Info("dropping event for unknown user", slog.String("op", op), slog.Int("user_id", *ev.UserID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return d.deliverTo(ctx, user, ev)
	}

	failed := 0
	for offset := 0; ; offset += dispatchPageSize {
		users, err := d.users.List(ctx, offset, dispatchPageSize)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, user := range users {
			if err := d.deliverTo(ctx, user, ev); err != nil {
				failed++
				d.log.Error("broadcast delivery failed",
					slog.String("op", op),
					slog.Int("user_id", user.ID),
					slog.String("kind", ev.Kind),
					logger.Err(err),
				)
			}
		}
		if len(users) < dispatchPageSize {
			if failed > 0 {
				d.log.Warn("broadcast partially delivered", slog.String("op", op), slog.Int("failed", failed))
			}
			return nil
		}
	}
}

func (d *Dispatcher) deliverTo(ctx context.Context, user types.User, ev types.Event) error {
	if !user.IsActive {
		return nil
	}
	channels, err := d.channels(ctx, user.ID, ev.Type)
	if err != nil {
		return fmt.Errorf("services.Dispatcher.deliverTo: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}
	return d.deliver(ctx, Delivery{UserID: user.ID, Channels: channels, Event: ev})
}

func (d *Dispatcher) channels(ctx context.Context, userID int, kind string) ([]string, error) {
	settings, err := d.settings.List(ctx, 0, 1,
		store.Eq("user_id", userID),
		store.Eq("notification_type", kind),
	)
	if err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return defaultChannels, nil
	}
	return settings[0].Channels(), nil
}

// LogDelivery is a DeliverFunc that records deliveries in the log. Channel
// senders are not part of this service.
func LogDelivery(log *slog.Logger) DeliverFunc {
	return func(_ context.Context, d Delivery) error {
		log.Info("notification delivered",
			slog.Int("user_id", d.UserID),
			slog.Any("channels", d.Channels),
			slog.String("kind", d.Event.Kind),
			slog.Int("entity_id", d.Event.EntityID),
			slog.String("title", d.Event.Title),
		)
		return nil
	}
}
