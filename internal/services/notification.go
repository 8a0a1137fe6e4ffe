package services

import (
	"context"
	"log/slog"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// NotificationService manages notifications and per-user delivery settings.
// Every new notification is published as EventNotificationCreated.
type NotificationService struct {
	*Resource[types.Notification]
	Settings *Resource[types.NotificationSetting]

	events EventPublisher
	log    *slog.Logger
}

func NewNotificationService(notifications Repository[types.Notification], settings Repository[types.NotificationSetting], users ExistsFunc, events EventPublisher, log *slog.Logger) *NotificationService {
	return &NotificationService{
		Resource: NewResource("notification", notifications).
			WithReference("user", func(n types.Notification) int { return derefInt(n.UserID) }, users),
		Settings: NewResource("notification setting", settings).
			WithReference("user", func(s types.NotificationSetting) int { return s.UserID }, users),
		events: events,
		log:    log,
	}
}

// Send stores n and publishes it.
func (s *NotificationService) Send(ctx context.Context, caller types.User, n types.Notification) (types.Notification, error) {
	created, err := s.Create(ctx, caller, n)
	if err != nil {
		return types.Notification{}, err
	}
	publish(ctx, s.events, s.log, types.Event{
		Kind:       types.EventNotificationCreated,
		EntityID:   created.ID,
		UserID:     created.UserID,
		Title:      created.Title,
		Message:    created.Message,
		Type:       created.NotificationType,
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

// ForUser lists notifications addressed to userID plus broadcasts.
func (s *NotificationService) ForUser(ctx context.Context, userID, offset, limit int) ([]types.Notification, error) {
	return s.List(ctx, offset, limit, store.EqOrNull("user_id", userID))
}

// GetFor returns notification id if it is addressed to caller, is a
// broadcast, or caller is staff.
func (s *NotificationService) GetFor(ctx context.Context, caller types.User, id int) (types.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return types.Notification{}, err
	}
	if n.UserID != nil && *n.UserID != caller.ID && !caller.Role.AtLeast(types.RoleEngineer) {
		return types.Notification{}, &auth.ForbiddenError{Reason: "notification belongs to another user"}
	}
	return n, nil
}

// MarkRead marks notification id read. Callers may only mark their own
// notifications or broadcasts unless they are admins.
func (s *NotificationService) MarkRead(ctx context.Context, caller types.User, id int) (types.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return types.Notification{}, err
	}
	if n.UserID != nil && *n.UserID != caller.ID && caller.Role != types.RoleAdmin {
		return types.Notification{}, &auth.ForbiddenError{Reason: "notification belongs to another user"}
	}
	return s.Patch(ctx, id, map[string]any{"is_read": true})
}

// MarkAllRead marks every unread notification visible to caller read and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, caller types.User) (int64, error) {
	return s.PatchWhere(ctx, map[string]any{"is_read": true},
		store.EqOrNull("user_id", caller.ID),
		store.Eq("is_read", false),
	)
}

// SettingsFor lists the delivery settings of userID.
func (s *NotificationService) SettingsFor(ctx context.Context, userID, offset, limit int) ([]types.NotificationSetting, error) {
	return s.Settings.List(ctx, offset, limit, store.Eq("user_id", userID))
}

// CreateSetting stores a setting for setting.UserID, defaulting to caller.
// Only admins may create settings for other users.
func (s *NotificationService) CreateSetting(ctx context.Context, caller types.User, setting types.NotificationSetting) (types.NotificationSetting, error) {
	if setting.UserID == 0 {
		setting.UserID = caller.ID
	}
	if err := auth.RequireSelfOrAdmin(caller, auth.Resource{TargetUserID: setting.UserID}); err != nil {
		return types.NotificationSetting{}, err
	}
	return s.Settings.Create(ctx, caller, setting)
}

// UpdateSetting applies a partial update to setting id owned by caller.
func (s *NotificationService) UpdateSetting(ctx context.Context, caller types.User, id int, apply func(*types.NotificationSetting) error) (types.NotificationSetting, error) {
	current, err := s.Settings.Get(ctx, id)
	if err != nil {
		return types.NotificationSetting{}, err
	}
	if err := auth.RequireSelfOrAdmin(caller, auth.Resource{TargetUserID: current.UserID}); err != nil {
		return types.NotificationSetting{}, err
	}
	return s.Settings.Update(ctx, id, apply)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
