package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

func newNotificationService(t *testing.T, pub EventPublisher) *NotificationService {
	t.Helper()
	users := store.NewMemoryUserRepository()
	userSvc := NewUserService(users, newHasher())
	for _, name := range []string{"root", "eng", "alice"} {
		_, err := userSvc.Register(context.Background(), types.UserCreate{Username: name, Password: "pw"})
		require.NoError(t, err)
	}
	return NewNotificationService(
		store.NewMemTable[types.Notification]("notifications"),
		store.NewMemTable[types.NotificationSetting]("notification_settings"),
		userSvc.Exists,
		pub,
		logger.Discard(),
	)
}

func TestNotificationService_SendPublishes(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	svc := newNotificationService(t, pub)

	pub.On("PublishEvent", mock.Anything, mock.MatchedBy(func(ev types.Event) bool {
		return ev.Kind == types.EventNotificationCreated && ev.EntityID == 1 && *ev.UserID == citizen.ID && ev.Type == "maintenance"
	})).Return("msg-1", nil).Once()

	n, err := svc.Send(ctx, engineer, types.Notification{
		UserID:           ptr(citizen.ID),
		Title:            "Planned outage",
		Message:          "Water off 9-11",
		NotificationType: "maintenance",
	})
	require.NoError(t, err)
	assert.Equal(t, "medium", n.Priority)
	assert.Equal(t, "all", n.TargetAudience)
	pub.AssertExpectations(t)
}

func TestNotificationService_SendSurvivesPublishFailure(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishEvent", mock.Anything, mock.Anything).Return("", errors.New("broker down"))
	svc := newNotificationService(t, pub)

	n, err := svc.Send(context.Background(), engineer, types.Notification{Title: "t", Message: "m"})
	require.NoError(t, err)
	assert.Nil(t, n.UserID)
	pub.AssertNumberOfCalls(t, "PublishEvent", 1)
}

func TestNotificationService_SendUnknownUser(t *testing.T) {
	svc := newNotificationService(t, nil)

	_, err := svc.Send(context.Background(), engineer, types.Notification{UserID: ptr(77), Title: "t", Message: "m"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNotificationService_ReadFlow(t *testing.T) {
	ctx := context.Background()
	svc := newNotificationService(t, nil)

	mine, err := svc.Send(ctx, engineer, types.Notification{UserID: ptr(citizen.ID), Title: "yours", Message: "m"})
	require.NoError(t, err)
	theirs, err := svc.Send(ctx, engineer, types.Notification{UserID: ptr(engineer.ID), Title: "theirs", Message: "m"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, engineer, types.Notification{Title: "everyone", Message: "m"})
	require.NoError(t, err)

	visible, err := svc.ForUser(ctx, citizen.ID, 0, 0)
	require.NoError(t, err)
	titles := []string{}
	for _, n := range visible {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"yours", "everyone"}, titles)

	_, err = svc.MarkRead(ctx, citizen, theirs.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	read, err := svc.MarkRead(ctx, citizen, mine.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	_, err = svc.MarkRead(ctx, admin, theirs.ID)
	assert.NoError(t, err)

	changed, err := svc.MarkAllRead(ctx, citizen)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	changed, err = svc.MarkAllRead(ctx, citizen)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestNotificationService_Settings(t *testing.T) {
	ctx := context.Background()
	svc := newNotificationService(t, nil)

	s, err := svc.CreateSetting(ctx, citizen, types.NotificationSetting{NotificationType: "billing"})
	require.NoError(t, err)
	assert.Equal(t, citizen.ID, s.UserID)
	assert.Equal(t, []string{"email", "push"}, s.Channels())

	_, err = svc.CreateSetting(ctx, citizen, types.NotificationSetting{UserID: engineer.ID, NotificationType: "billing"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.CreateSetting(ctx, admin, types.NotificationSetting{UserID: engineer.ID, NotificationType: "alert"})
	require.NoError(t, err)

	_, err = svc.UpdateSetting(ctx, engineer, s.ID, overlay[types.NotificationSetting](`{"channel_sms":true}`))
	assert.ErrorIs(t, err, auth.ErrForbidden)

	updated, err := svc.UpdateSetting(ctx, citizen, s.ID, overlay[types.NotificationSetting](`{"channel_sms":true,"channel_email":false}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"sms", "push"}, updated.Channels())

	list, err := svc.SettingsFor(ctx, citizen.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
