package types

import "time"

// Notification is a message to one user, or to everyone when UserID is nil.
type Notification struct {
	Record
	UserID           *int   `json:"user_id" db:"user_id"`
	Title            string `json:"title" db:"title" validate:"required,max=255"`
	Message          string `json:"message" db:"message" validate:"required"`
	NotificationType string `json:"notification_type" db:"notification_type" validate:"omitempty,oneof=info warning alert maintenance billing"`
	Priority         string `json:"priority" db:"priority" validate:"omitempty,oneof=low medium high urgent"`
	IsRead           bool   `json:"is_read" db:"is_read"`
	TargetAudience   string `json:"target_audience" db:"target_audience" validate:"max=50"`
}

func (n *Notification) ApplyDefaults() {
	defaultString(&n.NotificationType, "info")
	defaultString(&n.Priority, "medium")
	defaultString(&n.TargetAudience, "all")
}

// NotificationSetting holds one user's delivery preferences for a type.
type NotificationSetting struct {
	Record
	UserID           int    `json:"user_id" db:"user_id,immutable" validate:"required,gt=0"`
	NotificationType string `json:"notification_type" db:"notification_type" validate:"required,max=50"`
	Enabled          *bool  `json:"enabled" db:"enabled"`
	ChannelEmail     *bool  `json:"channel_email" db:"channel_email"`
	ChannelSMS       bool   `json:"channel_sms" db:"channel_sms"`
	ChannelPush      *bool  `json:"channel_push" db:"channel_push"`
}

func (s *NotificationSetting) ApplyDefaults() {
	defaultTrue(&s.Enabled)
	defaultTrue(&s.ChannelEmail)
	defaultTrue(&s.ChannelPush)
}

// Channels lists the delivery channels enabled by s.
func (s NotificationSetting) Channels() []string {
	if s.Enabled != nil && !*s.Enabled {
		return nil
	}
	var out []string
	if s.ChannelEmail == nil || *s.ChannelEmail {
		out = append(out, "email")
	}
	if s.ChannelSMS {
		out = append(out, "sms")
	}
	if s.ChannelPush == nil || *s.ChannelPush {
		out = append(out, "push")
	}
	return out
}

// Event kinds carried on the notification channel.
const (
	EventNotificationCreated = "notification.created"
	EventQualityAlertRaised  = "quality_alert.raised"
)

// Event is the JSON payload published on the notification channel.
type Event struct {
	Kind       string    `json:"kind"`
	EntityID   int       `json:"entity_id"`
	UserID     *int      `json:"user_id,omitempty"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}
