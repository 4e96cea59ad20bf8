package models

import "time"

// NotificationKind labels the trigger of a notification.
type NotificationKind string

const (
	NotificationKindPost NotificationKind = "POST"
)

// Notification is one persisted notification record fanned out to a set of
// target users via notification_targets.
type Notification struct {
	ID       string
	Kind     NotificationKind
	AuthorID string

	// EntityID references the entity that became ready.
	EntityID string

	CreatedAt time.Time
}
