// Package push delivers best-effort push notifications to registered
// device tokens.
package push

import "context"

// Notification is the payload handed to the push gateway.
type Notification struct {
	Token    string `json:"token"`
	Kind     string `json:"kind"`
	AuthorID string `json:"author_id"`
	EntityID string `json:"entity_id"`
}

// Sink pushes a notification to a single device. Failures are logged by the
// caller and never block notification persistence.
type Sink interface {
	Push(ctx context.Context, n Notification) error
}
