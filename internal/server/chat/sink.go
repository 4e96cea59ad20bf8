// Package chat delivers structured messages into group chat channels.
package chat

import "context"

// Message is one chat-channel message. Text stays empty for structured
// payloads such as new-post announcements; clients render from CustomType.
type Message struct {
	GroupID    string `json:"group_id"`
	AuthorID   string `json:"author_id"`
	Text       string `json:"text"`
	CustomType string `json:"custom_type"`
	EntityID   string `json:"entity_id"`
}

// Sink posts messages into a group's chat channel. Implementations are
// best-effort; failures are reported but callers treat them as non-fatal.
type Sink interface {
	PostMessage(ctx context.Context, msg Message) error
}
