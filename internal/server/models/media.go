package models

import "time"

// Media describes one uploaded photo or video attached to an entity.
// Exactly one of PostID and StoryID is set. The blob itself lives in
// object storage; ContentURL points at it.
type Media struct {
	ID string

	PostID  *string
	StoryID *string

	ContentURL   string
	ThumbnailURL *string

	Width   int
	Height  int
	IsVideo bool

	CreatedAt time.Time
}

// EntityID returns the owning entity reference regardless of kind.
func (m *Media) EntityID() string {
	if m.PostID != nil {
		return *m.PostID
	}
	if m.StoryID != nil {
		return *m.StoryID
	}
	return ""
}

// SetOwner points the media at its owning entity according to kind.
func (m *Media) SetOwner(kind EntityKind, entityID string) {
	if kind == EntityKindStory {
		m.StoryID = &entityID
		m.PostID = nil
		return
	}
	m.PostID = &entityID
	m.StoryID = nil
}
