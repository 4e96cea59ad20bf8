// Package models defines server-side data models persisted in the database.
package models

import "time"

// EntityKind discriminates the two content aggregates sharing the
// pending/ready lifecycle.
type EntityKind string

const (
	EntityKindPost  EntityKind = "post"
	EntityKindStory EntityKind = "story"
)

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	return k == EntityKindPost || k == EntityKindStory
}

// Entity is a post or story awaiting or holding media.
//
// An entity is created with a fixed DeclaredMediaCount and stays Pending
// until exactly that many media records have been attached. Once Pending
// turns false it never reverts.
type Entity struct {
	ID   string
	Kind EntityKind

	// AuthorID is nil only for claimable entities created during onboarding,
	// before an owning user exists.
	AuthorID *string

	// DeclaredMediaCount is the number of media items required before the
	// entity becomes ready. Positive, fixed at creation.
	DeclaredMediaCount int

	// Pending is true from creation until the reconciler flips it.
	Pending bool

	// GroupIDs are the groups the entity is published into. Non-empty after
	// creation.
	GroupIDs []string

	// Media holds the attached media records, ordered by attachment time.
	// len(Media) never exceeds DeclaredMediaCount.
	Media []*Media

	CreatedAt time.Time
}

// OwnedBy reports whether userID may act on the entity. An unowned
// (claimable) entity is actionable by anyone.
func (e *Entity) OwnedBy(userID string) bool {
	return e.AuthorID == nil || *e.AuthorID == userID
}
