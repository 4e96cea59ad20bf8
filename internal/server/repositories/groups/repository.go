package groups

import "context"

// Repository is the read-mostly view of the group directory consumed by the
// core: membership and group links are owned elsewhere, only the cover image
// is written here.
type Repository interface {
	GroupsOf(ctx context.Context, entityID string) ([]string, error)
	MembersOf(ctx context.Context, groupID string) ([]string, error)
	SetCover(ctx context.Context, groupID, url string) error

	// AddEntity links an entity into a group at creation time.
	AddEntity(ctx context.Context, entityID, groupID string) error
}
