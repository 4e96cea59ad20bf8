package media

import (
	"context"

	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

type Repository interface {
	// CreateIfCapacity inserts the record only while the owning entity is
	// below its declared media count, locking the entity row to serialize
	// concurrent attaches. Must run inside a transaction. Returns
	// common.ErrInvalidState when the entity is already at capacity (or
	// does not exist).
	CreateIfCapacity(ctx context.Context, m *models.Media) error

	CountForEntity(ctx context.Context, entityID string) (int, error)
	GetByID(ctx context.Context, id string) (*models.Media, error)
	ListForEntity(ctx context.Context, entityID string) ([]*models.Media, error)
	Delete(ctx context.Context, id string) error
}
