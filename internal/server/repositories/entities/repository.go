package entities

import (
	"context"

	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)

	// CompleteIfReady atomically flips pending to false when the attached
	// media count has reached the declared count. Returns true only for the
	// call that performed the flip.
	CompleteIfReady(ctx context.Context, id string) (bool, error)

	// Claim assigns an owner to an ownerless entity; the first committed
	// claim wins.
	Claim(ctx context.Context, id, userID string) error

	Delete(ctx context.Context, id string) error
}
