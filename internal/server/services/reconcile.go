package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
)

// Reconciler decides whether an entity has received all of its declared
// media and performs the pending-to-ready transition exactly once.
//
// It holds no state between calls; everything is re-derived from the
// database, which is what makes the protocol safe under concurrent,
// crash-prone callers.
type Reconciler struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewReconciler(db *sql.DB, repos repomanager.RepositoryManager) *Reconciler {
	return &Reconciler{db: db, repos: repos}
}

// TryComplete flips the entity to ready if and only if its media count has
// reached the declared count and it is still pending. The flip itself is a
// single conditional UPDATE, so two concurrent calls for the same entity
// cannot both observe the transition; the surrounding transaction only
// serves to return the entity row consistent with the flip.
//
// The call is idempotent and safely re-entrant: an already-ready entity
// yields (false, nil, nil). Persistence errors abort the transaction with no
// partial flip observable; callers treat them as transient and may retry.
func (r *Reconciler) TryComplete(ctx context.Context, entityID string) (bool, *models.Entity, error) {
	var becameReady bool
	var entity *models.Entity

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repos.Entities(tx)

		ok, err := repo.CompleteIfReady(ctx, entityID)
		if err != nil {
			return err
		}
		becameReady = ok
		if !ok {
			return nil
		}

		entity, err = repo.GetByID(ctx, entityID)
		if err != nil {
			return err
		}
		entity.GroupIDs, err = r.repos.Groups(tx).GroupsOf(ctx, entityID)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return becameReady, entity, nil
}
