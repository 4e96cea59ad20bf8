// Package services implements the core protocol around pending entities:
// creation, media attachment coordination, completion reconciliation,
// ownership claims, and post-transition fanout.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
)

// EntityService manages the entity lifecycle outside of attachment:
// creation, reads, claims, deletion.
type EntityService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewEntityService(db *sql.DB, repos repomanager.RepositoryManager) *EntityService {
	return &EntityService{db: db, repos: repos}
}

// Create inserts a new pending entity with its group links in one
// transaction. DeclaredMediaCount must be positive and groupIDs non-empty;
// authorID may be nil for claimable onboarding entities.
func (s *EntityService) Create(ctx context.Context, kind models.EntityKind, authorID *string,
	declaredMediaCount int, groupIDs []string) (*models.Entity, error) {

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", common.ErrInvalidInput, kind)
	}
	if declaredMediaCount <= 0 {
		return nil, fmt.Errorf("%w: declared media count must be positive", common.ErrInvalidInput)
	}
	if len(groupIDs) == 0 {
		return nil, fmt.Errorf("%w: entity must belong to at least one group", common.ErrInvalidInput)
	}

	entity := &models.Entity{
		ID:                 newID(),
		Kind:               kind,
		AuthorID:           authorID,
		DeclaredMediaCount: declaredMediaCount,
		Pending:            true,
		GroupIDs:           groupIDs,
		CreatedAt:          time.Now().UTC(),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Entities(tx).Create(ctx, entity); err != nil {
			return err
		}
		groupRepo := s.repos.Groups(tx)
		for _, groupID := range groupIDs {
			if err := groupRepo.AddEntity(ctx, entity.ID, groupID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// Get returns the entity hydrated with its group links and media.
func (s *EntityService) Get(ctx context.Context, id string) (*models.Entity, error) {
	entity, err := s.repos.Entities(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	entity.GroupIDs, err = s.repos.Groups(s.db).GroupsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	entity.Media, err = s.repos.Media(s.db).ListForEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// Claim assigns userID as the owner of a previously ownerless entity. The
// first committed claim wins, enforced by the same conditional-update
// pattern as reconciliation; a losing claim gets common.ErrAlreadyClaimed.
func (s *EntityService) Claim(ctx context.Context, entityID, userID string) error {
	if _, err := s.repos.Entities(s.db).GetByID(ctx, entityID); err != nil {
		return err
	}
	return s.repos.Entities(s.db).Claim(ctx, entityID, userID)
}
