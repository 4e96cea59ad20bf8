// Package entities provides the PostgreSQL-backed repository for post/story
// aggregate roots, including the conditional updates driving the
// pending-to-ready protocol and ownership claims.
package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

// PostgresRepository implements entity storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new pending entity row. Group links are written
// separately via the groups repository, usually inside the same transaction.
func (r *PostgresRepository) Create(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (id, kind, author_id, declared_media_count, pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entity.ID, string(entity.Kind), entity.AuthorID, entity.DeclaredMediaCount, entity.Pending, entity.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the base entity row without media or group hydration.
// Returns common.ErrNotFound when no row exists.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := `
		SELECT id, kind, author_id, declared_media_count, pending, created_at
		FROM entities WHERE id = $1
	`
	var e models.Entity
	var kind string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &kind, &e.AuthorID, &e.DeclaredMediaCount, &e.Pending, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.Kind = models.EntityKind(kind)
	return &e, nil
}

// CompleteIfReady performs the read-compare-flip in one conditional UPDATE,
// so that two concurrent reconciler calls for the same entity cannot both
// observe the transition. The statement only matches while the entity is
// still pending and its media count has reached the declared count; the
// RowsAffected result tells us whether this call did the flip.
func (r *PostgresRepository) CompleteIfReady(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE entities SET pending = FALSE
		WHERE id = $1
		  AND pending
		  AND (SELECT COUNT(*) FROM media m
		       WHERE m.post_id = entities.id OR m.story_id = entities.id) >= declared_media_count
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Claim assigns userID as owner of an unowned entity. The WHERE clause makes
// the first committed claim win; a later claim matches no row and returns
// common.ErrAlreadyClaimed. Callers are expected to have checked existence
// beforehand.
func (r *PostgresRepository) Claim(ctx context.Context, id, userID string) error {
	query := `UPDATE entities SET author_id = $2 WHERE id = $1 AND author_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrAlreadyClaimed
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Delete removes the entity row; media and group links go with it via
// ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
