// Package media provides the PostgreSQL-backed repository for attached media
// records, including the capacity-guarded insert.
package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

// PostgresRepository implements media storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateIfCapacity inserts the media record only while the owning entity is
// below its declared media count. Must run inside a transaction: it first
// locks the entity row with SELECT .. FOR UPDATE, which serializes
// concurrent attaches on the same entity, so the count taken after the lock
// already sees any committed competitor. A missing entity or a full entity
// maps to common.ErrInvalidState.
func (r *PostgresRepository) CreateIfCapacity(ctx context.Context, m *models.Media) error {
	var declared int
	err := r.db.QueryRowContext(ctx,
		`SELECT declared_media_count FROM entities WHERE id = $1 FOR UPDATE`,
		m.EntityID()).Scan(&declared)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrInvalidState
		}
		return fmt.Errorf("db error: %w", err)
	}

	count, err := r.CountForEntity(ctx, m.EntityID())
	if err != nil {
		return err
	}
	if count >= declared {
		return common.ErrInvalidState
	}

	query := `
		INSERT INTO media (id, post_id, story_id, content_url, thumbnail_url, width, height, is_video, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.PostID, m.StoryID, m.ContentURL, m.ThumbnailURL, m.Width, m.Height, m.IsVideo, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CountForEntity returns the number of media records attached to entityID.
func (r *PostgresRepository) CountForEntity(ctx context.Context, entityID string) (int, error) {
	query := `SELECT COUNT(*) FROM media WHERE post_id = $1 OR story_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, query, entityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// GetByID returns one media record, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	query := `
		SELECT id, post_id, story_id, content_url, thumbnail_url, width, height, is_video, created_at
		FROM media WHERE id = $1
	`
	var m models.Media
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.PostID, &m.StoryID, &m.ContentURL, &m.ThumbnailURL,
		&m.Width, &m.Height, &m.IsVideo, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &m, nil
}

// ListForEntity returns all media for entityID in attachment order.
func (r *PostgresRepository) ListForEntity(ctx context.Context, entityID string) ([]*models.Media, error) {
	query := `
		SELECT id, post_id, story_id, content_url, thumbnail_url, width, height, is_video, created_at
		FROM media WHERE post_id = $1 OR story_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	defer rows.Close()

	var result []*models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(
			&m.ID, &m.PostID, &m.StoryID, &m.ContentURL, &m.ThumbnailURL,
			&m.Width, &m.Height, &m.IsVideo, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes one media record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
