// Package groups provides the PostgreSQL-backed group directory view and an
// optional Redis cache for membership reads used during fanout.
package groups

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
)

// PostgresRepository implements the group directory over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GroupsOf returns the IDs of every group the entity is published into.
func (r *PostgresRepository) GroupsOf(ctx context.Context, entityID string) ([]string, error) {
	query := `SELECT group_id FROM entity_groups WHERE entity_id = $1 ORDER BY group_id`
	return r.selectStrings(ctx, query, entityID)
}

// MembersOf returns the user IDs of every member of groupID.
func (r *PostgresRepository) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`
	return r.selectStrings(ctx, query, groupID)
}

// SetCover updates the group's cover image URL.
func (r *PostgresRepository) SetCover(ctx context.Context, groupID, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE groups SET cover_url = $2 WHERE id = $1`, groupID, url)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddEntity links entityID into groupID.
func (r *PostgresRepository) AddEntity(ctx context.Context, entityID, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_groups (entity_id, group_id) VALUES ($1, $2)`, entityID, groupID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) selectStrings(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
