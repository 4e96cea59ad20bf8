// Package devices provides the PostgreSQL-backed registry of push device
// tokens consumed by fanout.
package devices

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
)

// PostgresRepository implements device token storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// TokensOf returns the registered push tokens for userID.
func (r *PostgresRepository) TokensOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM devices WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Register stores a token for userID; re-registering is a no-op.
func (r *PostgresRepository) Register(ctx context.Context, userID, token string) error {
	query := `
		INSERT INTO devices (user_id, token) VALUES ($1, $2)
		ON CONFLICT (user_id, token) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
