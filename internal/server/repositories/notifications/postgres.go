// Package notifications provides the PostgreSQL-backed repository for
// persisted notifications and their per-user fanout targets.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

// PostgresRepository implements notification storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the notification record.
func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, kind, author_id, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, n.ID, string(n.Kind), n.AuthorID, n.EntityID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddTargets fans the notification out to userIDs in a single multi-row
// insert. A no-op for an empty audience.
func (r *PostgresRepository) AddTargets(ctx context.Context, notificationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	values := make([]string, 0, len(userIDs))
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, notificationID)
	for i, userID := range userIDs {
		values = append(values, fmt.Sprintf("($1, $%d)", i+2))
		args = append(args, userID)
	}

	query := `INSERT INTO notification_targets (notification_id, user_id) VALUES ` + strings.Join(values, ", ")
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
