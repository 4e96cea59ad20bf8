package notifications

import (
	"context"

	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.Notification) error
	AddTargets(ctx context.Context, notificationID string, userIDs []string) error
}
