package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
)

// DeviceService registers push tokens consumed later by fanout.
type DeviceService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewDeviceService(db *sql.DB, repos repomanager.RepositoryManager) *DeviceService {
	return &DeviceService{db: db, repos: repos}
}

// Register stores a device token for userID. Re-registering the same token
// is a no-op.
func (s *DeviceService) Register(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty device token", common.ErrInvalidInput)
	}
	return s.repos.Devices(s.db).Register(ctx, userID, token)
}
