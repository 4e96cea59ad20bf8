package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/devices"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/entities"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/groups"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/media"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/notifications"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entities(db dbx.DBTX) entities.Repository
	Media(db dbx.DBTX) media.Repository
	Groups(db dbx.DBTX) groups.Repository
	Notifications(db dbx.DBTX) notifications.Repository
	Devices(db dbx.DBTX) devices.Repository
}
