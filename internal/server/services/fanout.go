package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/logging"
	"github.com/dmitrijs2005/spaceshare/internal/server/chat"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/push"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/groups"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FanoutDispatcher delivers the downstream effects of an entity becoming
// ready: a persisted notification fanned out to group members, best-effort
// push delivery, and one chat message per group.
//
// EntityReady must be called exactly once per entity, only by the caller
// that observed becameReady from the reconciler. The dispatcher never
// re-derives readiness from entity state.
type FanoutDispatcher struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	groups groups.Repository
	chat   chat.Sink
	push   push.Sink
	logger logging.Logger
}

// NewFanoutDispatcher wires the dispatcher. The groups repository may be the
// Redis-cached decorator; membership is read-only input here.
func NewFanoutDispatcher(db *sql.DB, repos repomanager.RepositoryManager, gr groups.Repository,
	chatSink chat.Sink, pushSink push.Sink, logger logging.Logger) *FanoutDispatcher {
	return &FanoutDispatcher{db: db, repos: repos, groups: gr, chat: chatSink, push: pushSink, logger: logger}
}

// EntityReady performs the post-transition fanout. All failures are logged
// and isolated per channel and per group; nothing here can undo or repeat
// the pending-to-ready flip, and nothing propagates to the attach caller.
//
// Stories are ephemeral and get no fanout; only the flag flip matters.
func (d *FanoutDispatcher) EntityReady(ctx context.Context, entity *models.Entity) {
	if entity.Kind != models.EntityKindPost {
		return
	}
	if entity.AuthorID == nil || len(entity.GroupIDs) == 0 {
		return
	}
	author := *entity.AuthorID

	audience := d.resolveAudience(ctx, entity.GroupIDs, author)

	d.persistNotification(ctx, entity, author, audience)
	d.pushToAudience(ctx, entity, author, audience)
	d.announceInChats(ctx, entity, author)
}

// resolveAudience unions the members of every target group, minus the author.
func (d *FanoutDispatcher) resolveAudience(ctx context.Context, groupIDs []string, author string) []string {
	seen := make(map[string]struct{})
	var audience []string
	for _, groupID := range groupIDs {
		members, err := d.groups.MembersOf(ctx, groupID)
		if err != nil {
			d.logger.Error(ctx, "fanout: resolving members failed", "group_id", groupID, "error", err)
			continue
		}
		for _, userID := range members {
			if userID == author {
				continue
			}
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			audience = append(audience, userID)
		}
	}
	return audience
}

func (d *FanoutDispatcher) persistNotification(ctx context.Context, entity *models.Entity, author string, audience []string) {
	if len(audience) == 0 {
		return
	}

	n := &models.Notification{
		ID:        uuid.New().String(),
		Kind:      models.NotificationKindPost,
		AuthorID:  author,
		EntityID:  entity.ID,
		CreatedAt: time.Now().UTC(),
	}

	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := d.repos.Notifications(tx)
		if err := repo.Create(ctx, n); err != nil {
			return err
		}
		return repo.AddTargets(ctx, n.ID, audience)
	})
	if err != nil {
		d.logger.Error(ctx, "fanout: notification persist failed", "entity_id", entity.ID, "error", err)
	}
}

// pushToAudience delivers to every registered device token. Push is
// best-effort: a failed token is logged and the loop continues.
func (d *FanoutDispatcher) pushToAudience(ctx context.Context, entity *models.Entity, author string, audience []string) {
	deviceRepo := d.repos.Devices(d.db)
	for _, userID := range audience {
		tokens, err := deviceRepo.TokensOf(ctx, userID)
		if err != nil {
			d.logger.Error(ctx, "fanout: device lookup failed", "user_id", userID, "error", err)
			continue
		}
		for _, token := range tokens {
			err := d.push.Push(ctx, push.Notification{
				Token:    token,
				Kind:     string(models.NotificationKindPost),
				AuthorID: author,
				EntityID: entity.ID,
			})
			if err != nil {
				d.logger.Warn(ctx, "fanout: push failed", "user_id", userID, "error", err)
			}
		}
	}
}

// announceInChats posts one structured message per group. A failure for one
// group does not prevent delivery to the others.
func (d *FanoutDispatcher) announceInChats(ctx context.Context, entity *models.Entity, author string) {
	for _, groupID := range entity.GroupIDs {
		err := d.chat.PostMessage(ctx, chat.Message{
			GroupID:    groupID,
			AuthorID:   author,
			Text:       "",
			CustomType: "new_post",
			EntityID:   entity.ID,
		})
		if err != nil {
			d.logger.Error(ctx, "fanout: chat message failed", "group_id", groupID, "error", err)
		}
	}
}
