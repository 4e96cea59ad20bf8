package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/logging"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/groups"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spaceshare/internal/server/storage"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// completionReconciler is the slice of Reconciler used by the coordinator.
type completionReconciler interface {
	TryComplete(ctx context.Context, entityID string) (bool, *models.Entity, error)
}

// readyDispatcher is the slice of FanoutDispatcher used by the coordinator.
type readyDispatcher interface {
	EntityReady(ctx context.Context, entity *models.Entity)
}

// AttachRequest carries one incoming media attachment.
type AttachRequest struct {
	EntityID string

	// ActingUserID is nil for unauthenticated onboarding uploads.
	ActingUserID *string

	File            []byte
	FileContentType string

	// Thumbnail is required when IsVideo is true.
	Thumbnail            []byte
	ThumbnailContentType string

	Width   int
	Height  int
	IsVideo bool

	// SetCover requests that the owning groups' cover image be set to the
	// uploaded file (non-video only, best-effort).
	SetCover bool
}

// AttachmentService coordinates one media attachment: validation, blob
// upload, capacity-guarded record insert, completion reconciliation, and
// post-transition effects. It is stateless between calls.
type AttachmentService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	blobs      storage.BlobStore
	reconciler completionReconciler
	dispatcher readyDispatcher
	groups     groups.Repository
	logger     logging.Logger
}

func NewAttachmentService(db *sql.DB, repos repomanager.RepositoryManager, blobs storage.BlobStore,
	reconciler completionReconciler, dispatcher readyDispatcher, gr groups.Repository,
	logger logging.Logger) *AttachmentService {
	return &AttachmentService{
		db:         db,
		repos:      repos,
		blobs:      blobs,
		reconciler: reconciler,
		dispatcher: dispatcher,
		groups:     gr,
		logger:     logger,
	}
}

// blobKey derives the storage key for an attachment. The random token keeps
// concurrent attach calls on the same entity from colliding.
func blobKey(kind models.EntityKind, entityID string) string {
	return fmt.Sprintf("%s_%s_%s", kind, entityID, uuid.New())
}

// Attach validates and persists one media attachment for an entity.
//
// Validation order (each a distinct failure): the entity must exist
// (common.ErrNotFound); an acting user must match a non-nil owner
// (common.ErrForbidden); the fresh media count plus one must not exceed the
// declared count (common.ErrInvalidState); a video must come with a
// thumbnail (common.ErrInvalidInput). No storage write happens before these
// checks pass.
//
// The blob upload completes before the media record is written, so a failed
// upload leaves no partial record. The insert runs in its own transaction
// and re-checks capacity under the entity row lock. Reconciliation failure
// does not roll the attach back; the record stays and the next attach or
// retry re-triggers completion.
func (s *AttachmentService) Attach(ctx context.Context, req *AttachRequest) (*models.Media, error) {
	entity, err := s.repos.Entities(s.db).GetByID(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	if req.ActingUserID != nil && !entity.OwnedBy(*req.ActingUserID) {
		return nil, fmt.Errorf("%w: not your %s", common.ErrForbidden, entity.Kind)
	}

	count, err := s.repos.Media(s.db).CountForEntity(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	if count+1 > entity.DeclaredMediaCount {
		return nil, fmt.Errorf("%w: too many media already", common.ErrInvalidState)
	}

	if req.IsVideo && len(req.Thumbnail) == 0 {
		return nil, fmt.Errorf("%w: video requires a thumbnail", common.ErrInvalidInput)
	}

	key := blobKey(entity.Kind, entity.ID)

	var thumbnailURL *string
	if len(req.Thumbnail) > 0 {
		url, err := s.upload(ctx, key+"_thumb", req.ThumbnailContentType, req.Thumbnail)
		if err != nil {
			return nil, err
		}
		thumbnailURL = &url
	}

	contentURL, err := s.upload(ctx, key, req.FileContentType, req.File)
	if err != nil {
		return nil, err
	}

	m := &models.Media{
		ID:           uuid.New().String(),
		ContentURL:   contentURL,
		ThumbnailURL: thumbnailURL,
		Width:        req.Width,
		Height:       req.Height,
		IsVideo:      req.IsVideo,
		CreatedAt:    time.Now().UTC(),
	}
	m.SetOwner(entity.Kind, entity.ID)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Media(tx).CreateIfCapacity(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	becameReady, readyEntity, err := s.reconciler.TryComplete(ctx, entity.ID)
	if err != nil {
		// The media record exists; completion stays reachable by the next
		// attach or an out-of-band retry.
		s.logger.Error(ctx, "attach: reconciliation failed", "entity_id", entity.ID, "error", err)
	} else if becameReady {
		s.dispatcher.EntityReady(ctx, readyEntity)
	}

	if req.SetCover && !req.IsVideo {
		s.setGroupCovers(ctx, entity.ID, contentURL)
	}

	return m, nil
}

// upload stores one blob, retrying transient storage failures with
// exponential backoff before giving up.
func (s *AttachmentService) upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var url string
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		url, err = s.blobs.Put(ctx, key, contentType, data)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("blob upload failed: %w", err)
	}
	return url, nil
}

// setGroupCovers sets the uploaded image as cover for every owning group.
// Best-effort and outside the atomic transition.
func (s *AttachmentService) setGroupCovers(ctx context.Context, entityID, url string) {
	groupIDs, err := s.groups.GroupsOf(ctx, entityID)
	if err != nil {
		s.logger.Error(ctx, "attach: resolving groups for cover failed", "entity_id", entityID, "error", err)
		return
	}
	for _, groupID := range groupIDs {
		if err := s.groups.SetCover(ctx, groupID, url); err != nil {
			s.logger.Warn(ctx, "attach: setting cover failed", "group_id", groupID, "error", err)
		}
	}
}

// DeleteMedia removes one media record, enforcing the same ownership rule
// as Attach. Deleting the entity's last media deletes the entity itself:
// an explicit cleanup rule applied here, by the layer performing media
// deletion, not an automatic cascade.
func (s *AttachmentService) DeleteMedia(ctx context.Context, mediaID string, actingUserID *string) error {
	m, err := s.repos.Media(s.db).GetByID(ctx, mediaID)
	if err != nil {
		return err
	}

	entity, err := s.repos.Entities(s.db).GetByID(ctx, m.EntityID())
	if err != nil {
		return err
	}
	if actingUserID != nil && !entity.OwnedBy(*actingUserID) {
		return fmt.Errorf("%w: not your %s", common.ErrForbidden, entity.Kind)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mediaRepo := s.repos.Media(tx)
		if err := mediaRepo.Delete(ctx, mediaID); err != nil {
			return err
		}
		remaining, err := mediaRepo.CountForEntity(ctx, entity.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.repos.Entities(tx).Delete(ctx, entity.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, m)
	return nil
}

// deleteBlobs removes the blobs behind a deleted media record, best-effort
// after the record is gone.
func (s *AttachmentService) deleteBlobs(ctx context.Context, m *models.Media) {
	urls := []string{m.ContentURL}
	if m.ThumbnailURL != nil {
		urls = append(urls, *m.ThumbnailURL)
	}
	for _, u := range urls {
		key := blobKeyFromURL(u)
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "delete: blob cleanup failed", "key", key, "error", err)
		}
	}
}

// blobKeyFromURL recovers the storage key from a public blob URL. Keys are
// single path segments, so the last segment is the escaped key.
func blobKeyFromURL(rawURL string) string {
	idx := strings.LastIndex(rawURL, "/")
	if idx < 0 || idx == len(rawURL)-1 {
		return ""
	}
	key, err := url.PathUnescape(rawURL[idx+1:])
	if err != nil {
		return ""
	}
	return key
}
