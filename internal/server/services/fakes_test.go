package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/dbx"
	"github.com/dmitrijs2005/spaceshare/internal/logging"
	"github.com/dmitrijs2005/spaceshare/internal/server/chat"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/push"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/devices"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/entities"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/groups"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/media"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/notifications"

	_ "modernc.org/sqlite"
)

// memStore is a mutex-guarded in-memory backing store shared by the fake
// repositories. CompleteIfReady and CreateIfCapacity hold the same lock a
// real database would serialize on, so the conditional-update semantics
// survive concurrent callers.
type memStore struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
	media    map[string]*models.Media
	groupsOf map[string][]string
	members  map[string][]string
	covers   map[string]string
	tokens   map[string][]string

	notifications []*models.Notification
	targets       map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		entities: make(map[string]*models.Entity),
		media:    make(map[string]*models.Media),
		groupsOf: make(map[string][]string),
		members:  make(map[string][]string),
		covers:   make(map[string]string),
		tokens:   make(map[string][]string),
		targets:  make(map[string][]string),
	}
}

func (s *memStore) countMediaLocked(entityID string) int {
	n := 0
	for _, m := range s.media {
		if m.EntityID() == entityID {
			n++
		}
	}
	return n
}

type fakeEntityRepo struct {
	store *memStore

	completeErr error
}

func (r *fakeEntityRepo) Create(ctx context.Context, e *models.Entity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *e
	r.store.entities[e.ID] = &cp
	return nil
}

func (r *fakeEntityRepo) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entities[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEntityRepo) CompleteIfReady(ctx context.Context, id string) (bool, error) {
	if r.completeErr != nil {
		return false, r.completeErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entities[id]
	if !ok || !e.Pending {
		return false, nil
	}
	if r.store.countMediaLocked(id) < e.DeclaredMediaCount {
		return false, nil
	}
	e.Pending = false
	return true, nil
}

func (r *fakeEntityRepo) Claim(ctx context.Context, id, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entities[id]
	if !ok {
		return common.ErrNotFound
	}
	if e.AuthorID != nil {
		return common.ErrAlreadyClaimed
	}
	e.AuthorID = &userID
	return nil
}

func (r *fakeEntityRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.entities, id)
	return nil
}

type fakeMediaRepo struct{ store *memStore }

func (r *fakeMediaRepo) CreateIfCapacity(ctx context.Context, m *models.Media) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entities[m.EntityID()]
	if !ok || r.store.countMediaLocked(m.EntityID()) >= e.DeclaredMediaCount {
		return common.ErrInvalidState
	}
	cp := *m
	r.store.media[m.ID] = &cp
	return nil
}

func (r *fakeMediaRepo) CountForEntity(ctx context.Context, entityID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.countMediaLocked(entityID), nil
}

func (r *fakeMediaRepo) GetByID(ctx context.Context, id string) (*models.Media, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.media[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMediaRepo) ListForEntity(ctx context.Context, entityID string) ([]*models.Media, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*models.Media
	for _, m := range r.store.media {
		if m.EntityID() == entityID {
			cp := *m
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeMediaRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.media, id)
	return nil
}

type fakeGroupRepo struct {
	store *memStore

	membersErr  error
	setCoverErr error
}

func (r *fakeGroupRepo) GroupsOf(ctx context.Context, entityID string) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]string(nil), r.store.groupsOf[entityID]...), nil
}

func (r *fakeGroupRepo) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	if r.membersErr != nil {
		return nil, r.membersErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]string(nil), r.store.members[groupID]...), nil
}

func (r *fakeGroupRepo) SetCover(ctx context.Context, groupID, url string) error {
	if r.setCoverErr != nil {
		return r.setCoverErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.covers[groupID] = url
	return nil
}

func (r *fakeGroupRepo) AddEntity(ctx context.Context, entityID, groupID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.groupsOf[entityID] = append(r.store.groupsOf[entityID], groupID)
	return nil
}

type fakeNotificationRepo struct {
	store *memStore

	createErr error
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *n
	r.store.notifications = append(r.store.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) AddTargets(ctx context.Context, notificationID string, userIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.targets[notificationID] = append(r.store.targets[notificationID], userIDs...)
	return nil
}

type fakeDeviceRepo struct {
	store *memStore

	tokensErr error
}

func (r *fakeDeviceRepo) TokensOf(ctx context.Context, userID string) ([]string, error) {
	if r.tokensErr != nil {
		return nil, r.tokensErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]string(nil), r.store.tokens[userID]...), nil
}

func (r *fakeDeviceRepo) Register(ctx context.Context, userID, token string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.tokens[userID] = append(r.store.tokens[userID], token)
	return nil
}

// fakeRepoManager vends the fake repositories regardless of the DBTX it is
// handed; transaction boundaries are exercised against a real sqlite handle
// while the statements go to the in-memory store. It records whether each
// media vend received a transactional handle.
type fakeRepoManager struct {
	entityRepo       *fakeEntityRepo
	mediaRepo        *fakeMediaRepo
	groupRepo        *fakeGroupRepo
	notificationRepo *fakeNotificationRepo
	deviceRepo       *fakeDeviceRepo

	mu          sync.Mutex
	mediaTxVend int
}

func newFakeRepoManager(store *memStore) *fakeRepoManager {
	return &fakeRepoManager{
		entityRepo:       &fakeEntityRepo{store: store},
		mediaRepo:        &fakeMediaRepo{store: store},
		groupRepo:        &fakeGroupRepo{store: store},
		notificationRepo: &fakeNotificationRepo{store: store},
		deviceRepo:       &fakeDeviceRepo{store: store},
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoManager) Entities(db dbx.DBTX) entities.Repository            { return m.entityRepo }

func (m *fakeRepoManager) Media(db dbx.DBTX) media.Repository {
	if _, ok := db.(*sql.Tx); ok {
		m.mu.Lock()
		m.mediaTxVend++
		m.mu.Unlock()
	}
	return m.mediaRepo
}
func (m *fakeRepoManager) Groups(db dbx.DBTX) groups.Repository                { return m.groupRepo }
func (m *fakeRepoManager) Notifications(db dbx.DBTX) notifications.Repository {
	return m.notificationRepo
}
func (m *fakeRepoManager) Devices(db dbx.DBTX) devices.Repository { return m.deviceRepo }

// fakeBlobStore records uploads and deletions and can be made to fail.
type fakeBlobStore struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
	putErr  error
	delErr  error
}

func (b *fakeBlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "https://blob/" + key, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, key string) error {
	if b.delErr != nil {
		return b.delErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	return nil
}

type fakeChatSink struct {
	mu       sync.Mutex
	messages []chat.Message
	err      error
	failFor  map[string]error
}

func (s *fakeChatSink) PostMessage(ctx context.Context, msg chat.Message) error {
	if s.err != nil {
		return s.err
	}
	if err, ok := s.failFor[msg.GroupID]; ok {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

type fakePushSink struct {
	mu   sync.Mutex
	sent []push.Notification
	err  error
}

func (s *fakePushSink) Push(ctx context.Context, n push.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (nopLogger) With(args ...any) logging.Logger                    { return nopLogger{} }

// fakeReconciler returns a canned transition result and counts calls.
type fakeReconciler struct {
	mu     sync.Mutex
	calls  int
	ready  bool
	entity *models.Entity
	err    error
}

func (r *fakeReconciler) TryComplete(ctx context.Context, entityID string) (bool, *models.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.ready, r.entity, r.err
}

// fakeDispatcher counts ready notifications.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    int
	entities []*models.Entity
}

func (d *fakeDispatcher) EntityReady(ctx context.Context, entity *models.Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.entities = append(d.entities, entity)
}

// openTestDB returns a sqlite handle used purely for transaction
// begin/commit plumbing; no statements run against it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strptr(s string) *string { return &s }

var errBoom = errors.New("boom")

func seedEntity(store *memStore, id string, kind models.EntityKind, author *string, declared int, groupIDs ...string) *models.Entity {
	e := &models.Entity{
		ID:                 id,
		Kind:               kind,
		AuthorID:           author,
		DeclaredMediaCount: declared,
		Pending:            true,
	}
	store.mu.Lock()
	store.entities[id] = e
	store.groupsOf[id] = groupIDs
	store.mu.Unlock()
	return e
}

func seedMedia(store *memStore, id string, kind models.EntityKind, entityID string) {
	m := &models.Media{ID: id, ContentURL: fmt.Sprintf("https://blob/%s", id)}
	m.SetOwner(kind, entityID)
	store.mu.Lock()
	store.media[id] = m
	store.mu.Unlock()
}
