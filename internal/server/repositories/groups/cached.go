package groups

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRepository decorates a Repository with a Redis cache for membership
// reads. Fanout resolves the same group members over and over; entries expire
// after ttl rather than being invalidated, which is acceptable because
// membership is read-only input for the core.
type CachedRepository struct {
	inner Repository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedRepository wraps inner with a Redis-backed members cache.
func NewCachedRepository(inner Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{inner: inner, rdb: rdb, ttl: ttl}
}

// MembersOf serves from Redis when possible and falls through to the inner
// repository. Cache failures are ignored; the database remains the source of
// truth.
func (c *CachedRepository) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	key := "group_members:" + groupID

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var members []string
		if err := json.Unmarshal(data, &members); err == nil {
			return members, nil
		}
	}

	members, err := c.inner.MembersOf(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(members); err == nil {
		_ = c.rdb.Set(ctx, key, data, c.ttl).Err()
	}
	return members, nil
}

func (c *CachedRepository) GroupsOf(ctx context.Context, entityID string) ([]string, error) {
	return c.inner.GroupsOf(ctx, entityID)
}

func (c *CachedRepository) SetCover(ctx context.Context, groupID, url string) error {
	return c.inner.SetCover(ctx, groupID, url)
}

func (c *CachedRepository) AddEntity(ctx context.Context, entityID, groupID string) error {
	return c.inner.AddEntity(ctx, entityID, groupID)
}
