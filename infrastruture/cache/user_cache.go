// Package cache provides the Redis-backed user cache and the distributed
// lock that serializes connect-code registration.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/openmelee/netplay-server/service/i"
)

const (
	defaultPrefix = "netplay"
	defaultTTL    = 5 * time.Minute

	lockExpiry = 8 * time.Second

	userKeyFmt            = "%s:user:%s"
	connectCodeLockKeyFmt = "%s:lock:connect-code:%s"
)

// UserCache is a read-through cache of user records keyed by uid.
type UserCache struct {
	client *redis.Client
	locker *redsync.Redsync
	prefix string
	ttl    time.Duration
}

var _ i.UserCache = &UserCache{}

// Options tunes the cache key prefix and entry TTL.
type Options struct {
	Prefix string
	TTL    time.Duration
}

// NewUserCache wraps a Redis client into a user cache.
func NewUserCache(client *redis.Client, opts *Options) *UserCache {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}

	pool := goredis.NewPool(client)
	return &UserCache{
		client: client,
		locker: redsync.New(pool),
		prefix: opts.Prefix,
		ttl:    opts.TTL,
	}
}

// User returns the cached user or domain.ErrUserNotFound on a miss.
func (c *UserCache) User(ctx context.Context, id uuid.UUID) (*dmn.User, error) {
	data, err := c.client.Get(ctx, c.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dmn.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var user dmn.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUser stores a user under its id with the cache TTL.
func (c *UserCache) SetUser(ctx context.Context, user *dmn.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.userKey(user.ID), data, c.ttl).Err()
}

// Invalidate drops a cached user.
func (c *UserCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, c.userKey(id)).Err()
}

// ConnectCodeMutex returns the distributed mutex guarding registration of a
// connect code.
func (c *UserCache) ConnectCodeMutex(code string) i.Locker {
	key := fmt.Sprintf(connectCodeLockKeyFmt, c.prefix, code)
	return c.locker.NewMutex(key, redsync.WithExpiry(lockExpiry))
}

func (c *UserCache) userKey(id uuid.UUID) string {
	return fmt.Sprintf(userKeyFmt, c.prefix, id)
}
