package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/openmelee/netplay-server/service/i"
)

type fakeRepo struct {
	byID       map[uuid.UUID]*dmn.User
	byUsername map[string]*dmn.User
	idCalls    int
}

func newFakeRepo(users ...*dmn.User) *fakeRepo {
	r := &fakeRepo{
		byID:       make(map[uuid.UUID]*dmn.User),
		byUsername: make(map[string]*dmn.User),
	}
	for _, u := range users {
		r.byID[u.ID] = u
		if u.Username != "" {
			r.byUsername[u.Username] = u
		}
	}
	return r
}

func (r *fakeRepo) Save(user *dmn.User) error {
	r.byID[user.ID] = user
	if user.Username != "" {
		r.byUsername[user.Username] = user
	}
	return nil
}

func (r *fakeRepo) ByID(id uuid.UUID) (*dmn.User, error) {
	r.idCalls++
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, dmn.ErrUserNotFound
}

func (r *fakeRepo) ByUsername(username string) (*dmn.User, error) {
	if u, ok := r.byUsername[username]; ok {
		return u, nil
	}
	return nil, dmn.ErrUserNotFound
}

func (r *fakeRepo) ByConnectCode(code string) (*dmn.User, error) {
	for _, u := range r.byID {
		if u.ConnectCode == code {
			return u, nil
		}
	}
	return nil, dmn.ErrUserNotFound
}

func (r *fakeRepo) IsConnectCodeTaken(code string) (bool, error) {
	_, err := r.ByConnectCode(code)
	return err == nil, nil
}

// fakeLocker counts lock cycles so tests can assert the connect-code claim
// ran under the lock and released it.
type fakeLocker struct {
	locks   int
	unlocks int
}

func (l *fakeLocker) LockContext(context.Context) error { l.locks++; return nil }

func (l *fakeLocker) UnlockContext(context.Context) (bool, error) {
	l.unlocks++
	return true, nil
}

type fakeCache struct {
	users       map[uuid.UUID]*dmn.User
	locker      *fakeLocker
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		users:  make(map[uuid.UUID]*dmn.User),
		locker: &fakeLocker{},
	}
}

func (c *fakeCache) User(_ context.Context, id uuid.UUID) (*dmn.User, error) {
	if u, ok := c.users[id]; ok {
		return u, nil
	}
	return nil, dmn.ErrUserNotFound
}

func (c *fakeCache) SetUser(_ context.Context, user *dmn.User) error {
	c.users[user.ID] = user
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id uuid.UUID) error {
	delete(c.users, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

func (c *fakeCache) ConnectCodeMutex(string) i.Locker { return c.locker }

func mustUser(t *testing.T, cfg dmn.UserConfig) *dmn.User {
	t.Helper()
	u, err := dmn.NewUser(cfg)
	require.NoError(t, err)
	return u
}

func TestUsersByID(t *testing.T) {
	ctx := context.Background()
	stored := mustUser(t, dmn.UserConfig{DisplayName: "Falco Main", ConnectCode: "FALC#01"})

	t.Run("repository hit backfills the cache", func(t *testing.T) {
		repo := newFakeRepo(stored)
		cache := newFakeCache()
		svc, err := NewUsers(repo, cache)
		require.NoError(t, err)

		got, err := svc.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		assert.Contains(t, cache.users, stored.ID)

		// Second lookup is served from the cache.
		_, err = svc.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.idCalls)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, err := NewUsers(newFakeRepo(), newFakeCache())
		require.NoError(t, err)

		_, err = svc.ByID(ctx, uuid.New())
		assert.ErrorIs(t, err, dmn.ErrUserNotFound)
	})
}

func TestUsersCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("mints the account under the connect-code lock", func(t *testing.T) {
		repo := newFakeRepo()
		cache := newFakeCache()
		svc, err := NewUsers(repo, cache)
		require.NoError(t, err)

		user, err := svc.Create(ctx, "Falco Main", "FALC#01")
		require.NoError(t, err)
		assert.Contains(t, repo.byID, user.ID)
		assert.Empty(t, user.Username)

		assert.Equal(t, 1, cache.locker.locks)
		assert.Equal(t, 1, cache.locker.unlocks)
		assert.Contains(t, cache.invalidated, user.ID)
	})

	t.Run("taken connect code releases the lock", func(t *testing.T) {
		existing := mustUser(t, dmn.UserConfig{DisplayName: "First", ConnectCode: "FALC#01"})
		cache := newFakeCache()
		svc, err := NewUsers(newFakeRepo(existing), cache)
		require.NoError(t, err)

		_, err = svc.Create(ctx, "Second", "FALC#01")
		assert.ErrorIs(t, err, dmn.ErrConnectCodeTaken)
		assert.Equal(t, cache.locker.locks, cache.locker.unlocks)
	})

	t.Run("invalid input fails before the lock is taken", func(t *testing.T) {
		cache := newFakeCache()
		svc, err := NewUsers(newFakeRepo(), cache)
		require.NoError(t, err)

		_, err = svc.Create(ctx, "Falco Main", "bad code")
		assert.ErrorIs(t, err, dmn.ErrConnectCodeInvalid)
		assert.Zero(t, cache.locker.locks)
	})
}

func TestNewUsersRequiresDependencies(t *testing.T) {
	_, err := NewUsers(nil, newFakeCache())
	assert.Error(t, err)
	_, err = NewUsers(newFakeRepo(), nil)
	assert.Error(t, err)
}
