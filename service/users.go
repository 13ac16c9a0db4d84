package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/openmelee/netplay-server/service/i"
)

// Users serves the account operations behind the public web API.
type Users struct {
	userRepo  i.UserRepo
	userCache i.UserCache
}

var _ i.UserService = &Users{}

func NewUsers(userRepo i.UserRepo, userCache i.UserCache) (*Users, error) {
	if userRepo == nil || userCache == nil {
		return nil, errors.New("user service is missing a dependency")
	}
	return &Users{userRepo: userRepo, userCache: userCache}, nil
}

// Create mints a playable account from a display name and connect code, with
// no site login credentials attached.
func (u *Users) Create(ctx context.Context, displayName, connectCode string) (*dmn.User, error) {
	user, err := dmn.NewUser(dmn.UserConfig{
		DisplayName: displayName,
		ConnectCode: connectCode,
	})
	if err != nil {
		return nil, err
	}

	mutex := u.userCache.ConnectCodeMutex(connectCode)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	taken, err := u.userRepo.IsConnectCodeTaken(connectCode)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, dmn.ErrConnectCodeTaken
	}

	if err := u.userRepo.Save(user); err != nil {
		return nil, err
	}
	// A stale cache entry would shadow the write on the next lookup.
	_ = u.userCache.Invalidate(ctx, user.ID)
	return user, nil
}

// ByID fetches a user, consulting the cache before the repository and
// backfilling the cache on a repository hit.
func (u *Users) ByID(ctx context.Context, id uuid.UUID) (*dmn.User, error) {
	if user, err := u.userCache.User(ctx, id); err == nil {
		return user, nil
	}

	user, err := u.userRepo.ByID(id)
	if err != nil {
		return nil, err
	}
	if err := u.userCache.SetUser(ctx, user); err != nil {
		// A cold cache is not worth failing the lookup over.
		return user, nil
	}
	return user, nil
}
