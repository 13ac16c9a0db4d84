package i

import (
	"context"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/google/uuid"
)

// Locker is a held-by-key mutual exclusion handle. Satisfied by
// *redsync.Mutex.
type Locker interface {
	LockContext(ctx context.Context) error
	UnlockContext(ctx context.Context) (bool, error)
}

// UserCache is a read-through cache of user records plus the distributed
// lock used to serialize connect-code claims across instances.
type UserCache interface {
	// User returns the cached user or domain.ErrUserNotFound on a miss.
	User(ctx context.Context, id uuid.UUID) (*dmn.User, error)

	// SetUser stores a user under its id with the cache TTL.
	SetUser(ctx context.Context, user *dmn.User) error

	// Invalidate drops a cached user.
	Invalidate(ctx context.Context, id uuid.UUID) error

	// ConnectCodeMutex returns the lock guarding registration of a code.
	ConnectCodeMutex(code string) Locker
}
