package i

import (
	"github.com/google/uuid"

	dmn "github.com/openmelee/netplay-server/domain"
)

// UserRepo defines the interface for user persistence operations.
type UserRepo interface {
	// Save inserts or updates a user in the repository.
	Save(user *dmn.User) error

	// ByID retrieves a user by their unique ID.
	// Returns domain.ErrUserNotFound if no such user exists.
	ByID(id uuid.UUID) (*dmn.User, error)

	// ByUsername retrieves a user by their username.
	ByUsername(username string) (*dmn.User, error)

	// ByConnectCode retrieves a user by their connect code.
	ByConnectCode(code string) (*dmn.User, error)

	// IsConnectCodeTaken reports whether a connect code is already
	// registered to some user.
	IsConnectCodeTaken(code string) (bool, error)
}
