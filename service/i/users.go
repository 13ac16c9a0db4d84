package i

import (
	"context"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/google/uuid"
)

// UserService is the account surface the web API exposes.
type UserService interface {
	// Create mints a playable account from a display name and connect code.
	Create(ctx context.Context, displayName, connectCode string) (*dmn.User, error)

	// ByID fetches a user, consulting the cache before the repository.
	ByID(ctx context.Context, id uuid.UUID) (*dmn.User, error)
}
