package i

import (
	"context"

	dmn "github.com/openmelee/netplay-server/domain"
)

// Authenticator registers credentialed accounts and signs users in.
type Authenticator interface {
	Register(ctx context.Context, username, password, displayName, connectCode string) (*dmn.User, error)
	SignIn(ctx context.Context, username, password string) (*dmn.User, string, error)
}
