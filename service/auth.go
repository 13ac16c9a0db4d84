package service

import (
	"context"
	"errors"
	"time"

	dmn "github.com/openmelee/netplay-server/domain"
	"github.com/openmelee/netplay-server/service/i"
)

const tokenLifetime = 24 * time.Hour

// Auth registers credentialed accounts and issues JWTs on sign-in.
type Auth struct {
	userRepo  i.UserRepo
	userCache i.UserCache
	tokenizer i.Tokenizer
}

var _ i.Authenticator = &Auth{}

func NewAuth(userRepo i.UserRepo, userCache i.UserCache, tokenizer i.Tokenizer) (*Auth, error) {
	if userRepo == nil || userCache == nil || tokenizer == nil {
		return nil, errors.New("auth service is missing a dependency")
	}
	return &Auth{
		userRepo:  userRepo,
		userCache: userCache,
		tokenizer: tokenizer,
	}, nil
}

// Register creates a credentialed account. The connect-code claim is
// serialized through a distributed lock so two concurrent registrations
// cannot take the same code.
func (a *Auth) Register(ctx context.Context, username, password, displayName, connectCode string) (*dmn.User, error) {
	user, err := dmn.NewUser(dmn.UserConfig{
		Username:      username,
		PlainPassword: password,
		DisplayName:   displayName,
		ConnectCode:   connectCode,
	})
	if err != nil {
		return nil, err
	}

	mutex := a.userCache.ConnectCodeMutex(connectCode)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	taken, err := a.userRepo.IsConnectCodeTaken(connectCode)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, dmn.ErrConnectCodeTaken
	}

	if _, err := a.userRepo.ByUsername(username); err == nil {
		return nil, dmn.ErrUsernameTaken
	} else if !errors.Is(err, dmn.ErrUserNotFound) {
		return nil, err
	}

	if err := a.userRepo.Save(user); err != nil {
		return nil, err
	}
	// A stale cache entry would shadow the write on the next lookup.
	_ = a.userCache.Invalidate(ctx, user.ID)
	return user, nil
}

// SignIn verifies credentials and returns the user with a bearer token.
func (a *Auth) SignIn(ctx context.Context, username, password string) (*dmn.User, string, error) {
	user, err := a.userRepo.ByUsername(username)
	if err != nil {
		return nil, "", dmn.ErrCredentialsInvalid
	}

	if user.PasswordHash == "" {
		return nil, "", dmn.ErrNoCredentialsOnRecord
	}
	if !user.VerifyPassword(password) {
		return nil, "", dmn.ErrCredentialsInvalid
	}

	token, err := a.tokenizer.Generate(map[string]interface{}{
		"uid":      user.ID.String(),
		"username": user.Username,
	}, tokenLifetime)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
