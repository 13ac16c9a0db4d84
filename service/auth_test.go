package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmn "github.com/openmelee/netplay-server/domain"
)

type fakeTokenizer struct {
	lastClaims map[string]interface{}
}

func (f *fakeTokenizer) Generate(claims map[string]interface{}, _ time.Duration) (string, error) {
	f.lastClaims = claims
	return "signed-token", nil
}

func (f *fakeTokenizer) Decode(string) (map[string]interface{}, error) {
	return f.lastClaims, nil
}

func TestAuthSignIn(t *testing.T) {
	ctx := context.Background()
	registered := mustUser(t, dmn.UserConfig{
		Username:      "falcomaster",
		PlainPassword: "correct horse battery staple",
		DisplayName:   "Falco Main",
		ConnectCode:   "FALC#01",
	})

	newAuthService := func(t *testing.T) (*Auth, *fakeTokenizer) {
		t.Helper()
		tokenizer := &fakeTokenizer{}
		svc, err := NewAuth(newFakeRepo(registered), newFakeCache(), tokenizer)
		require.NoError(t, err)
		return svc, tokenizer
	}

	t.Run("valid credentials return the user and a token", func(t *testing.T) {
		svc, tokenizer := newAuthService(t)

		user, token, err := svc.SignIn(ctx, "falcomaster", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, registered, user)
		assert.Equal(t, "signed-token", token)
		assert.Equal(t, registered.ID.String(), tokenizer.lastClaims["uid"])
		assert.Equal(t, "falcomaster", tokenizer.lastClaims["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, _, err := svc.SignIn(ctx, "falcomaster", "nope")
		assert.ErrorIs(t, err, dmn.ErrCredentialsInvalid)
	})

	t.Run("unknown username", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, _, err := svc.SignIn(ctx, "nobody", "whatever")
		assert.ErrorIs(t, err, dmn.ErrCredentialsInvalid)
	})

	t.Run("credential-less account cannot sign in", func(t *testing.T) {
		anon := mustUser(t, dmn.UserConfig{DisplayName: "Anon", ConnectCode: "ANON#1"})
		anon.Username = "anonuser"

		tokenizer := &fakeTokenizer{}
		svc, err := NewAuth(newFakeRepo(anon), newFakeCache(), tokenizer)
		require.NoError(t, err)

		_, _, err = svc.SignIn(ctx, "anonuser", "")
		assert.ErrorIs(t, err, dmn.ErrNoCredentialsOnRecord)
	})
}

func TestAuthRegister(t *testing.T) {
	ctx := context.Background()

	newRegisterService := func(t *testing.T, seed ...*dmn.User) (*Auth, *fakeRepo, *fakeCache) {
		t.Helper()
		repo := newFakeRepo(seed...)
		cache := newFakeCache()
		svc, err := NewAuth(repo, cache, &fakeTokenizer{})
		require.NoError(t, err)
		return svc, repo, cache
	}

	t.Run("persists a credentialed account under the connect-code lock", func(t *testing.T) {
		svc, repo, cache := newRegisterService(t)

		user, err := svc.Register(ctx, "falcomaster", "correct horse battery staple", "Falco Main", "FALC#01")
		require.NoError(t, err)
		assert.Contains(t, repo.byID, user.ID)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEmpty(t, user.PlayKey)

		assert.Equal(t, 1, cache.locker.locks)
		assert.Equal(t, 1, cache.locker.unlocks)
		assert.Contains(t, cache.invalidated, user.ID)
	})

	t.Run("taken connect code", func(t *testing.T) {
		existing := mustUser(t, dmn.UserConfig{DisplayName: "First", ConnectCode: "FALC#01"})
		svc, _, cache := newRegisterService(t, existing)

		_, err := svc.Register(ctx, "falcomaster", "correct horse battery staple", "Second", "FALC#01")
		assert.ErrorIs(t, err, dmn.ErrConnectCodeTaken)
		assert.Equal(t, cache.locker.locks, cache.locker.unlocks)
	})

	t.Run("taken username", func(t *testing.T) {
		existing := mustUser(t, dmn.UserConfig{
			Username:      "falcomaster",
			PlainPassword: "correct horse battery staple",
			DisplayName:   "First",
			ConnectCode:   "OTHR#01",
		})
		svc, _, cache := newRegisterService(t, existing)

		_, err := svc.Register(ctx, "falcomaster", "correct horse battery staple", "Second", "FALC#01")
		assert.ErrorIs(t, err, dmn.ErrUsernameTaken)
		assert.Equal(t, cache.locker.locks, cache.locker.unlocks)
	})

	t.Run("weak password fails before the lock is taken", func(t *testing.T) {
		svc, _, cache := newRegisterService(t)

		_, err := svc.Register(ctx, "falcomaster", "password1", "Falco Main", "FALC#01")
		assert.ErrorIs(t, err, dmn.ErrPasswordTooWeak)
		assert.Zero(t, cache.locker.locks)
	})
}

func TestNewAuthRequiresDependencies(t *testing.T) {
	_, err := NewAuth(nil, newFakeCache(), &fakeTokenizer{})
	assert.Error(t, err)
	_, err = NewAuth(newFakeRepo(), nil, &fakeTokenizer{})
	assert.Error(t, err)
	_, err = NewAuth(newFakeRepo(), newFakeCache(), nil)
	assert.Error(t, err)
}
