package services

import (
	"chat-sessions/auth"
	apperrors "chat-sessions/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newIdentity(users *fakeUserRepo, duration time.Duration) *GuestIdentity {
	signer := auth.NewTokenSigner("test-secret", duration)
	return NewGuestIdentity(slog.Default(), users, signer)
}

func Test_CreateGuest_Persists_And_Signs(t *testing.T) {
	req := require.New(t)
	users := newFakeUserRepo()
	identity := newIdentity(users, time.Hour)

	user, token, err := identity.CreateGuest()
	req.NoError(err)
	req.True(user.IsGuest)
	req.NotEmpty(token)

	stored, err := users.GetUser(user.ID)
	req.NoError(err)
	req.Equal(user.ID, stored.ID)
}

func Test_Resolve_Round_Trips_To_Same_Guest(t *testing.T) {
	req := require.New(t)
	identity := newIdentity(newFakeUserRepo(), time.Hour)

	user, token, err := identity.CreateGuest()
	req.NoError(err)

	resolved, err := identity.Resolve(token)
	req.NoError(err)
	req.Equal(user.ID, resolved.ID)
}

func Test_Resolve_Rejects_Garbage_Token(t *testing.T) {
	req := require.New(t)
	identity := newIdentity(newFakeUserRepo(), time.Hour)

	_, err := identity.Resolve("not-a-jwt")
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func Test_Resolve_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	identity := newIdentity(newFakeUserRepo(), -time.Minute)

	_, token, err := identity.CreateGuest()
	req.NoError(err)

	_, err = identity.Resolve(token)
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func Test_Resolve_Rejects_Token_For_Deleted_User(t *testing.T) {
	req := require.New(t)
	signer := auth.NewTokenSigner("test-secret", time.Hour)
	identity := NewGuestIdentity(slog.Default(), newFakeUserRepo(), signer)

	// A valid signature whose subject was never persisted here
	token, err := signer.Generate("someone-else", true)
	req.NoError(err)

	_, err = identity.Resolve(token)
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}
