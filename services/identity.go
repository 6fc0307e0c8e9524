package services

import (
	"chat-sessions/auth"
	"chat-sessions/contract"
	"chat-sessions/domain"
	"chat-sessions/errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// GuestIdentity provisions transient guest users. Each guest gets a fresh
// uuid plus a signed resume token; presenting the token on a later
// connection resolves to the same identity instead of minting a new one.
type GuestIdentity struct {
	log    *slog.Logger
	users  contract.IUserRepository
	signer *auth.TokenSigner
}

func NewGuestIdentity(log *slog.Logger, users contract.IUserRepository, signer *auth.TokenSigner) *GuestIdentity {
	return &GuestIdentity{log: log, users: users, signer: signer}
}

func (g *GuestIdentity) CreateGuest() (domain.User, string, error) {
	user := domain.NewGuest(uuid.NewString())
	if err := g.users.CreateUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("persist guest: %w", err)
	}

	token, err := g.signer.Generate(user.ID, true)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("sign resume token: %w", err)
	}

	g.log.Info("guest provisioned", "user_id", user.ID)
	return user, token, nil
}

// Resolve maps a resume token back to its user record.
func (g *GuestIdentity) Resolve(token string) (domain.User, error) {
	claims, err := g.signer.Validate(token)
	if err != nil {
		return domain.User{}, errors.ErrInvalidToken
	}

	user, err := g.users.GetUser(claims.UserID)
	if err != nil {
		return domain.User{}, errors.ErrUserNotFound
	}
	return user, nil
}
