package repositories

import (
	"chat-sessions/domain"
	apperrors "chat-sessions/errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	user := domain.User{ID: uuid.NewString(), IsGuest: true, CreatedAt: time.Now().UTC()}
	req.NoError(repository.CreateUser(user))

	found, err := repository.GetUser(user.ID)
	req.NoError(err)
	req.Equal(user, found)
}

func Test_Get_Missing_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser("ghost")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}
