//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-sessions/domain"
	apperrors "chat-sessions/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

type userRecord struct {
	ID        string    `json:"id"`
	IsGuest   bool      `json:"is_guest"`
	CreatedAt time.Time `json:"created_at"`
}

func userKey(userID string) []byte {
	return []byte(fmt.Sprintf("user:%s", userID))
}

func (r UserRepository) CreateUser(user domain.User) error {
	bytes, err := json.Marshal(userRecord{
		ID:        user.ID,
		IsGuest:   user.IsGuest,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), bytes)
	})
}

func (r UserRepository) GetUser(userID string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			var record userRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			user = domain.User{
				ID:        record.ID,
				IsGuest:   record.IsGuest,
				CreatedAt: record.CreatedAt,
			}
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	return user, err
}
