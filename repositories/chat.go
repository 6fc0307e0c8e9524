package repositories

import (
	"chat-sessions/domain"
	apperrors "chat-sessions/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout:
//
//	chat:{chat_id}            -> chat record
//	part:{chat_id}:{user_id}  -> participant edge (empty value)
//	active:{user_id}          -> chat_id of the user's current ACTIVE chat
//
// The active: entry is a secondary index maintained on AddParticipant and
// SetChatStatus so that FindActiveChatForUser is a single point lookup
// instead of a full scan.
type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

type chatRecord struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func chatKey(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("chat:%s", chatID))
}

func participantKey(chatID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("part:%s:%s", chatID, userID))
}

func activeKey(userID string) []byte {
	return []byte(fmt.Sprintf("active:%s", userID))
}

func (r ChatRepository) CreateChat(chat domain.Chat) error {
	bytes, err := json.Marshal(fromChat(chat))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(chat.ID), bytes)
	})
}

func (r ChatRepository) FindChatByID(chatID uuid.UUID) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			chat, err = unmarshalChat(value)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Chat{}, apperrors.ErrChatNotFound
	}
	return chat, err
}

// FindActiveChatForUser resolves the active: index. A stale entry (chat
// closed or gone since the index was written) reads as "no active chat".
func (r ChatRepository) FindActiveChatForUser(userID string) (*domain.Chat, error) {
	var chatID uuid.UUID
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(activeKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			chatID, err = uuid.Parse(string(value))
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chat, err := r.FindChatByID(chatID)
	if err == apperrors.ErrChatNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if chat.IsClosed() {
		return nil, nil
	}
	return &chat, nil
}

// AddParticipant persists the membership edge, idempotently. If the chat is
// ACTIVE the user's active: index entry is updated as well.
func (r ChatRepository) AddParticipant(chatID uuid.UUID, userID string) error {
	chat, err := r.FindChatByID(chatID)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(participantKey(chatID, userID), []byte{}); err != nil {
			return err
		}
		if chat.Status == domain.StatusActive {
			return txn.Set(activeKey(userID), []byte(chatID.String()))
		}
		return nil
	})
}

func (r ChatRepository) ListParticipants(chatID uuid.UUID) ([]string, error) {
	prefix := []byte(fmt.Sprintf("part:%s:", chatID))
	var userIDs []string
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			userIDs = append(userIDs, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	return userIDs, err
}

// SetChatStatus rewrites the chat record. Transitioning to CLOSED also
// clears the active: index of every participant still pointing at this chat.
func (r ChatRepository) SetChatStatus(chatID uuid.UUID, status domain.ChatStatus) error {
	chat, err := r.FindChatByID(chatID)
	if err != nil {
		return err
	}
	chat.Status = status
	bytes, err := json.Marshal(fromChat(chat))
	if err != nil {
		return err
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(chatID), bytes)
	}); err != nil {
		return err
	}

	if status != domain.StatusClosed {
		return nil
	}

	participants, err := r.ListParticipants(chatID)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		for _, userID := range participants {
			item, err := txn.Get(activeKey(userID))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var current string
			if err := item.Value(func(value []byte) error {
				current = string(value)
				return nil
			}); err != nil {
				return err
			}
			if current != chatID.String() {
				continue
			}
			if err := txn.Delete(activeKey(userID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r ChatRepository) ListActiveChats() ([]domain.Chat, error) {
	prefix := []byte("chat:")
	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				chat, err := unmarshalChat(value)
				if err != nil {
					return err
				}
				if chat.Status == domain.StatusActive {
					chats = append(chats, chat)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return chats, err
}

func fromChat(chat domain.Chat) chatRecord {
	return chatRecord{
		ID:        chat.ID.String(),
		Status:    string(chat.Status),
		CreatedAt: chat.CreatedAt,
	}
}

func unmarshalChat(value []byte) (domain.Chat, error) {
	var record chatRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return domain.Chat{}, err
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Chat{}, err
	}
	return domain.Chat{
		ID:        id,
		Status:    domain.ChatStatus(record.Status),
		CreatedAt: record.CreatedAt,
	}, nil
}
