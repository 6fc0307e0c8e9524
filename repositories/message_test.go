package repositories

import (
	"chat-sessions/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newMessage(chatID uuid.UUID, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  sender,
		Content:   content,
		CreatedAt: at.UTC(),
	}
}

func Test_Record_And_Get_Sorted_Messages(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	chatID := uuid.New()
	at := time.Now().UTC()
	stored := []domain.Message{
		newMessage(chatID, "alice", "first", at),
		newMessage(chatID, "bob", "second", at.Add(1*time.Minute)),
		newMessage(chatID, "clara", "third", at.Add(2*time.Minute)),
	}
	for _, message := range stored {
		req.NoError(repository.StoreMessage(message))
	}

	// When fetching messages
	fetched, _, err := repository.GetMessages(chatID, nil)
	req.NoError(err)

	// Then they come back newest first
	req.Len(fetched, len(stored))
	req.Equal(stored[2], fetched[0])
	req.Equal(stored[1], fetched[1])
	req.Equal(stored[0], fetched[2])
}

func Test_Get_Messages_Scoped_To_Chat(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	chatA := uuid.New()
	chatB := uuid.New()
	at := time.Now().UTC()

	req.NoError(repository.StoreMessage(newMessage(chatA, "alice", "in A", at)))
	req.NoError(repository.StoreMessage(newMessage(chatB, "bob", "in B", at)))

	fetched, _, err := repository.GetMessages(chatA, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("in A", fetched[0].Content)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	chatID := uuid.New()
	at := time.Now().UTC()
	for i, sender := range []string{"alice", "bob", "clara"} {
		req.NoError(repository.StoreMessage(
			newMessage(chatID, sender, "hello", at.Add(time.Duration(i)*time.Minute))))
	}

	fetched, _, err := repository.GetMessages(chatID, nil)
	req.NoError(err)
	req.Len(fetched, limit)
}

func Test_Get_Messages_With_Cursor(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	chatID := uuid.New()
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		req.NoError(repository.StoreMessage(
			newMessage(chatID, "alice", "hello", at.Add(time.Duration(i)*time.Minute))))
	}

	// Given a first page
	page1, cursor, err := repository.GetMessages(chatID, nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.NotNil(cursor)

	// When fetching the next page from the cursor
	page2, _, err := repository.GetMessages(chatID, cursor)
	req.NoError(err)

	// Then it continues where the first stopped, without overlap
	req.Len(page2, 2)
	req.True(page1[1].CreatedAt.After(page2[0].CreatedAt))
}

func Test_Get_Messages_Exhausted_Cursor_Is_Nil(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	chatID := uuid.New()

	// Given an empty chat
	messages, cursor, err := repository.GetMessages(chatID, nil)
	req.NoError(err)
	req.Empty(messages)

	// Then there is no cursor to page from
	req.Nil(cursor)

	// And paging past the last stored message also ends the scan
	req.NoError(repository.StoreMessage(newMessage(chatID, "alice", "hello", time.Now().UTC())))
	page, cursor, err := repository.GetMessages(chatID, nil)
	req.NoError(err)
	req.Len(page, 1)
	req.NotNil(cursor)

	tail, cursor, err := repository.GetMessages(chatID, cursor)
	req.NoError(err)
	req.Empty(tail)
	req.Nil(cursor)
}
