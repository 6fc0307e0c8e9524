package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSearchIndex(t *testing.T) SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default())
}

func Test_Index_And_Search_Messages(t *testing.T) {
	req := require.New(t)
	index := newSearchIndex(t)
	chatID := uuid.New()
	at := time.Now().UTC()

	req.NoError(index.Index(newMessage(chatID, "alice", "the quick brown fox", at)))
	req.NoError(index.Index(newMessage(chatID, "bob", "lazy dogs sleep all day", at)))

	hits, err := index.Search(chatID, "fox", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("the quick brown fox", hits[0].Content)
	req.Equal("alice", hits[0].SenderID)
	req.Equal(chatID, hits[0].ChatID)
}

func Test_Search_Is_Scoped_To_Chat(t *testing.T) {
	req := require.New(t)
	index := newSearchIndex(t)
	chatA := uuid.New()
	chatB := uuid.New()
	at := time.Now().UTC()

	req.NoError(index.Index(newMessage(chatA, "alice", "shared keyword here", at)))
	req.NoError(index.Index(newMessage(chatB, "bob", "shared keyword there", at)))

	hits, err := index.Search(chatA, "keyword", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(chatA, hits[0].ChatID)
}

func Test_Search_No_Match(t *testing.T) {
	req := require.New(t)
	index := newSearchIndex(t)
	chatID := uuid.New()

	req.NoError(index.Index(newMessage(chatID, "alice", "hello world", time.Now().UTC())))

	hits, err := index.Search(chatID, "absent", 10)
	req.NoError(err)
	req.Empty(hits)
}
