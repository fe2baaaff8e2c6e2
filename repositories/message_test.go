package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessageRepository_StoreAndGet(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	conversation := uuid.New().String()
	now := time.Now().UTC()

	stored := DiskMessage{
		ID:           uuid.New(),
		Conversation: conversation,
		Role:         "user",
		Content:      "What is the usual dose of paracetamol?",
		At:           now,
	}
	req.NoError(repo.StoreMessage(stored))

	messages, cursor, err := repo.GetMessages(conversation, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.NotNil(cursor)
	req.Equal(stored.ID, messages[0].ID)
	req.Equal(stored.Role, messages[0].Role)
	req.Equal(stored.Content, messages[0].Content)
	req.Equal(now.UnixNano(), messages[0].At.UnixNano())

	// Another conversation stays invisible behind the prefix
	other, _, err := repo.GetMessages(uuid.New().String(), nil)
	req.NoError(err)
	req.Empty(other)
}

func TestMessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), lo.ToPtr(2))

	conversation := "consult-room-42"
	now := time.Now().UTC()

	for i := 1; i <= 5; i++ {
		req.NoError(repo.StoreMessage(DiskMessage{
			ID:           uuid.New(),
			Conversation: conversation,
			Role:         "user",
			Content:      fmt.Sprintf("Message %d", i),
			At:           now.Add(time.Duration(i) * time.Minute),
		}))
	}

	// --- PAGE 1 --- newest first
	page1, cursor1, err := repo.GetMessages(conversation, nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.Equal("Message 5", page1[0].Content)
	req.Equal("Message 4", page1[1].Content)
	req.NotEmpty(cursor1)

	// --- PAGE 2 --- no duplicates, no gaps
	page2, cursor2, err := repo.GetMessages(conversation, cursor1)
	req.NoError(err)
	req.Len(page2, 2)
	req.Equal("Message 3", page2[0].Content)
	req.Equal("Message 2", page2[1].Content)

	// --- PAGE 3 --- remainder
	page3, _, err := repo.GetMessages(conversation, cursor2)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal("Message 1", page3[0].Content)
}
