package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

func TestUserSetsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	_, err := users.Create(ctx, models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	require.NoError(t, users.AddToSet(ctx, "u1", repositories.SetFriends, "u2"))
	require.NoError(t, users.AddToSet(ctx, "u1", repositories.SetFriends, "u2"))
	u, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, u.Friends)

	require.NoError(t, users.Pull(ctx, "u1", repositories.SetFriends, "u2"))
	require.NoError(t, users.Pull(ctx, "u1", repositories.SetFriends, "u2"))
	u, _ = users.GetByID(ctx, "u1")
	assert.Empty(t, u.Friends)

	assert.ErrorIs(t, users.AddToSet(ctx, "missing", repositories.SetFriends, "u2"), repositories.ErrNotFound)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	_, err := users.Create(ctx, models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = users.Create(ctx, models.User{ID: "u2", Email: "a@example.com"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestReturnedRecordsDoNotAliasStorage(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, err := store.Chats().Create(ctx, models.Chat{ID: "c1", Creator: "a@example.com", Members: []string{"a@example.com"}})
	require.NoError(t, err)

	chat, err := store.Chats().Get(ctx, "c1")
	require.NoError(t, err)
	chat.Members[0] = "mallory@example.com"

	again, _ := store.Chats().Get(ctx, "c1")
	assert.Equal(t, []string{"a@example.com"}, again.Members)
}

func TestWithTxRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, err := store.Users().Create(ctx, models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = store.Users().Create(ctx, models.User{ID: "u2", Email: "b@example.com"})
	require.NoError(t, err)

	boom := errors.New("boom")
	store.InjectFault("users.AddToSet", boom)
	err = store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := tx.Users().Pull(ctx, "u1", repositories.SetFriends, "x"); err != nil {
			return err
		}
		if err := tx.Users().SetToken(ctx, "u1", "device"); err != nil {
			return err
		}
		return tx.Users().AddToSet(ctx, "u2", repositories.SetFriends, "u1")
	})
	require.ErrorIs(t, err, boom)

	u1, _ := store.Users().GetByID(ctx, "u1")
	assert.Empty(t, u1.Token)
}

func TestRollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, err := store.Users().Create(ctx, models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	boom := errors.New("boom")
	done := make(chan error, 1)
	err = store.WithTx(ctx, func(txCtx context.Context, tx repositories.Store) error {
		if err := tx.Users().SetProfile(txCtx, "u1", models.Profile{Name: "draft"}); err != nil {
			return err
		}
		go func() { done <- store.Users().SetToken(ctx, "u1", "device-1") }()
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-done)

	u1, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "device-1", u1.Token)
	assert.Empty(t, u1.Profile.Name)
}

func TestDetachMessageResetsTail(t *testing.T) {
	ctx := context.Background()
	chats := NewStore().Chats()
	_, err := chats.Create(ctx, models.Chat{ID: "c1", Creator: "a@example.com", Members: []string{"a@example.com"}})
	require.NoError(t, err)

	first := mustTime(t, "2024-01-01T10:00:00Z")
	second := mustTime(t, "2024-01-01T10:01:00Z")
	require.NoError(t, chats.AppendMessage(ctx, "c1", "m1", first))
	require.NoError(t, chats.AppendMessage(ctx, "c1", "m2", second))

	require.NoError(t, chats.DetachMessage(ctx, "c1", "m2", "m1", &first))
	chat, _ := chats.Get(ctx, "c1")
	assert.Equal(t, []string{"m1"}, chat.Messages)
	assert.Equal(t, "m1", chat.LastMessage)
	require.NotNil(t, chat.LastMessageDate)
	assert.True(t, chat.LastMessageDate.Equal(first))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	at, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return at
}
