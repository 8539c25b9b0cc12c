package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

func TestWithTxWithoutTransactionsReportsPartialWrites(t *testing.T) {
	s := &Store{}
	boom := errors.New("write failed")

	err := s.WithTx(context.Background(), func(ctx context.Context, _ repositories.Store) error {
		noteWrite(ctx)
		return boom
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInconsistent))
	assert.ErrorIs(t, err, boom)
}

func TestWithTxWithoutTransactionsPassesThroughCleanFailures(t *testing.T) {
	s := &Store{}
	boom := errors.New("first write failed")

	err := s.WithTx(context.Background(), func(ctx context.Context, _ repositories.Store) error {
		return boom
	})
	assert.Equal(t, boom, err)

	err = s.WithTx(context.Background(), func(ctx context.Context, _ repositories.Store) error {
		return apperr.Conflict("already friends")
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestWithTxWithoutTransactionsTreatsLateDomainErrorsAsPartial(t *testing.T) {
	s := &Store{}

	err := s.WithTx(context.Background(), func(ctx context.Context, _ repositories.Store) error {
		noteWrite(ctx)
		return apperr.NotFound("chat not found")
	})
	assert.True(t, apperr.Is(err, apperr.KindInconsistent))
	assert.Equal(t, "operation was partially applied", apperr.Message(err))
}

func TestNormalizeUserFillsSets(t *testing.T) {
	u := normalizeUser(models.User{ID: "u1", Friends: []string{"u2"}})
	assert.Equal(t, []string{"u2"}, u.Friends)
	assert.NotNil(t, u.Chats)
	assert.NotNil(t, u.ChatRequests)
	assert.NotNil(t, u.IncomingFriendRequests)
	assert.NotNil(t, u.OutgoingFriendRequests)

	c := normalizeChat(models.Chat{ID: "c1"})
	assert.NotNil(t, c.Members)
	assert.NotNil(t, c.MembersTyping)
	assert.NotNil(t, c.Messages)
}
