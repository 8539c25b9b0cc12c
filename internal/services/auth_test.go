package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/repositories/memory"
	"chat-backend/internal/services"
)

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewTokens("secret", time.Hour)
	svc := services.NewAuthService(services.Deps{Store: memory.NewStore()}, tokens)

	session, err := svc.Signup(ctx, " Alice@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", session.User.Email)
	assert.NotEqual(t, "correct horse", session.User.Password)
	id, err := tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, id.ID)

	_, err = svc.Signup(ctx, "alice@example.com", "another password")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	login, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong horse")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestSignupValidation(t *testing.T) {
	svc := services.NewAuthService(services.Deps{Store: memory.NewStore()}, auth.NewTokens("secret", time.Hour))

	_, err := svc.Signup(context.Background(), "not-an-email", "correct horse")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.Message(err), "email")

	_, err = svc.Signup(context.Background(), "a@example.com", "short")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "password must be at least 8 characters", apperr.Message(err))
}

func TestAuthenticatorRejectsTokensThatOutliveTheirAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	tokens := auth.NewTokens("secret", time.Hour)
	svc := services.NewAuthService(services.Deps{Store: store}, tokens)
	authenticator := services.NewAuthenticator(store, tokens)

	old, err := svc.Signup(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	id, err := authenticator.Authenticate(ctx, old.Token)
	require.NoError(t, err)
	assert.Equal(t, old.User.ID, id.ID)

	_, err = services.NewUserService(services.Deps{Store: store}).Delete(ctx, id)
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, old.Token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)

	fresh, err := svc.Signup(ctx, "alice@example.com", "another horse")
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, old.Token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "old token must not reach the new account")
	id, err = authenticator.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, fresh.User.ID, id.ID)

	_, err = authenticator.Authenticate(ctx, "garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
