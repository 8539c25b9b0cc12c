package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/services"
)

type AuthWorkflowMock struct {
	mock.Mock
}

func (m *AuthWorkflowMock) Signup(ctx context.Context, email, password string) (services.Session, error) {
	args := m.Called(ctx, email, password)
	var s services.Session
	if val := args.Get(0); val != nil {
		s = val.(services.Session)
	}
	return s, args.Error(1)
}

func (m *AuthWorkflowMock) Login(ctx context.Context, email, password string) (services.Session, error) {
	args := m.Called(ctx, email, password)
	var s services.Session
	if val := args.Get(0); val != nil {
		s = val.(services.Session)
	}
	return s, args.Error(1)
}

type UserWorkflowMock struct {
	mock.Mock
}

func (m *UserWorkflowMock) FindOne(ctx context.Context, caller auth.Identity, targetID string) (models.UserView, error) {
	args := m.Called(ctx, caller, targetID)
	var v models.UserView
	if val := args.Get(0); val != nil {
		v = val.(models.UserView)
	}
	return v, args.Error(1)
}

func (m *UserWorkflowMock) Delete(ctx context.Context, caller auth.Identity) (models.User, error) {
	args := m.Called(ctx, caller)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) FriendRequest(ctx context.Context, caller auth.Identity, potentialFriend string) (models.User, error) {
	args := m.Called(ctx, caller, potentialFriend)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) HandleFriend(ctx context.Context, caller auth.Identity, potentialFriend string, accept bool) (models.User, error) {
	args := m.Called(ctx, caller, potentialFriend, accept)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) RemoveFriend(ctx context.Context, caller auth.Identity, friend string) (models.User, error) {
	args := m.Called(ctx, caller, friend)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) UpdateProfile(ctx context.Context, caller auth.Identity, profile models.Profile) (models.User, error) {
	args := m.Called(ctx, caller, profile)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) SetDeviceToken(ctx context.Context, caller auth.Identity, token string) (models.User, error) {
	args := m.Called(ctx, caller, token)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserWorkflowMock) Network(ctx context.Context, caller auth.Identity) (models.Network, error) {
	args := m.Called(ctx, caller)
	var n models.Network
	if val := args.Get(0); val != nil {
		n = val.(models.Network)
	}
	return n, args.Error(1)
}

type ChatWorkflowMock struct {
	mock.Mock
}

func (m *ChatWorkflowMock) Create(ctx context.Context, caller auth.Identity) (models.Chat, error) {
	args := m.Called(ctx, caller)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatWorkflowMock) Delete(ctx context.Context, caller auth.Identity, chatID string) (models.Chat, error) {
	args := m.Called(ctx, caller, chatID)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatWorkflowMock) Invite(ctx context.Context, caller auth.Identity, chatID, newUser string) (models.PublicUser, error) {
	args := m.Called(ctx, caller, chatID, newUser)
	var u models.PublicUser
	if val := args.Get(0); val != nil {
		u = val.(models.PublicUser)
	}
	return u, args.Error(1)
}

func (m *ChatWorkflowMock) HandleInvite(ctx context.Context, caller auth.Identity, chatID string, accept bool) (models.User, error) {
	args := m.Called(ctx, caller, chatID, accept)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *ChatWorkflowMock) RemoveUser(ctx context.Context, caller auth.Identity, chatID, removeUser string) (models.Chat, error) {
	args := m.Called(ctx, caller, chatID, removeUser)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatWorkflowMock) Get(ctx context.Context, caller auth.Identity, chatID string) (models.ChatDetail, error) {
	args := m.Called(ctx, caller, chatID)
	var d models.ChatDetail
	if val := args.Get(0); val != nil {
		d = val.(models.ChatDetail)
	}
	return d, args.Error(1)
}

func (m *ChatWorkflowMock) List(ctx context.Context, caller auth.Identity) ([]models.Chat, error) {
	args := m.Called(ctx, caller)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatWorkflowMock) Typing(ctx context.Context, caller auth.Identity, chatID string, typing bool) (models.Chat, error) {
	args := m.Called(ctx, caller, chatID, typing)
	return chatArg(args.Get(0)), args.Error(1)
}

type MessageWorkflowMock struct {
	mock.Mock
}

func (m *MessageWorkflowMock) Create(ctx context.Context, caller auth.Identity, chatID string, content models.MessageContent) (models.Message, error) {
	args := m.Called(ctx, caller, chatID, content)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageWorkflowMock) Edit(ctx context.Context, caller auth.Identity, messageID string, content models.MessageContent) (models.Message, error) {
	args := m.Called(ctx, caller, messageID, content)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageWorkflowMock) Delete(ctx context.Context, caller auth.Identity, chatID, messageID string) (models.Message, error) {
	args := m.Called(ctx, caller, chatID, messageID)
	return messageArg(args.Get(0)), args.Error(1)
}
