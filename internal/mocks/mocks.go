package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// StoreMock hands out repository mocks and runs WithTx callbacks against
// itself.
type StoreMock struct {
	mock.Mock
	UserRepo    *UserRepositoryMock
	ChatRepo    *ChatRepositoryMock
	MessageRepo *MessageRepositoryMock
}

func NewStoreMock() *StoreMock {
	return &StoreMock{
		UserRepo:    &UserRepositoryMock{},
		ChatRepo:    &ChatRepositoryMock{},
		MessageRepo: &MessageRepositoryMock{},
	}
}

func (m *StoreMock) Users() repositories.UserRepository       { return m.UserRepo }
func (m *StoreMock) Chats() repositories.ChatRepository       { return m.ChatRepo }
func (m *StoreMock) Messages() repositories.MessageRepository { return m.MessageRepo }

func (m *StoreMock) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	return fn(ctx, m)
}

func (m *StoreMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StoreMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// AssertNoWrites fails the test if any mutating repository method ran.
func (m *StoreMock) AssertNoWrites(t mock.TestingT) {
	assertNoCalls(t, &m.UserRepo.Mock, "Create", "Delete", "AddToSet", "Pull", "PullFromAll", "SetProfile", "SetToken")
	assertNoCalls(t, &m.ChatRepo.Mock, "Create", "Delete", "AddToSet", "Pull", "AppendMessage", "DetachMessage")
	assertNoCalls(t, &m.MessageRepo.Mock, "Create", "Update", "Delete", "DeleteByChat")
}

func assertNoCalls(t mock.TestingT, m *mock.Mock, methods ...string) {
	for _, call := range m.Calls {
		for _, method := range methods {
			if call.Method == method {
				t.Errorf("unexpected call to %s%v", call.Method, call.Arguments)
			}
		}
	}
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

func (m *UserRepositoryMock) ListByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	args := m.Called(ctx, emails)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

func (m *UserRepositoryMock) Delete(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *UserRepositoryMock) AddToSet(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	args := m.Called(ctx, userID, set, value)
	return args.Error(0)
}

func (m *UserRepositoryMock) Pull(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	args := m.Called(ctx, userID, set, value)
	return args.Error(0)
}

func (m *UserRepositoryMock) PullFromAll(ctx context.Context, set repositories.UserSet, value string) error {
	args := m.Called(ctx, set, value)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetProfile(ctx context.Context, userID string, profile models.Profile) error {
	args := m.Called(ctx, userID, profile)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetToken(ctx context.Context, userID string, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) Create(ctx context.Context, chat models.Chat) (models.Chat, error) {
	args := m.Called(ctx, chat)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) Get(ctx context.Context, id string) (models.Chat, error) {
	args := m.Called(ctx, id)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) ListByIDs(ctx context.Context, ids []string) ([]models.Chat, error) {
	args := m.Called(ctx, ids)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ListByMember(ctx context.Context, email string) ([]models.Chat, error) {
	args := m.Called(ctx, email)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) Delete(ctx context.Context, id string) (models.Chat, error) {
	args := m.Called(ctx, id)
	return chatArg(args.Get(0)), args.Error(1)
}

func (m *ChatRepositoryMock) AddToSet(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	args := m.Called(ctx, chatID, set, value)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Pull(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	args := m.Called(ctx, chatID, set, value)
	return args.Error(0)
}

func (m *ChatRepositoryMock) AppendMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	args := m.Called(ctx, chatID, messageID, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DetachMessage(ctx context.Context, chatID, messageID, lastID string, lastAt *time.Time) error {
	args := m.Called(ctx, chatID, messageID, lastID, lastAt)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, id string) (models.Message, error) {
	args := m.Called(ctx, id)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) ListByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	args := m.Called(ctx, ids)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) Update(ctx context.Context, id string, content models.MessageContent, editedAt time.Time) (models.Message, error) {
	args := m.Called(ctx, id, content, editedAt)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, id string) (models.Message, error) {
	args := m.Called(ctx, id)
	return messageArg(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) DeleteByChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func userArg(val interface{}) models.User {
	if val == nil {
		return models.User{}
	}
	return val.(models.User)
}

func chatArg(val interface{}) models.Chat {
	if val == nil {
		return models.Chat{}
	}
	return val.(models.Chat)
}

func messageArg(val interface{}) models.Message {
	if val == nil {
		return models.Message{}
	}
	return val.(models.Message)
}
