package repositories

import (
	"context"
	"errors"
	"time"

	"chat-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UserSet names one of the id/email sets embedded in a user document.
type UserSet string

const (
	SetChats                  UserSet = "chats"
	SetChatRequests           UserSet = "chatRequests"
	SetFriends                UserSet = "friends"
	SetIncomingFriendRequests UserSet = "incomingFriendRequests"
	SetOutgoingFriendRequests UserSet = "outgoingFriendRequests"
)

// ChatSet names one of the sets embedded in a chat document.
type ChatSet string

const (
	SetMembers       ChatSet = "members"
	SetMembersTyping ChatSet = "membersTyping"
)

// UserRepository persists users. AddToSet and Pull are idempotent.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListByEmails(ctx context.Context, emails []string) ([]models.User, error)
	Delete(ctx context.Context, id string) (models.User, error)
	AddToSet(ctx context.Context, userID string, set UserSet, value string) error
	Pull(ctx context.Context, userID string, set UserSet, value string) error
	// PullFromAll removes value from set on every user that holds it.
	PullFromAll(ctx context.Context, set UserSet, value string) error
	SetProfile(ctx context.Context, userID string, profile models.Profile) error
	SetToken(ctx context.Context, userID string, token string) error
}

// ChatRepository persists chats.
type ChatRepository interface {
	Create(ctx context.Context, chat models.Chat) (models.Chat, error)
	Get(ctx context.Context, id string) (models.Chat, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Chat, error)
	ListByMember(ctx context.Context, email string) ([]models.Chat, error)
	Delete(ctx context.Context, id string) (models.Chat, error)
	AddToSet(ctx context.Context, chatID string, set ChatSet, value string) error
	Pull(ctx context.Context, chatID string, set ChatSet, value string) error
	// AppendMessage pushes messageID and records it as the last message.
	AppendMessage(ctx context.Context, chatID, messageID string, at time.Time) error
	// DetachMessage removes messageID and sets the last message to the
	// given tail (empty lastID clears it).
	DetachMessage(ctx context.Context, chatID, messageID, lastID string, lastAt *time.Time) error
}

// MessageRepository persists messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, id string) (models.Message, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Message, error)
	Update(ctx context.Context, id string, content models.MessageContent, editedAt time.Time) (models.Message, error)
	Delete(ctx context.Context, id string) (models.Message, error)
	DeleteByChat(ctx context.Context, chatID string) error
}

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Chats() ChatRepository
	Messages() MessageRepository
	// WithTx runs fn so that its writes apply together. fn must use the
	// store and context it is given.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// OrderByIDs returns items sorted to follow ids, dropping ids with no item.
func OrderByIDs[T any](ids []string, items []T, id func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[id(it)] = it
	}
	out := make([]T, 0, len(ids))
	for _, i := range ids {
		if it, ok := byID[i]; ok {
			out = append(out, it)
		}
	}
	return out
}
