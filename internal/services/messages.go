package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/notify"
	"chat-backend/internal/repositories"
	"chat-backend/internal/validation"
)

const previewLen = 120

// MessageService runs message workflows scoped to chat membership.
type MessageService struct {
	deps Deps
}

func NewMessageService(deps Deps) *MessageService {
	return &MessageService{deps: deps.withDefaults()}
}

// Create posts a message to a chat the caller belongs to and notifies the
// other members. Notification failures never fail the post.
func (s *MessageService) Create(ctx context.Context, caller auth.Identity, chatID string, content models.MessageContent) (msg models.Message, err error) {
	ctx, span := start(ctx, "messages.create", caller)
	defer func() { end(span, "messages.create", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.Message{}, err
	}
	content = withDefaultType(content)
	if err := validation.Struct(content); err != nil {
		return models.Message{}, err
	}

	var chat models.Chat
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		chat, err = tx.Chats().Get(ctx, chatID)
		if err != nil {
			return lookup(err, "chat")
		}
		if !chat.IsMember(caller.Email) {
			return apperr.Forbidden("not a member of this chat")
		}

		now := s.deps.Now()
		msg, err = tx.Messages().Create(ctx, models.Message{
			ID:          s.deps.NewID(),
			Chat:        chatID,
			Author:      caller.Email,
			Type:        content.Type,
			Message:     content.Message,
			CreatedDate: now,
			EditDate:    now,
		})
		if err != nil {
			return err
		}
		return tx.Chats().AppendMessage(ctx, chatID, msg.ID, msg.CreatedDate)
	})
	if err != nil {
		return models.Message{}, storeErr(err, "failed to create message")
	}

	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventMessage, ChatID: chatID, Message: &msg})
	s.notifyMembers(ctx, chat, msg)
	return msg, nil
}

func (s *MessageService) notifyMembers(ctx context.Context, chat models.Chat, msg models.Message) {
	others := make([]string, 0, len(chat.Members))
	for _, m := range chat.Members {
		if m != msg.Author {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return
	}
	users, err := s.deps.Store.Users().ListByEmails(ctx, others)
	if err != nil {
		log.Warn("push targets lookup failed", "chat_id", chat.ID, "err", err)
		return
	}
	tokens := make([]string, 0, len(users))
	for _, u := range users {
		tokens = append(tokens, u.Token)
	}
	s.deps.Notifier.Notify(ctx, tokens, notify.Payload{
		Title:  msg.Author,
		Body:   preview(msg),
		ChatID: chat.ID,
		Data:   map[string]string{"kind": "message", "message_id": msg.ID},
	})
}

// Edit replaces the content of the caller's own message.
func (s *MessageService) Edit(ctx context.Context, caller auth.Identity, messageID string, content models.MessageContent) (msg models.Message, err error) {
	ctx, span := start(ctx, "messages.edit", caller)
	defer func() { end(span, "messages.edit", err) }()

	if err := validation.ID("messageId", messageID); err != nil {
		return models.Message{}, err
	}
	if err := validation.Struct(withDefaultType(content)); err != nil {
		return models.Message{}, err
	}
	current, err := s.deps.Store.Messages().Get(ctx, messageID)
	if err != nil {
		return models.Message{}, lookup(err, "message")
	}
	if content.Type == "" {
		content.Type = current.Type
	}
	if current.Author != caller.Email {
		return models.Message{}, apperr.Forbidden("only the author can edit this message")
	}

	msg, err = s.deps.Store.Messages().Update(ctx, messageID, content, s.deps.Now())
	if err != nil {
		return models.Message{}, lookup(err, "message")
	}
	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventMessageEdited, ChatID: msg.Chat, Message: &msg})
	return msg, nil
}

// Delete removes the caller's own message from a chat. When it was the
// chat's last message, the previous one takes its place.
func (s *MessageService) Delete(ctx context.Context, caller auth.Identity, chatID, messageID string) (msg models.Message, err error) {
	ctx, span := start(ctx, "messages.delete", caller)
	defer func() { end(span, "messages.delete", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.Message{}, err
	}
	if err := validation.ID("messageId", messageID); err != nil {
		return models.Message{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		current, err := tx.Messages().Get(ctx, messageID)
		if err != nil {
			return lookup(err, "message")
		}
		if current.Chat != chatID {
			return apperr.Validation("message does not belong to this chat")
		}
		if current.Author != caller.Email {
			return apperr.Forbidden("only the author can delete this message")
		}
		chat, err := tx.Chats().Get(ctx, chatID)
		if err != nil {
			return lookup(err, "chat")
		}

		lastID, lastAt := chat.LastMessage, chat.LastMessageDate
		if chat.LastMessage == messageID {
			lastID, lastAt, err = previousMessage(ctx, tx, chat.Messages, messageID)
			if err != nil {
				return err
			}
		}

		if msg, err = tx.Messages().Delete(ctx, messageID); err != nil {
			return err
		}
		return tx.Chats().DetachMessage(ctx, chatID, messageID, lastID, lastAt)
	})
	if err != nil {
		return models.Message{}, storeErr(err, "failed to delete message")
	}

	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventMessageDeleted, ChatID: chatID, MessageID: messageID})
	return msg, nil
}

// previousMessage finds the newest message in ids other than removed.
func previousMessage(ctx context.Context, tx repositories.Store, ids []string, removed string) (string, *time.Time, error) {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == removed {
			continue
		}
		prev, err := tx.Messages().Get(ctx, ids[i])
		if err == nil {
			at := prev.CreatedDate
			return prev.ID, &at, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return "", nil, err
		}
	}
	return "", nil, nil
}

func withDefaultType(content models.MessageContent) models.MessageContent {
	if content.Type == "" {
		content.Type = models.MessageText
	}
	return content
}

func preview(msg models.Message) string {
	if msg.Type != models.MessageText {
		return "sent a " + msg.Type
	}
	if utf8.RuneCountInString(msg.Message) <= previewLen {
		return msg.Message
	}
	runes := []rune(msg.Message)
	return string(runes[:previewLen]) + "…"
}
