package services

import (
	"context"
	"errors"
	"strings"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/notify"
	"chat-backend/internal/repositories"
	"chat-backend/internal/validation"
)

// ChatService runs chat lifecycle and membership workflows. Chat members
// are identified by email.
type ChatService struct {
	deps Deps
}

func NewChatService(deps Deps) *ChatService {
	return &ChatService{deps: deps.withDefaults()}
}

// Create starts a chat whose only member is the caller.
func (s *ChatService) Create(ctx context.Context, caller auth.Identity) (chat models.Chat, err error) {
	ctx, span := start(ctx, "chats.create", caller)
	defer func() { end(span, "chats.create", err) }()

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, caller.ID)
		if err != nil {
			return lookup(err, "user")
		}
		chat, err = tx.Chats().Create(ctx, models.Chat{
			ID:            s.deps.NewID(),
			Creator:       user.Email,
			Members:       []string{user.Email},
			MembersTyping: []string{},
			Messages:      []string{},
			CreatedDate:   s.deps.Now(),
		})
		if err != nil {
			return err
		}
		return tx.Users().AddToSet(ctx, user.ID, repositories.SetChats, chat.ID)
	})
	if err != nil {
		return models.Chat{}, storeErr(err, "failed to create chat")
	}
	s.deps.Audit.Action(ctx, caller.ID, "chat.created", map[string]string{"chat_id": chat.ID})
	return chat, nil
}

// Delete removes a chat, its messages and every reference to it. Only the
// creator may delete.
func (s *ChatService) Delete(ctx context.Context, caller auth.Identity, chatID string) (chat models.Chat, err error) {
	ctx, span := start(ctx, "chats.delete", caller)
	defer func() { end(span, "chats.delete", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.Chat{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		chat, err = tx.Chats().Get(ctx, chatID)
		if err != nil {
			return lookup(err, "chat")
		}
		if chat.Creator != caller.Email {
			return apperr.Forbidden("only the creator can delete this chat")
		}
		return deleteChat(ctx, tx, chatID)
	})
	if err != nil {
		return models.Chat{}, storeErr(err, "failed to delete chat")
	}

	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventChatDeleted, ChatID: chatID})
	s.deps.Audit.Action(ctx, caller.ID, "chat.deleted", map[string]string{"chat_id": chatID})
	return chat, nil
}

func deleteChat(ctx context.Context, tx repositories.Store, chatID string) error {
	if err := tx.Messages().DeleteByChat(ctx, chatID); err != nil {
		return err
	}
	if err := tx.Users().PullFromAll(ctx, repositories.SetChats, chatID); err != nil {
		return err
	}
	if err := tx.Users().PullFromAll(ctx, repositories.SetChatRequests, chatID); err != nil {
		return err
	}
	_, err := tx.Chats().Delete(ctx, chatID)
	return err
}

// Invite adds chatID to the invitee's pending chat requests. The caller
// must be a member; the invitee must be neither a member nor already
// invited.
func (s *ChatService) Invite(ctx context.Context, caller auth.Identity, chatID, newUser string) (invitee models.PublicUser, err error) {
	ctx, span := start(ctx, "chats.invite", caller)
	defer func() { end(span, "chats.invite", err) }()

	newUser = normalizeEmail(newUser)
	if err := validation.ID("chatId", chatID); err != nil {
		return models.PublicUser{}, err
	}
	if err := validation.Email("newUser", newUser); err != nil {
		return models.PublicUser{}, err
	}

	var target models.User
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		chat, err := tx.Chats().Get(ctx, chatID)
		if err != nil {
			return lookup(err, "chat")
		}
		if !chat.IsMember(caller.Email) {
			return apperr.Forbidden("not a member of this chat")
		}
		target, err = tx.Users().GetByEmail(ctx, newUser)
		if err != nil {
			return lookup(err, "user")
		}
		switch {
		case chat.IsMember(target.Email):
			return apperr.Conflict("user is already a member")
		case models.Contains(target.ChatRequests, chatID):
			return apperr.Conflict("user is already invited")
		}
		if err := tx.Users().AddToSet(ctx, target.ID, repositories.SetChatRequests, chatID); err != nil {
			return err
		}
		target, err = tx.Users().GetByID(ctx, target.ID)
		return err
	})
	if err != nil {
		return models.PublicUser{}, storeErr(err, "failed to invite user")
	}

	s.deps.Notifier.Notify(ctx, []string{target.Token}, notify.Payload{
		Title:  "Chat invitation",
		Body:   caller.Email + " invited you to a chat",
		ChatID: chatID,
		Data:   map[string]string{"kind": "invite"},
	})
	s.deps.Audit.Action(ctx, caller.ID, "chat.invited", map[string]string{"chat_id": chatID, "target": target.ID})
	return target.Public(), nil
}

// HandleInvite answers a pending chat request. The request is cleared
// either way; on accept the caller joins the chat.
func (s *ChatService) HandleInvite(ctx context.Context, caller auth.Identity, chatID string, accept bool) (user models.User, err error) {
	ctx, span := start(ctx, "chats.handleInvite", caller)
	defer func() { end(span, "chats.handleInvite", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.User{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		me, err := tx.Users().GetByID(ctx, caller.ID)
		if err != nil {
			return lookup(err, "user")
		}
		if !models.Contains(me.ChatRequests, chatID) {
			return apperr.NotFound("chat invitation not found")
		}
		if _, err := tx.Chats().Get(ctx, chatID); err != nil {
			return lookup(err, "chat")
		}

		if err := tx.Users().Pull(ctx, me.ID, repositories.SetChatRequests, chatID); err != nil {
			return err
		}
		if accept {
			if err := tx.Chats().AddToSet(ctx, chatID, repositories.SetMembers, me.Email); err != nil {
				return err
			}
			if err := tx.Users().AddToSet(ctx, me.ID, repositories.SetChats, chatID); err != nil {
				return err
			}
		}
		user, err = tx.Users().GetByID(ctx, me.ID)
		return err
	})
	if err != nil {
		return models.User{}, storeErr(err, "failed to handle invitation")
	}

	action := "chat.invite_declined"
	if accept {
		action = "chat.joined"
		s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventMemberJoined, ChatID: chatID, User: user.Email})
	}
	s.deps.Audit.Action(ctx, caller.ID, action, map[string]string{"chat_id": chatID})
	return user, nil
}

// RemoveUser takes a member out of a chat. The creator may remove anyone
// but themself; other members may only remove themselves.
func (s *ChatService) RemoveUser(ctx context.Context, caller auth.Identity, chatID, removeUser string) (chat models.Chat, err error) {
	ctx, span := start(ctx, "chats.removeUser", caller)
	defer func() { end(span, "chats.removeUser", err) }()

	removeUser = normalizeEmail(removeUser)
	if err := validation.ID("chatId", chatID); err != nil {
		return models.Chat{}, err
	}
	if err := validation.Email("removeUser", removeUser); err != nil {
		return models.Chat{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		chat, err = tx.Chats().Get(ctx, chatID)
		if err != nil {
			return lookup(err, "chat")
		}
		if !chat.IsMember(removeUser) {
			return apperr.Conflict("user is not a member of this chat")
		}
		if removeUser == chat.Creator {
			return apperr.Forbidden("the creator cannot be removed")
		}
		if caller.Email != chat.Creator && caller.Email != removeUser {
			return apperr.Forbidden("only the creator can remove other members")
		}
		target, err := tx.Users().GetByEmail(ctx, removeUser)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return lookup(err, "user")
		}

		if err := tx.Chats().Pull(ctx, chatID, repositories.SetMembers, removeUser); err != nil {
			return err
		}
		if err := tx.Chats().Pull(ctx, chatID, repositories.SetMembersTyping, removeUser); err != nil {
			return err
		}
		if target.ID != "" {
			if err := tx.Users().Pull(ctx, target.ID, repositories.SetChats, chatID); err != nil {
				return err
			}
		}
		chat, err = tx.Chats().Get(ctx, chatID)
		return err
	})
	if err != nil {
		return models.Chat{}, storeErr(err, "failed to remove user")
	}

	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventMemberLeft, ChatID: chatID, User: removeUser})
	s.deps.Audit.Action(ctx, caller.ID, "chat.member_removed", map[string]string{"chat_id": chatID, "target": removeUser})
	return chat, nil
}

// Get returns a chat with its messages resolved, for members only.
func (s *ChatService) Get(ctx context.Context, caller auth.Identity, chatID string) (detail models.ChatDetail, err error) {
	ctx, span := start(ctx, "chats.get", caller)
	defer func() { end(span, "chats.get", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.ChatDetail{}, err
	}
	chat, err := s.memberChat(ctx, caller, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	messages, err := s.deps.Store.Messages().ListByIDs(ctx, chat.Messages)
	if err != nil {
		return models.ChatDetail{}, storeErr(err, "failed to load messages")
	}
	messages = repositories.OrderByIDs(chat.Messages, messages, func(m models.Message) string { return m.ID })
	return models.ChatDetail{Chat: chat, Messages: messages}, nil
}

// List returns the chats the caller belongs to or is invited to.
func (s *ChatService) List(ctx context.Context, caller auth.Identity) (chats []models.Chat, err error) {
	ctx, span := start(ctx, "chats.list", caller)
	defer func() { end(span, "chats.list", err) }()

	me, err := s.deps.Store.Users().GetByID(ctx, caller.ID)
	if err != nil {
		return nil, lookup(err, "user")
	}
	ids := make([]string, 0, len(me.Chats)+len(me.ChatRequests))
	ids = append(ids, me.Chats...)
	for _, id := range me.ChatRequests {
		if !models.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	chats, err = s.deps.Store.Chats().ListByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "failed to load chats")
	}
	return repositories.OrderByIDs(ids, chats, func(c models.Chat) string { return c.ID }), nil
}

// Typing marks the caller as typing or not in a chat.
func (s *ChatService) Typing(ctx context.Context, caller auth.Identity, chatID string, typing bool) (chat models.Chat, err error) {
	ctx, span := start(ctx, "chats.typing", caller)
	defer func() { end(span, "chats.typing", err) }()

	if err := validation.ID("chatId", chatID); err != nil {
		return models.Chat{}, err
	}
	if _, err := s.memberChat(ctx, caller, chatID); err != nil {
		return models.Chat{}, err
	}

	chats := s.deps.Store.Chats()
	if typing {
		err = chats.AddToSet(ctx, chatID, repositories.SetMembersTyping, caller.Email)
	} else {
		err = chats.Pull(ctx, chatID, repositories.SetMembersTyping, caller.Email)
	}
	if err != nil {
		return models.Chat{}, lookup(err, "chat")
	}
	chat, err = chats.Get(ctx, chatID)
	if err != nil {
		return models.Chat{}, lookup(err, "chat")
	}

	s.deps.Hub.Broadcast(ctx, models.ChatEvent{Type: models.EventTyping, ChatID: chatID, User: caller.Email, Typing: typing})
	return chat, nil
}

// IsMember reports whether email belongs to the chat. A missing chat is
// not an error.
func (s *ChatService) IsMember(ctx context.Context, chatID, email string) (bool, error) {
	chat, err := s.deps.Store.Chats().Get(ctx, chatID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "failed to load chat")
	}
	return chat.IsMember(email), nil
}

func (s *ChatService) memberChat(ctx context.Context, caller auth.Identity, chatID string) (models.Chat, error) {
	chat, err := s.deps.Store.Chats().Get(ctx, chatID)
	if err != nil {
		return models.Chat{}, lookup(err, "chat")
	}
	if !chat.IsMember(caller.Email) {
		return models.Chat{}, apperr.Forbidden("not a member of this chat")
	}
	return chat, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
