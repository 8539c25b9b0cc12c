package services

import (
	"context"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/validation"
)

// UserService runs account and friend-request workflows.
type UserService struct {
	deps Deps
}

func NewUserService(deps Deps) *UserService {
	return &UserService{deps: deps.withDefaults()}
}

// FindOne returns the full document when the caller asks for themselves
// and the public view otherwise.
func (s *UserService) FindOne(ctx context.Context, caller auth.Identity, targetID string) (view models.UserView, err error) {
	ctx, span := start(ctx, "users.findOne", caller)
	defer func() { end(span, "users.findOne", err) }()

	if err := validation.ID("id", targetID); err != nil {
		return models.UserView{}, err
	}
	user, err := s.deps.Store.Users().GetByID(ctx, targetID)
	if err != nil {
		return models.UserView{}, lookup(err, "user")
	}
	if user.ID == caller.ID {
		return models.UserView{Self: &user}, nil
	}
	public := user.Public()
	return models.UserView{Public: &public}, nil
}

// Delete removes the caller's account. Friends and pending requests
// pointing at the caller are cleared, chats the caller created are deleted
// with their messages, and the caller leaves every other chat.
func (s *UserService) Delete(ctx context.Context, caller auth.Identity) (deleted models.User, err error) {
	ctx, span := start(ctx, "users.delete", caller)
	defer func() { end(span, "users.delete", err) }()

	var events []models.ChatEvent
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, caller.ID)
		if err != nil {
			return lookup(err, "user")
		}
		chats, err := tx.Chats().ListByMember(ctx, user.Email)
		if err != nil {
			return lookup(err, "chats")
		}

		for _, set := range []repositories.UserSet{
			repositories.SetFriends,
			repositories.SetIncomingFriendRequests,
			repositories.SetOutgoingFriendRequests,
		} {
			if err := tx.Users().PullFromAll(ctx, set, user.ID); err != nil {
				return err
			}
		}

		for _, chat := range chats {
			if chat.Creator == user.Email {
				if err := deleteChat(ctx, tx, chat.ID); err != nil {
					return err
				}
				events = append(events, models.ChatEvent{Type: models.EventChatDeleted, ChatID: chat.ID})
				continue
			}
			if err := tx.Chats().Pull(ctx, chat.ID, repositories.SetMembers, user.Email); err != nil {
				return err
			}
			if err := tx.Chats().Pull(ctx, chat.ID, repositories.SetMembersTyping, user.Email); err != nil {
				return err
			}
			events = append(events, models.ChatEvent{Type: models.EventMemberLeft, ChatID: chat.ID, User: user.Email})
		}

		deleted, err = tx.Users().Delete(ctx, user.ID)
		return err
	})
	if err != nil {
		return models.User{}, storeErr(err, "failed to delete user")
	}

	for _, ev := range events {
		s.deps.Hub.Broadcast(ctx, ev)
	}
	s.deps.Audit.Action(ctx, caller.ID, "user.deleted", nil)
	return deleted, nil
}

// FriendRequest records a pending request from the caller to
// potentialFriend on both users.
func (s *UserService) FriendRequest(ctx context.Context, caller auth.Identity, potentialFriend string) (user models.User, err error) {
	ctx, span := start(ctx, "users.friendRequest", caller)
	defer func() { end(span, "users.friendRequest", err) }()

	if err := validation.ID("potentialFriend", potentialFriend); err != nil {
		return models.User{}, err
	}
	if potentialFriend == caller.ID {
		return models.User{}, apperr.Validation("cannot send a friend request to yourself")
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		me, err := tx.Users().GetByID(ctx, caller.ID)
		if err != nil {
			return lookup(err, "user")
		}
		if _, err := tx.Users().GetByID(ctx, potentialFriend); err != nil {
			return lookup(err, "user")
		}
		switch {
		case models.Contains(me.Friends, potentialFriend):
			return apperr.Conflict("already friends")
		case models.Contains(me.OutgoingFriendRequests, potentialFriend),
			models.Contains(me.IncomingFriendRequests, potentialFriend):
			return apperr.Conflict("friend request already pending")
		}

		if err := tx.Users().AddToSet(ctx, potentialFriend, repositories.SetIncomingFriendRequests, me.ID); err != nil {
			return err
		}
		if err := tx.Users().AddToSet(ctx, me.ID, repositories.SetOutgoingFriendRequests, potentialFriend); err != nil {
			return err
		}
		user, err = tx.Users().GetByID(ctx, me.ID)
		return err
	})
	if err != nil {
		return models.User{}, storeErr(err, "failed to send friend request")
	}
	s.deps.Audit.Action(ctx, caller.ID, "friend.requested", map[string]string{"target": potentialFriend})
	return user, nil
}

// HandleFriend answers the request potentialFriend sent to the caller. The
// pending pair is cleared either way.
func (s *UserService) HandleFriend(ctx context.Context, caller auth.Identity, potentialFriend string, accept bool) (user models.User, err error) {
	ctx, span := start(ctx, "users.handleFriend", caller)
	defer func() { end(span, "users.handleFriend", err) }()

	if err := validation.ID("potentialFriend", potentialFriend); err != nil {
		return models.User{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if _, err := tx.Users().GetByID(ctx, caller.ID); err != nil {
			return lookup(err, "user")
		}
		requester, err := tx.Users().GetByID(ctx, potentialFriend)
		if err != nil {
			return lookup(err, "user")
		}
		if !models.Contains(requester.OutgoingFriendRequests, caller.ID) {
			return apperr.NotFound("friend request not found")
		}

		if err := tx.Users().Pull(ctx, requester.ID, repositories.SetOutgoingFriendRequests, caller.ID); err != nil {
			return err
		}
		if err := tx.Users().Pull(ctx, caller.ID, repositories.SetIncomingFriendRequests, requester.ID); err != nil {
			return err
		}
		if accept {
			if err := tx.Users().AddToSet(ctx, caller.ID, repositories.SetFriends, requester.ID); err != nil {
				return err
			}
			if err := tx.Users().AddToSet(ctx, requester.ID, repositories.SetFriends, caller.ID); err != nil {
				return err
			}
		}
		user, err = tx.Users().GetByID(ctx, caller.ID)
		return err
	})
	if err != nil {
		return models.User{}, storeErr(err, "failed to handle friend request")
	}

	action := "friend.declined"
	if accept {
		action = "friend.accepted"
	}
	s.deps.Audit.Action(ctx, caller.ID, action, map[string]string{"target": potentialFriend})
	return user, nil
}

// RemoveFriend ends a friendship in both directions.
func (s *UserService) RemoveFriend(ctx context.Context, caller auth.Identity, friend string) (user models.User, err error) {
	ctx, span := start(ctx, "users.removeFriend", caller)
	defer func() { end(span, "users.removeFriend", err) }()

	if err := validation.ID("friend", friend); err != nil {
		return models.User{}, err
	}

	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if _, err := tx.Users().GetByID(ctx, caller.ID); err != nil {
			return lookup(err, "user")
		}
		other, err := tx.Users().GetByID(ctx, friend)
		if err != nil {
			return lookup(err, "user")
		}
		if !models.Contains(other.Friends, caller.ID) {
			return apperr.NotFound("friend not found")
		}

		if err := tx.Users().Pull(ctx, other.ID, repositories.SetFriends, caller.ID); err != nil {
			return err
		}
		if err := tx.Users().Pull(ctx, caller.ID, repositories.SetFriends, other.ID); err != nil {
			return err
		}
		user, err = tx.Users().GetByID(ctx, caller.ID)
		return err
	})
	if err != nil {
		return models.User{}, storeErr(err, "failed to remove friend")
	}
	s.deps.Audit.Action(ctx, caller.ID, "friend.removed", map[string]string{"target": friend})
	return user, nil
}

// UpdateProfile overwrites the caller's profile.
func (s *UserService) UpdateProfile(ctx context.Context, caller auth.Identity, profile models.Profile) (user models.User, err error) {
	ctx, span := start(ctx, "users.updateProfile", caller)
	defer func() { end(span, "users.updateProfile", err) }()

	if err := validation.Struct(profile); err != nil {
		return models.User{}, err
	}
	if err := s.deps.Store.Users().SetProfile(ctx, caller.ID, profile); err != nil {
		return models.User{}, lookup(err, "user")
	}
	user, err = s.deps.Store.Users().GetByID(ctx, caller.ID)
	if err != nil {
		return models.User{}, lookup(err, "user")
	}
	return user, nil
}

// SetDeviceToken stores the push token for the caller's device.
func (s *UserService) SetDeviceToken(ctx context.Context, caller auth.Identity, token string) (user models.User, err error) {
	ctx, span := start(ctx, "users.setDeviceToken", caller)
	defer func() { end(span, "users.setDeviceToken", err) }()

	if err := validation.Var("token", token, "required,max=4096"); err != nil {
		return models.User{}, err
	}
	if err := s.deps.Store.Users().SetToken(ctx, caller.ID, token); err != nil {
		return models.User{}, lookup(err, "user")
	}
	user, err = s.deps.Store.Users().GetByID(ctx, caller.ID)
	if err != nil {
		return models.User{}, lookup(err, "user")
	}
	return user, nil
}

// Network returns public views of the caller's friends and of everyone with
// a pending request to or from the caller.
func (s *UserService) Network(ctx context.Context, caller auth.Identity) (network models.Network, err error) {
	ctx, span := start(ctx, "users.network", caller)
	defer func() { end(span, "users.network", err) }()

	me, err := s.deps.Store.Users().GetByID(ctx, caller.ID)
	if err != nil {
		return models.Network{}, lookup(err, "user")
	}

	resolve := func(ids []string) ([]models.PublicUser, error) {
		users, err := s.deps.Store.Users().ListByIDs(ctx, ids)
		if err != nil {
			return nil, storeErr(err, "failed to load users")
		}
		users = repositories.OrderByIDs(ids, users, func(u models.User) string { return u.ID })
		out := make([]models.PublicUser, 0, len(users))
		for _, u := range users {
			out = append(out, u.Public())
		}
		return out, nil
	}

	if network.Friends, err = resolve(me.Friends); err != nil {
		return models.Network{}, err
	}
	if network.Incoming, err = resolve(me.IncomingFriendRequests); err != nil {
		return models.Network{}, err
	}
	if network.Outgoing, err = resolve(me.OutgoingFriendRequests); err != nil {
		return models.Network{}, err
	}
	return network, nil
}
