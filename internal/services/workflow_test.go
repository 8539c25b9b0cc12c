package services_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/repositories/memory"
	"chat-backend/internal/services"
)

type world struct {
	store    *memory.Store
	users    *services.UserService
	chats    *services.ChatService
	messages *services.MessageService
	clock    time.Time
}

func newWorld() *world {
	w := &world{store: memory.NewStore(), clock: fixed}
	deps := services.Deps{
		Store: w.store,
		Now: func() time.Time {
			w.clock = w.clock.Add(time.Second)
			return w.clock
		},
	}
	w.users = services.NewUserService(deps)
	w.chats = services.NewChatService(deps)
	w.messages = services.NewMessageService(deps)
	return w
}

func (w *world) signup(t *testing.T, email string) auth.Identity {
	t.Helper()
	u, err := w.store.Users().Create(context.Background(), models.User{ID: uuid.NewString(), Email: email})
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Email: u.Email}
}

func (w *world) user(t *testing.T, id auth.Identity) models.User {
	t.Helper()
	u, err := w.store.Users().GetByID(context.Background(), id.ID)
	require.NoError(t, err)
	return u
}

func (w *world) chat(t *testing.T, id string) models.Chat {
	t.Helper()
	c, err := w.store.Chats().Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

// assertGraph checks friend symmetry and request pairing across users.
func assertGraph(t *testing.T, w *world, ids ...auth.Identity) {
	t.Helper()
	byID := map[string]models.User{}
	for _, id := range ids {
		byID[id.ID] = w.user(t, id)
	}
	for _, a := range byID {
		for _, f := range a.Friends {
			assert.Contains(t, byID[f].Friends, a.ID, "friendship %s -> %s is one-sided", a.Email, byID[f].Email)
		}
		for _, x := range a.OutgoingFriendRequests {
			assert.Contains(t, byID[x].IncomingFriendRequests, a.ID, "outgoing request from %s has no incoming side", a.Email)
		}
		for _, x := range a.IncomingFriendRequests {
			assert.Contains(t, byID[x].OutgoingFriendRequests, a.ID, "incoming request on %s has no outgoing side", a.Email)
		}
	}
}

func TestFriendRequestAcceptFlow(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")

	_, err := w.users.FriendRequest(ctx, a, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, w.user(t, a).OutgoingFriendRequests)
	assert.Equal(t, []string{a.ID}, w.user(t, b).IncomingFriendRequests)
	assertGraph(t, w, a, b)

	_, err = w.users.FriendRequest(ctx, a, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = w.users.FriendRequest(ctx, b, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := w.users.HandleFriend(ctx, b, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, got.Friends)
	assert.Equal(t, []string{b.ID}, w.user(t, a).Friends)
	assert.Empty(t, w.user(t, a).OutgoingFriendRequests)
	assert.Empty(t, w.user(t, b).IncomingFriendRequests)
	assertGraph(t, w, a, b)

	_, err = w.users.FriendRequest(ctx, a, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = w.users.RemoveFriend(ctx, a, b.ID)
	require.NoError(t, err)
	assert.Empty(t, w.user(t, a).Friends)
	assert.Empty(t, w.user(t, b).Friends)

	_, err = w.users.RemoveFriend(ctx, a, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFriendRequestDeclineClearsPair(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")

	_, err := w.users.FriendRequest(ctx, a, b.ID)
	require.NoError(t, err)

	_, err = w.users.HandleFriend(ctx, a, b.ID, true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "the sender cannot answer their own request")

	_, err = w.users.HandleFriend(ctx, b, a.ID, false)
	require.NoError(t, err)
	for _, u := range []models.User{w.user(t, a), w.user(t, b)} {
		assert.Empty(t, u.Friends)
		assert.Empty(t, u.IncomingFriendRequests)
		assert.Empty(t, u.OutgoingFriendRequests)
	}
}

func TestFriendRequestToUnknownUser(t *testing.T) {
	w := newWorld()
	a := w.signup(t, "a@example.com")

	_, err := w.users.FriendRequest(context.Background(), a, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, w.user(t, a).OutgoingFriendRequests)
}

func TestConcurrentMutualFriendRequestsStayPaired(t *testing.T) {
	for round := 0; round < 20; round++ {
		w := newWorld()
		a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); _, errs[0] = w.users.FriendRequest(context.Background(), a, b.ID) }()
		go func() { defer wg.Done(); _, errs[1] = w.users.FriendRequest(context.Background(), b, a.ID) }()
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.True(t, apperr.Is(err, apperr.KindConflict), "unexpected error %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assertGraph(t, w, a, b)
	}
}

func TestFailedHandleFriendLeavesNoHalfFriendship(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")
	_, err := w.users.FriendRequest(ctx, a, b.ID)
	require.NoError(t, err)

	w.store.InjectFault("users.AddToSet", errors.New("disk full"))
	_, err = w.users.HandleFriend(ctx, b, a.ID, true)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	assert.Equal(t, []string{b.ID}, w.user(t, a).OutgoingFriendRequests)
	assert.Equal(t, []string{a.ID}, w.user(t, b).IncomingFriendRequests)
	assert.Empty(t, w.user(t, a).Friends)
	assert.Empty(t, w.user(t, b).Friends)
	assertGraph(t, w, a, b)
}

func TestInviteAcceptScenario(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")

	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a.Email, chat.Creator)
	assert.Equal(t, []string{a.Email}, chat.Members)
	assert.Equal(t, []string{chat.ID}, w.user(t, a).Chats)

	invitee, err := w.chats.Invite(ctx, a, chat.ID, "B@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, b.ID, invitee.ID)
	assert.Equal(t, []string{chat.ID}, w.user(t, b).ChatRequests)

	_, err = w.chats.Invite(ctx, a, chat.ID, b.Email)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	listed, err := w.chats.List(ctx, b)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, chat.ID, listed[0].ID)

	_, err = w.chats.Get(ctx, b, chat.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "an invitee is not yet a member")

	user, err := w.chats.HandleInvite(ctx, b, chat.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{chat.ID}, user.Chats)
	assert.Empty(t, user.ChatRequests)
	assert.Equal(t, []string{a.Email, b.Email}, w.chat(t, chat.ID).Members)

	_, err = w.chats.Invite(ctx, a, chat.ID, b.Email)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	msg, err := w.messages.Create(ctx, b, chat.ID, models.MessageContent{Message: "hello"})
	require.NoError(t, err)
	detail, err := w.chats.Get(ctx, a, chat.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, msg.ID, detail.Messages[0].ID)
	assert.Equal(t, msg.ID, detail.LastMessage)
}

func TestDeclinedInviteLeavesNonMember(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)
	_, err = w.chats.Invite(ctx, a, chat.ID, b.Email)
	require.NoError(t, err)

	user, err := w.chats.HandleInvite(ctx, b, chat.ID, false)
	require.NoError(t, err)
	assert.Empty(t, user.ChatRequests)
	assert.Empty(t, user.Chats)
	assert.Equal(t, []string{a.Email}, w.chat(t, chat.ID).Members)

	_, err = w.chats.HandleInvite(ctx, b, chat.ID, true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRemoveUserAndLeave(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b, c := w.signup(t, "a@example.com"), w.signup(t, "b@example.com"), w.signup(t, "c@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)
	for _, id := range []auth.Identity{b, c} {
		_, err = w.chats.Invite(ctx, a, chat.ID, id.Email)
		require.NoError(t, err)
		_, err = w.chats.HandleInvite(ctx, id, chat.ID, true)
		require.NoError(t, err)
	}

	updated, err := w.chats.RemoveUser(ctx, a, chat.ID, b.Email)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Email, c.Email}, updated.Members)
	assert.Empty(t, w.user(t, b).Chats)

	updated, err = w.chats.RemoveUser(ctx, c, chat.ID, c.Email)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Email}, updated.Members)
	assert.Contains(t, updated.Members, updated.Creator)

	_, err = w.chats.RemoveUser(ctx, a, chat.ID, "d@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))
	assert.Equal(t, []string{a.Email}, w.chat(t, chat.ID).Members)
}

func TestDeleteChatCleansReferences(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b, c := w.signup(t, "a@example.com"), w.signup(t, "b@example.com"), w.signup(t, "c@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)
	_, err = w.chats.Invite(ctx, a, chat.ID, b.Email)
	require.NoError(t, err)
	_, err = w.chats.HandleInvite(ctx, b, chat.ID, true)
	require.NoError(t, err)
	_, err = w.chats.Invite(ctx, a, chat.ID, c.Email)
	require.NoError(t, err)
	msg, err := w.messages.Create(ctx, b, chat.ID, models.MessageContent{Message: "hi"})
	require.NoError(t, err)

	_, err = w.chats.Delete(ctx, b, chat.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = w.chats.Delete(ctx, a, chat.ID)
	require.NoError(t, err)

	_, err = w.store.Chats().Get(ctx, chat.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = w.store.Messages().Get(ctx, msg.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, w.user(t, a).Chats)
	assert.Empty(t, w.user(t, b).Chats)
	assert.Empty(t, w.user(t, c).ChatRequests)

	_, err = w.chats.Delete(ctx, a, chat.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMessageEditAndDelete(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a := w.signup(t, "a@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)

	first, err := w.messages.Create(ctx, a, chat.ID, models.MessageContent{Message: "first"})
	require.NoError(t, err)
	second, err := w.messages.Create(ctx, a, chat.ID, models.MessageContent{Type: models.MessageImage, Message: "https://cdn.example.com/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, w.chat(t, chat.ID).LastMessage)

	edited, err := w.messages.Edit(ctx, a, first.ID, models.MessageContent{Message: "first, edited"})
	require.NoError(t, err)
	assert.Equal(t, "first, edited", edited.Message)
	assert.Equal(t, models.MessageText, edited.Type)
	assert.True(t, edited.CreatedDate.Equal(first.CreatedDate))
	assert.True(t, edited.EditDate.After(first.EditDate))

	_, err = w.messages.Delete(ctx, a, chat.ID, second.ID)
	require.NoError(t, err)
	after := w.chat(t, chat.ID)
	assert.Equal(t, []string{first.ID}, after.Messages)
	assert.Equal(t, first.ID, after.LastMessage)
	require.NotNil(t, after.LastMessageDate)
	assert.True(t, after.LastMessageDate.Equal(first.CreatedDate))

	_, err = w.messages.Delete(ctx, a, chat.ID, first.ID)
	require.NoError(t, err)
	after = w.chat(t, chat.ID)
	assert.Empty(t, after.Messages)
	assert.Empty(t, after.LastMessage)
	assert.Nil(t, after.LastMessageDate)
}

func TestNonMemberPostWritesNothing(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)

	_, err = w.messages.Create(ctx, b, chat.ID, models.MessageContent{Message: "let me in"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Empty(t, w.chat(t, chat.ID).Messages)
}

func TestFindOneRedactsOtherUsers(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")
	_, err := w.users.SetDeviceToken(ctx, b, "device-b")
	require.NoError(t, err)

	self, err := w.users.FindOne(ctx, b, b.ID)
	require.NoError(t, err)
	require.True(t, self.IsSelf())
	assert.Equal(t, "device-b", self.Self.Token)

	other, err := w.users.FindOne(ctx, a, b.ID)
	require.NoError(t, err)
	require.False(t, other.IsSelf())
	assert.Equal(t, b.Email, other.Public.Email)

	_, err = w.users.FindOne(ctx, a, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteAccountCascades(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b, c := w.signup(t, "a@example.com"), w.signup(t, "b@example.com"), w.signup(t, "c@example.com")

	_, err := w.users.FriendRequest(ctx, a, b.ID)
	require.NoError(t, err)
	_, err = w.users.HandleFriend(ctx, b, a.ID, true)
	require.NoError(t, err)
	_, err = w.users.FriendRequest(ctx, c, a.ID)
	require.NoError(t, err)

	owned, err := w.chats.Create(ctx, a)
	require.NoError(t, err)
	joined, err := w.chats.Create(ctx, b)
	require.NoError(t, err)
	_, err = w.chats.Invite(ctx, b, joined.ID, a.Email)
	require.NoError(t, err)
	_, err = w.chats.HandleInvite(ctx, a, joined.ID, true)
	require.NoError(t, err)

	deleted, err := w.users.Delete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.ID)

	_, err = w.store.Users().GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, w.user(t, b).Friends)
	assert.Empty(t, w.user(t, c).OutgoingFriendRequests)
	_, err = w.store.Chats().Get(ctx, owned.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, []string{b.Email}, w.chat(t, joined.ID).Members)
}

func TestNetworkAndProfile(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b, c := w.signup(t, "a@example.com"), w.signup(t, "b@example.com"), w.signup(t, "c@example.com")
	_, err := w.users.FriendRequest(ctx, a, b.ID)
	require.NoError(t, err)
	_, err = w.users.FriendRequest(ctx, c, a.ID)
	require.NoError(t, err)

	_, err = w.users.UpdateProfile(ctx, b, models.Profile{Name: "Bea", Location: "Lisbon"})
	require.NoError(t, err)

	network, err := w.users.Network(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, network.Friends)
	require.Len(t, network.Outgoing, 1)
	assert.Equal(t, "Bea", network.Outgoing[0].Profile.Name)
	require.Len(t, network.Incoming, 1)
	assert.Equal(t, c.Email, network.Incoming[0].Email)
}

func TestTyping(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	a, b := w.signup(t, "a@example.com"), w.signup(t, "b@example.com")
	chat, err := w.chats.Create(ctx, a)
	require.NoError(t, err)

	updated, err := w.chats.Typing(ctx, a, chat.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Email}, updated.MembersTyping)

	updated, err = w.chats.Typing(ctx, a, chat.ID, false)
	require.NoError(t, err)
	assert.Empty(t, updated.MembersTyping)

	_, err = w.chats.Typing(ctx, b, chat.ID, true)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
