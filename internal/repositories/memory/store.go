// Package memory is an in-process repositories.Store for development and
// tests. WithTx snapshots the data and restores it when fn fails.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

type state struct {
	users    map[string]models.User
	chats    map[string]models.Chat
	messages map[string]models.Message
}

func (s *state) clone() *state {
	c := &state{
		users:    make(map[string]models.User, len(s.users)),
		chats:    make(map[string]models.Chat, len(s.chats)),
		messages: make(map[string]models.Message, len(s.messages)),
	}
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range s.chats {
		c.chats[k] = cloneChat(v)
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	return c
}

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	data   *state
	faults map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			users:    map[string]models.User{},
			chats:    map[string]models.Chat{},
			messages: map[string]models.Message{},
		},
		faults: map[string]error{},
	}
}

// InjectFault makes the next call of op (for example "users.AddToSet")
// fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault must be called with mu held.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

func (s *Store) Users() repositories.UserRepository       { return &userRepo{s: s} }
func (s *Store) Chats() repositories.ChatRepository       { return &chatRepo{s: s} }
func (s *Store) Messages() repositories.MessageRepository { return &messageRepo{s: s} }

type inTxKey struct{}

// WithTx serializes transactions and rolls back on error. Writes made
// outside a transaction wait for the running one, so a rollback only
// discards what fn wrote.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx, s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true), s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock takes the write locks for ctx. Inside WithTx the transaction
// already holds txMu.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func cloneUser(u models.User) models.User {
	u.Chats = cloneSet(u.Chats)
	u.ChatRequests = cloneSet(u.ChatRequests)
	u.Friends = cloneSet(u.Friends)
	u.IncomingFriendRequests = cloneSet(u.IncomingFriendRequests)
	u.OutgoingFriendRequests = cloneSet(u.OutgoingFriendRequests)
	return u
}

func cloneChat(c models.Chat) models.Chat {
	c.Members = cloneSet(c.Members)
	c.MembersTyping = cloneSet(c.MembersTyping)
	c.Messages = cloneSet(c.Messages)
	if c.LastMessageDate != nil {
		at := *c.LastMessageDate
		c.LastMessageDate = &at
	}
	return c
}

func cloneSet(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func addToSet(set []string, v string) []string {
	if slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

func pull(set []string, v string) []string {
	return slices.DeleteFunc(set, func(s string) bool { return s == v })
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("users.Create"); err != nil {
		return models.User{}, err
	}
	if _, ok := r.s.data.users[u.ID]; ok {
		return models.User{}, repositories.ErrDuplicate
	}
	for _, existing := range r.s.data.users {
		if existing.Email == u.Email {
			return models.User{}, repositories.ErrDuplicate
		}
	}
	u = cloneUser(u)
	r.s.data.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (r *userRepo) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.data.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *userRepo) ListByEmails(_ context.Context, emails []string) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, u := range r.s.data.users {
		if slices.Contains(emails, u.Email) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *userRepo) Delete(ctx context.Context, id string) (models.User, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("users.Delete"); err != nil {
		return models.User{}, err
	}
	u, ok := r.s.data.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	delete(r.s.data.users, id)
	return u, nil
}

func (r *userRepo) AddToSet(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	return r.mutate(ctx, "users.AddToSet", userID, func(u *models.User) {
		p := userSet(u, set)
		*p = addToSet(*p, value)
	})
}

func (r *userRepo) Pull(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	return r.mutate(ctx, "users.Pull", userID, func(u *models.User) {
		p := userSet(u, set)
		*p = pull(*p, value)
	})
}

func (r *userRepo) PullFromAll(ctx context.Context, set repositories.UserSet, value string) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("users.PullFromAll"); err != nil {
		return err
	}
	for id, u := range r.s.data.users {
		p := userSet(&u, set)
		*p = pull(*p, value)
		r.s.data.users[id] = u
	}
	return nil
}

func (r *userRepo) SetProfile(ctx context.Context, userID string, profile models.Profile) error {
	return r.mutate(ctx, "users.SetProfile", userID, func(u *models.User) { u.Profile = profile })
}

func (r *userRepo) SetToken(ctx context.Context, userID string, token string) error {
	return r.mutate(ctx, "users.SetToken", userID, func(u *models.User) { u.Token = token })
}

func (r *userRepo) mutate(ctx context.Context, op, id string, fn func(u *models.User)) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault(op); err != nil {
		return err
	}
	u, ok := r.s.data.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&u)
	r.s.data.users[id] = u
	return nil
}

func userSet(u *models.User, set repositories.UserSet) *[]string {
	switch set {
	case repositories.SetChats:
		return &u.Chats
	case repositories.SetChatRequests:
		return &u.ChatRequests
	case repositories.SetFriends:
		return &u.Friends
	case repositories.SetIncomingFriendRequests:
		return &u.IncomingFriendRequests
	case repositories.SetOutgoingFriendRequests:
		return &u.OutgoingFriendRequests
	}
	panic("memory: unknown user set " + string(set))
}

type chatRepo struct{ s *Store }

func (r *chatRepo) Create(ctx context.Context, c models.Chat) (models.Chat, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("chats.Create"); err != nil {
		return models.Chat{}, err
	}
	if _, ok := r.s.data.chats[c.ID]; ok {
		return models.Chat{}, repositories.ErrDuplicate
	}
	c = cloneChat(c)
	r.s.data.chats[c.ID] = c
	return cloneChat(c), nil
}

func (r *chatRepo) Get(_ context.Context, id string) (models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.chats[id]
	if !ok {
		return models.Chat{}, repositories.ErrNotFound
	}
	return cloneChat(c), nil
}

func (r *chatRepo) ListByIDs(_ context.Context, ids []string) ([]models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Chat, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.s.data.chats[id]; ok {
			out = append(out, cloneChat(c))
		}
	}
	return out, nil
}

func (r *chatRepo) ListByMember(_ context.Context, email string) ([]models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Chat{}
	for _, c := range r.s.data.chats {
		if slices.Contains(c.Members, email) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedDate.After(out[j].CreatedDate) })
	return out, nil
}

func (r *chatRepo) Delete(ctx context.Context, id string) (models.Chat, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("chats.Delete"); err != nil {
		return models.Chat{}, err
	}
	c, ok := r.s.data.chats[id]
	if !ok {
		return models.Chat{}, repositories.ErrNotFound
	}
	delete(r.s.data.chats, id)
	return c, nil
}

func (r *chatRepo) AddToSet(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	return r.mutate(ctx, "chats.AddToSet", chatID, func(c *models.Chat) {
		p := chatSet(c, set)
		*p = addToSet(*p, value)
	})
}

func (r *chatRepo) Pull(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	return r.mutate(ctx, "chats.Pull", chatID, func(c *models.Chat) {
		p := chatSet(c, set)
		*p = pull(*p, value)
	})
}

func (r *chatRepo) AppendMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	return r.mutate(ctx, "chats.AppendMessage", chatID, func(c *models.Chat) {
		c.Messages = append(c.Messages, messageID)
		c.LastMessage = messageID
		c.LastMessageDate = &at
	})
}

func (r *chatRepo) DetachMessage(ctx context.Context, chatID, messageID, lastID string, lastAt *time.Time) error {
	return r.mutate(ctx, "chats.DetachMessage", chatID, func(c *models.Chat) {
		c.Messages = pull(c.Messages, messageID)
		c.LastMessage = lastID
		c.LastMessageDate = lastAt
	})
}

func (r *chatRepo) mutate(ctx context.Context, op, id string, fn func(c *models.Chat)) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault(op); err != nil {
		return err
	}
	c, ok := r.s.data.chats[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&c)
	r.s.data.chats[id] = c
	return nil
}

func chatSet(c *models.Chat, set repositories.ChatSet) *[]string {
	switch set {
	case repositories.SetMembers:
		return &c.Members
	case repositories.SetMembersTyping:
		return &c.MembersTyping
	}
	panic("memory: unknown chat set " + string(set))
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(ctx context.Context, m models.Message) (models.Message, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("messages.Create"); err != nil {
		return models.Message{}, err
	}
	if _, ok := r.s.data.messages[m.ID]; ok {
		return models.Message{}, repositories.ErrDuplicate
	}
	r.s.data.messages[m.ID] = m
	return m, nil
}

func (r *messageRepo) Get(_ context.Context, id string) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrNotFound
	}
	return m, nil
}

func (r *messageRepo) ListByIDs(_ context.Context, ids []string) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.s.data.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *messageRepo) Update(ctx context.Context, id string, content models.MessageContent, editedAt time.Time) (models.Message, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("messages.Update"); err != nil {
		return models.Message{}, err
	}
	m, ok := r.s.data.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrNotFound
	}
	m.Type = content.Type
	m.Message = content.Message
	m.EditDate = editedAt
	r.s.data.messages[id] = m
	return m, nil
}

func (r *messageRepo) Delete(ctx context.Context, id string) (models.Message, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("messages.Delete"); err != nil {
		return models.Message{}, err
	}
	m, ok := r.s.data.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrNotFound
	}
	delete(r.s.data.messages, id)
	return m, nil
}

func (r *messageRepo) DeleteByChat(ctx context.Context, chatID string) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("messages.DeleteByChat"); err != nil {
		return err
	}
	for id, m := range r.s.data.messages {
		if m.Chat == chatID {
			delete(r.s.data.messages, id)
		}
	}
	return nil
}

var _ repositories.Store = (*Store)(nil)
