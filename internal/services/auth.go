package services

import (
	"context"
	"errors"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/validation"
)

// TokenIssuer signs bearer tokens for an identity.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// TokenVerifier checks the signature and expiry of a bearer token.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Session is returned by signup and login.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// AuthService creates accounts and exchanges credentials for tokens.
type AuthService struct {
	deps   Deps
	tokens TokenIssuer
	hash   func(string) (string, error)
}

func NewAuthService(deps Deps, tokens TokenIssuer) *AuthService {
	return &AuthService{deps: deps.withDefaults(), tokens: tokens, hash: auth.HashPassword}
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

// Signup creates an account and logs it in.
func (s *AuthService) Signup(ctx context.Context, email, password string) (session Session, err error) {
	ctx, span := start(ctx, "auth.signup", auth.Identity{})
	defer func() { end(span, "auth.signup", err) }()

	email = normalizeEmail(email)
	if err := validation.Struct(credentials{Email: email, Password: password}); err != nil {
		return Session{}, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return Session{}, apperr.Validation("password cannot be used")
	}

	user, err := s.deps.Store.Users().Create(ctx, models.User{
		ID:                     s.deps.NewID(),
		Email:                  email,
		Password:               hash,
		Chats:                  []string{},
		ChatRequests:           []string{},
		Friends:                []string{},
		IncomingFriendRequests: []string{},
		OutgoingFriendRequests: []string{},
		CreatedAt:              s.deps.Now(),
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return Session{}, apperr.Conflict("email already registered")
	}
	if err != nil {
		return Session{}, storeErr(err, "failed to create user")
	}
	s.deps.Audit.Action(ctx, user.ID, "user.signed_up", nil)
	return s.session(user)
}

// Login checks credentials. Unknown email and wrong password look the same.
func (s *AuthService) Login(ctx context.Context, email, password string) (session Session, err error) {
	ctx, span := start(ctx, "auth.login", auth.Identity{})
	defer func() { end(span, "auth.login", err) }()

	email = normalizeEmail(email)
	if err := validation.Email("email", email); err != nil {
		return Session{}, err
	}
	if err := validation.Var("password", password, "required"); err != nil {
		return Session{}, err
	}

	user, err := s.deps.Store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return Session{}, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return Session{}, storeErr(err, "failed to load user")
	}
	if !auth.CheckPassword(user.Password, password) {
		return Session{}, apperr.Unauthorized("invalid email or password")
	}
	return s.session(user)
}

func (s *AuthService) session(user models.User) (Session, error) {
	token, err := s.tokens.Issue(auth.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return Session{}, apperr.Upstream(err, "failed to issue token")
	}
	return Session{Token: token, User: user}, nil
}

// Authenticator accepts a token only while the account it was issued for
// still exists under the same email. A token that outlives its account is
// rejected even when the email has been registered again.
type Authenticator struct {
	store  repositories.Store
	tokens TokenVerifier
}

func NewAuthenticator(store repositories.Store, tokens TokenVerifier) *Authenticator {
	return &Authenticator{store: store, tokens: tokens}
}

func (a *Authenticator) Authenticate(ctx context.Context, raw string) (auth.Identity, error) {
	id, err := a.tokens.Verify(raw)
	if err != nil {
		return auth.Identity{}, apperr.Unauthorized("invalid token")
	}
	user, err := a.store.Users().GetByID(ctx, id.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return auth.Identity{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return auth.Identity{}, apperr.Upstream(err, "failed to load user")
	}
	if user.Email != id.Email {
		return auth.Identity{}, apperr.Unauthorized("account no longer exists")
	}
	return id, nil
}
