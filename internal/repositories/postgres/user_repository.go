package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

const userColumns = `id, email, password, chats, chat_requests, friends, incoming_friend_requests, outgoing_friend_requests,
        profile_name, profile_location, profile_about, profile_picture, token, created_at`

var userSetColumns = map[repositories.UserSet]string{
	repositories.SetChats:                  "chats",
	repositories.SetChatRequests:           "chat_requests",
	repositories.SetFriends:                "friends",
	repositories.SetIncomingFriendRequests: "incoming_friend_requests",
	repositories.SetOutgoingFriendRequests: "outgoing_friend_requests",
}

type userRow struct {
	ID                     string         `db:"id"`
	Email                  string         `db:"email"`
	Password               string         `db:"password"`
	Chats                  pq.StringArray `db:"chats"`
	ChatRequests           pq.StringArray `db:"chat_requests"`
	Friends                pq.StringArray `db:"friends"`
	IncomingFriendRequests pq.StringArray `db:"incoming_friend_requests"`
	OutgoingFriendRequests pq.StringArray `db:"outgoing_friend_requests"`
	ProfileName            string         `db:"profile_name"`
	ProfileLocation        string         `db:"profile_location"`
	ProfileAbout           string         `db:"profile_about"`
	ProfilePicture         string         `db:"profile_picture"`
	Token                  string         `db:"token"`
	CreatedAt              time.Time      `db:"created_at"`
}

func (r userRow) model() models.User {
	return models.User{
		ID:                     r.ID,
		Email:                  r.Email,
		Password:               r.Password,
		Chats:                  nonNil(r.Chats),
		ChatRequests:           nonNil(r.ChatRequests),
		Friends:                nonNil(r.Friends),
		IncomingFriendRequests: nonNil(r.IncomingFriendRequests),
		OutgoingFriendRequests: nonNil(r.OutgoingFriendRequests),
		Profile: models.Profile{
			Name:     r.ProfileName,
			Location: r.ProfileLocation,
			About:    r.ProfileAbout,
			Picture:  r.ProfilePicture,
		},
		Token:     r.Token,
		CreatedAt: r.CreatedAt,
	}
}

func nonNil(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

// UserRepo is a sqlx implementation of repositories.UserRepository.
type UserRepo struct {
	db sqlx.ExtContext
}

// NewUserRepo constructs a UserRepo on a pool or a transaction.
func NewUserRepo(db sqlx.ExtContext) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. The email must be unused.
func (r *UserRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row, `INSERT INTO users (id, email, password, profile_name, profile_location, profile_about, profile_picture, token, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+userColumns,
		u.ID, u.Email, u.Password, u.Profile.Name, u.Profile.Location, u.Profile.About, u.Profile.Picture, u.Token, u.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, repositories.ErrDuplicate
	}
	if err != nil {
		return models.User{}, err
	}
	return row.model(), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, repositories.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return row.model(), nil
}

// ListByIDs returns the users with the given ids in id order.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return repositories.OrderByIDs(ids, users, func(u models.User) string { return u.ID }), nil
}

// ListByEmails returns the users with the given emails.
func (r *UserRepo) ListByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE email = ANY($1) ORDER BY email`, emails)
}

func (r *UserRepo) list(ctx context.Context, query string, keys []string) ([]models.User, error) {
	if len(keys) == 0 {
		return []models.User{}, nil
	}
	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, pq.Array(keys)); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return users, nil
}

// Delete removes a user and returns the removed record.
func (r *UserRepo) Delete(ctx context.Context, id string) (models.User, error) {
	return r.getOne(ctx, `DELETE FROM users WHERE id=$1 RETURNING `+userColumns, id)
}

// AddToSet appends value to the set unless it is already present.
func (r *UserRepo) AddToSet(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	col, err := userSetColumn(set)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE users SET %[1]s = CASE WHEN $2::text = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2::text) END WHERE id=$1`, col)
	res, err := r.db.ExecContext(ctx, query, userID, value)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// Pull removes every occurrence of value from the set.
func (r *UserRepo) Pull(ctx context.Context, userID string, set repositories.UserSet, value string) error {
	col, err := userSetColumn(set)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %[1]s = array_remove(%[1]s, $2::text) WHERE id=$1`, col), userID, value)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// PullFromAll removes value from the set of every user holding it.
func (r *UserRepo) PullFromAll(ctx context.Context, set repositories.UserSet, value string) error {
	col, err := userSetColumn(set)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %[1]s = array_remove(%[1]s, $1::text) WHERE $1::text = ANY(%[1]s)`, col), value)
	return err
}

// SetProfile overwrites the profile.
func (r *UserRepo) SetProfile(ctx context.Context, userID string, p models.Profile) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile_name=$2, profile_location=$3, profile_about=$4, profile_picture=$5 WHERE id=$1`,
		userID, p.Name, p.Location, p.About, p.Picture)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// SetToken stores the push device token.
func (r *UserRepo) SetToken(ctx context.Context, userID string, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET token=$2 WHERE id=$1`, userID, token)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func userSetColumn(set repositories.UserSet) (string, error) {
	col, ok := userSetColumns[set]
	if !ok {
		return "", fmt.Errorf("unknown user set %q", set)
	}
	return col, nil
}
