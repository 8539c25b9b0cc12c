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

const chatColumns = `id, creator, members, members_typing, messages, last_message, last_message_date, created_date`

var chatSetColumns = map[repositories.ChatSet]string{
	repositories.SetMembers:       "members",
	repositories.SetMembersTyping: "members_typing",
}

type chatRow struct {
	ID              string         `db:"id"`
	Creator         string         `db:"creator"`
	Members         pq.StringArray `db:"members"`
	MembersTyping   pq.StringArray `db:"members_typing"`
	Messages        pq.StringArray `db:"messages"`
	LastMessage     string         `db:"last_message"`
	LastMessageDate sql.NullTime   `db:"last_message_date"`
	CreatedDate     time.Time      `db:"created_date"`
}

func (r chatRow) model() models.Chat {
	chat := models.Chat{
		ID:            r.ID,
		Creator:       r.Creator,
		Members:       nonNil(r.Members),
		MembersTyping: nonNil(r.MembersTyping),
		Messages:      nonNil(r.Messages),
		LastMessage:   r.LastMessage,
		CreatedDate:   r.CreatedDate,
	}
	if r.LastMessageDate.Valid {
		at := r.LastMessageDate.Time
		chat.LastMessageDate = &at
	}
	return chat
}

// ChatRepo is a sqlx implementation of repositories.ChatRepository.
type ChatRepo struct {
	db sqlx.ExtContext
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db sqlx.ExtContext) *ChatRepo {
	return &ChatRepo{db: db}
}

// Create inserts a chat.
func (r *ChatRepo) Create(ctx context.Context, chat models.Chat) (models.Chat, error) {
	var row chatRow
	err := sqlx.GetContext(ctx, r.db, &row, `INSERT INTO chats (id, creator, members, created_date)
        VALUES ($1, $2, $3, $4) RETURNING `+chatColumns,
		chat.ID, chat.Creator, pq.Array(chat.Members), chat.CreatedDate)
	if isUniqueViolation(err) {
		return models.Chat{}, repositories.ErrDuplicate
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.model(), nil
}

// Get fetches a chat by id.
func (r *ChatRepo) Get(ctx context.Context, id string) (models.Chat, error) {
	return r.getOne(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id)
}

func (r *ChatRepo) getOne(ctx context.Context, query string, args ...any) (models.Chat, error) {
	var row chatRow
	err := sqlx.GetContext(ctx, r.db, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, repositories.ErrNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.model(), nil
}

// ListByIDs returns chats in id order.
func (r *ChatRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Chat, error) {
	if len(ids) == 0 {
		return []models.Chat{}, nil
	}
	chats, err := r.list(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return repositories.OrderByIDs(ids, chats, func(c models.Chat) string { return c.ID }), nil
}

// ListByMember returns the chats that list email as a member.
func (r *ChatRepo) ListByMember(ctx context.Context, email string) ([]models.Chat, error) {
	return r.list(ctx, `SELECT `+chatColumns+` FROM chats WHERE $1::text = ANY(members) ORDER BY created_date DESC`, email)
}

func (r *ChatRepo) list(ctx context.Context, query string, args ...any) ([]models.Chat, error) {
	var rows []chatRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.model())
	}
	return chats, nil
}

// Delete removes a chat and returns it.
func (r *ChatRepo) Delete(ctx context.Context, id string) (models.Chat, error) {
	return r.getOne(ctx, `DELETE FROM chats WHERE id=$1 RETURNING `+chatColumns, id)
}

// AddToSet appends value to the set unless present.
func (r *ChatRepo) AddToSet(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	col, err := chatSetColumn(set)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE chats SET %[1]s = CASE WHEN $2::text = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2::text) END WHERE id=$1`, col)
	res, err := r.db.ExecContext(ctx, query, chatID, value)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// Pull removes value from the set.
func (r *ChatRepo) Pull(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	col, err := chatSetColumn(set)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE chats SET %[1]s = array_remove(%[1]s, $2::text) WHERE id=$1`, col), chatID, value)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// AppendMessage pushes the message id and marks it as the latest.
func (r *ChatRepo) AppendMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET messages = array_append(messages, $2::text), last_message=$2, last_message_date=$3 WHERE id=$1`,
		chatID, messageID, at)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// DetachMessage drops the message id and resets the latest-message fields.
func (r *ChatRepo) DetachMessage(ctx context.Context, chatID, messageID, lastID string, lastAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET messages = array_remove(messages, $2::text), last_message=$3, last_message_date=$4 WHERE id=$1`,
		chatID, messageID, lastID, lastAt)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func chatSetColumn(set repositories.ChatSet) (string, error) {
	col, ok := chatSetColumns[set]
	if !ok {
		return "", fmt.Errorf("unknown chat set %q", set)
	}
	return col, nil
}
