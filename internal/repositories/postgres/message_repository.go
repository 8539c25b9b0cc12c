package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

const messageColumns = `id, chat_id, author, type, message, created_date, edit_date`

type messageRow struct {
	ID          string    `db:"id"`
	ChatID      string    `db:"chat_id"`
	Author      string    `db:"author"`
	Type        string    `db:"type"`
	Message     string    `db:"message"`
	CreatedDate time.Time `db:"created_date"`
	EditDate    time.Time `db:"edit_date"`
}

func (r messageRow) model() models.Message {
	return models.Message{
		ID:          r.ID,
		Chat:        r.ChatID,
		Author:      r.Author,
		Type:        r.Type,
		Message:     r.Message,
		CreatedDate: r.CreatedDate,
		EditDate:    r.EditDate,
	}
}

// MessageRepo is a sqlx-backed repositories.MessageRepository.
type MessageRepo struct {
	db sqlx.ExtContext
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db sqlx.ExtContext) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message.
func (r *MessageRepo) Create(ctx context.Context, m models.Message) (models.Message, error) {
	return r.getOne(ctx, `INSERT INTO messages (id, chat_id, author, type, message, created_date, edit_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+messageColumns,
		m.ID, m.Chat, m.Author, m.Type, m.Message, m.CreatedDate, m.EditDate)
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, id string) (models.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
}

// ListByIDs returns messages in id order.
func (r *MessageRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}
	var rows []messageRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.model())
	}
	return repositories.OrderByIDs(ids, msgs, func(m models.Message) string { return m.ID }), nil
}

// Update replaces the content of a message and stamps the edit time.
func (r *MessageRepo) Update(ctx context.Context, id string, content models.MessageContent, editedAt time.Time) (models.Message, error) {
	return r.getOne(ctx, `UPDATE messages SET type=$2, message=$3, edit_date=$4 WHERE id=$1 RETURNING `+messageColumns,
		id, content.Type, content.Message, editedAt)
}

// Delete removes a message and returns it.
func (r *MessageRepo) Delete(ctx context.Context, id string) (models.Message, error) {
	return r.getOne(ctx, `DELETE FROM messages WHERE id=$1 RETURNING `+messageColumns, id)
}

// DeleteByChat removes every message of a chat.
func (r *MessageRepo) DeleteByChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID)
	return err
}

func (r *MessageRepo) getOne(ctx context.Context, query string, args ...any) (models.Message, error) {
	var row messageRow
	err := sqlx.GetContext(ctx, r.db, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, repositories.ErrNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.model(), nil
}
