// Package postgres implements the repositories on Postgres, keeping each
// embedded set in a TEXT[] column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/repositories"
)

// Store is a sqlx-backed repositories.Store. A Store returned inside WithTx
// is bound to the transaction.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewStore wraps an open pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() repositories.UserRepository       { return NewUserRepo(s.q) }
func (s *Store) Chats() repositories.ChatRepository       { return NewChatRepo(s.q) }
func (s *Store) Messages() repositories.MessageRepository { return NewMessageRepo(s.q) }

// txAttempts bounds how often WithTx reruns fn after a serialization failure.
const txAttempts = 3

// WithTx runs fn inside a SERIALIZABLE transaction, so check-then-write
// sequences such as two users requesting each other at once cannot both
// commit. fn is rerun when Postgres aborts the transaction with a
// serialization failure or a deadlock.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	if s.db == nil {
		// already bound to a transaction
		return fn(ctx, s)
	}

	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isSerializationFailure(err) || ctx.Err() != nil {
			return err
		}
		log.Debug("retrying transaction", "attempt", attempt, "err", err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(ctx, &Store{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// isSerializationFailure reports SQLSTATE 40001 and 40P01.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && (pqErr.Code == "40001" || pqErr.Code == "40P01")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

var _ repositories.Store = (*Store)(nil)
