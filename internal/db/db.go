package db

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and applies the schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            chats TEXT[] NOT NULL DEFAULT '{}',
            chat_requests TEXT[] NOT NULL DEFAULT '{}',
            friends TEXT[] NOT NULL DEFAULT '{}',
            incoming_friend_requests TEXT[] NOT NULL DEFAULT '{}',
            outgoing_friend_requests TEXT[] NOT NULL DEFAULT '{}',
            profile_name TEXT NOT NULL DEFAULT '',
            profile_location TEXT NOT NULL DEFAULT '',
            profile_about TEXT NOT NULL DEFAULT '',
            profile_picture TEXT NOT NULL DEFAULT '',
            token TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            creator TEXT NOT NULL,
            members TEXT[] NOT NULL DEFAULT '{}',
            members_typing TEXT[] NOT NULL DEFAULT '{}',
            messages TEXT[] NOT NULL DEFAULT '{}',
            last_message TEXT NOT NULL DEFAULT '',
            last_message_date TIMESTAMPTZ,
            created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS chats_members_idx ON chats USING GIN (members);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL,
            author TEXT NOT NULL,
            type TEXT NOT NULL,
            message TEXT NOT NULL,
            created_date TIMESTAMPTZ NOT NULL,
            edit_date TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS messages_chat_id_idx ON messages (chat_id);`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info("database migrations applied")
	return nil
}
