// Package mongo implements the repositories on MongoDB, the document store
// the data model was designed for.
package mongo

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"chat-backend/internal/apperr"
	"chat-backend/internal/repositories"
)

const (
	usersCollection    = "usermodel"
	chatsCollection    = "chatmodel"
	messagesCollection = "MessageModel"
)

// Store is a MongoDB repositories.Store.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
// Transactions require a replica set; without them WithTx reports a write
// sequence that fails midway as apperr.KindInconsistent.
func Connect(ctx context.Context, uri, dbName string, transactions bool) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), transactions: transactions}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Info("mongo store ready", "db", dbName, "transactions", transactions)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "friends", Value: 1}}},
		},
		chatsCollection: {
			{Keys: bson.D{{Key: "members", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "chat", Value: 1}, {Key: "createdDate", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Users() repositories.UserRepository {
	return &UserRepo{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Chats() repositories.ChatRepository {
	return &ChatRepo{coll: s.db.Collection(chatsCollection)}
}

func (s *Store) Messages() repositories.MessageRepository {
	return &MessageRepo{coll: s.db.Collection(messagesCollection)}
}

// WithTx runs fn in a multi-document transaction when enabled. Otherwise the
// writes of fn apply one by one, and an error after at least one applied
// write is reported as inconsistent.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	if !s.transactions {
		var writes atomic.Int32
		err := fn(context.WithValue(ctx, writeCounterKey{}, &writes), s)
		if err != nil && writes.Load() > 0 && !apperr.Is(err, apperr.KindInconsistent) {
			return apperr.Inconsistent(err, "operation was partially applied")
		}
		return err
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, s)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type writeCounterKey struct{}

// noteWrite records an applied write for the enclosing non-transactional WithTx.
func noteWrite(ctx context.Context) {
	if c, ok := ctx.Value(writeCounterKey{}).(*atomic.Int32); ok {
		c.Add(1)
	}
}

var _ repositories.Store = (*Store)(nil)
