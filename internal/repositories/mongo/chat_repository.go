package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// ChatRepo stores chats with their member and message id arrays.
type ChatRepo struct {
	coll *mongo.Collection
}

func (r *ChatRepo) Create(ctx context.Context, chat models.Chat) (models.Chat, error) {
	chat = normalizeChat(chat)
	if _, err := r.coll.InsertOne(ctx, chat); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Chat{}, repositories.ErrDuplicate
		}
		return models.Chat{}, err
	}
	noteWrite(ctx)
	return chat, nil
}

func (r *ChatRepo) Get(ctx context.Context, id string) (models.Chat, error) {
	return decodeChat(r.coll.FindOne(ctx, bson.M{"_id": id}))
}

func (r *ChatRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Chat, error) {
	if len(ids) == 0 {
		return []models.Chat{}, nil
	}
	chats, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return repositories.OrderByIDs(ids, chats, func(c models.Chat) string { return c.ID }), nil
}

func (r *ChatRepo) ListByMember(ctx context.Context, email string) ([]models.Chat, error) {
	return r.find(ctx, bson.M{"members": email}, options.Find().SetSort(bson.D{{Key: "createdDate", Value: -1}}))
}

func (r *ChatRepo) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]models.Chat, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var chats []models.Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, normalizeChat(c))
	}
	return out, nil
}

func (r *ChatRepo) Delete(ctx context.Context, id string) (models.Chat, error) {
	chat, err := decodeChat(r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}))
	if err == nil {
		noteWrite(ctx)
	}
	return chat, err
}

func (r *ChatRepo) AddToSet(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{string(set): value}})
}

func (r *ChatRepo) Pull(ctx context.Context, chatID string, set repositories.ChatSet, value string) error {
	return r.update(ctx, chatID, bson.M{"$pull": bson.M{string(set): value}})
}

func (r *ChatRepo) AppendMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	return r.update(ctx, chatID, bson.M{
		"$push": bson.M{"messages": messageID},
		"$set":  bson.M{"lastMessage": messageID, "lastMessageDate": at},
	})
}

func (r *ChatRepo) DetachMessage(ctx context.Context, chatID, messageID, lastID string, lastAt *time.Time) error {
	return r.update(ctx, chatID, bson.M{
		"$pull": bson.M{"messages": messageID},
		"$set":  bson.M{"lastMessage": lastID, "lastMessageDate": lastAt},
	})
}

func (r *ChatRepo) update(ctx context.Context, chatID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": chatID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	noteWrite(ctx)
	return nil
}

func decodeChat(res *mongo.SingleResult) (models.Chat, error) {
	var chat models.Chat
	if err := res.Decode(&chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Chat{}, repositories.ErrNotFound
		}
		return models.Chat{}, err
	}
	return normalizeChat(chat), nil
}

func normalizeChat(c models.Chat) models.Chat {
	c.Members = emptyIfNil(c.Members)
	c.MembersTyping = emptyIfNil(c.MembersTyping)
	c.Messages = emptyIfNil(c.Messages)
	return c
}
