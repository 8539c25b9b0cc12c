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

// MessageRepo stores messages as independent documents.
type MessageRepo struct {
	coll *mongo.Collection
}

func (r *MessageRepo) Create(ctx context.Context, m models.Message) (models.Message, error) {
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	noteWrite(ctx)
	return m, nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (models.Message, error) {
	return decodeMessage(r.coll.FindOne(ctx, bson.M{"_id": id}))
}

func (r *MessageRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return repositories.OrderByIDs(ids, msgs, func(m models.Message) string { return m.ID }), nil
}

func (r *MessageRepo) Update(ctx context.Context, id string, content models.MessageContent, editedAt time.Time) (models.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	msg, err := decodeMessage(r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"type": content.Type, "message": content.Message, "editDate": editedAt},
	}, opts))
	if err == nil {
		noteWrite(ctx)
	}
	return msg, err
}

func (r *MessageRepo) Delete(ctx context.Context, id string) (models.Message, error) {
	msg, err := decodeMessage(r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}))
	if err == nil {
		noteWrite(ctx)
	}
	return msg, err
}

func (r *MessageRepo) DeleteByChat(ctx context.Context, chatID string) error {
	res, err := r.coll.DeleteMany(ctx, bson.M{"chat": chatID})
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		noteWrite(ctx)
	}
	return nil
}

func decodeMessage(res *mongo.SingleResult) (models.Message, error) {
	var msg models.Message
	if err := res.Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, repositories.ErrNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}
